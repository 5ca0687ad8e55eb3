// Package manifest persists the identity of a store built on the shale
// primitives and verifies it on every open.
//
// A store is created under exactly one comparator and must be opened under
// a comparator with the same name for its entire life; opening ordered data
// under a different order silently corrupts every ordering invariant, so a
// mismatch is a fatal configuration error surfaced before any data
// operation proceeds.
//
// The manifest is a single msgpack-encoded state record in a Bolt bucket,
// holding the comparator name, the format version, the arena block size the
// store was created with, and open accounting.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/shalekv/shale"
)

var (
	// ErrComparatorMismatch is wrapped by the error returned when a store
	// is opened under a comparator whose name differs from the one the
	// store was created with.
	ErrComparatorMismatch = fmt.Errorf("comparator mismatch")

	// ErrUnsupportedVersion is returned when the manifest was written by a
	// newer format than this package understands.
	ErrUnsupportedVersion = fmt.Errorf("unsupported manifest format version")

	// ErrReservedName is returned when an external comparator uses a name
	// in the namespace reserved for built-ins.
	ErrReservedName = fmt.Errorf("comparator name uses reserved prefix %q", shale.ReservedNamePrefix)
)

// FormatVersion is the manifest format written by this package. Bump it
// whenever the state record changes incompatibly.
const FormatVersion = 1

var (
	manifestBucket = []byte("manifest")
	stateKey       = []byte("state")
)

// Options configures Open. Path and Comparator are required; everything
// else has sensible zero-value defaults.
type Options struct {
	Path       string           // manifest file path
	Comparator shale.Comparator // the comparator the store is configured with

	// BlockSize is the arena block size recorded at creation, for
	// diagnostics only. 0 means shale.ArenaBlockSize.
	BlockSize int

	FileMode fs.FileMode  // 0 means 0o644
	Logger   *slog.Logger // nil means slog.Default()
	Now      func() time.Time
}

// State is the persisted identity record of a store.
type State struct {
	FormatVersion  uint32    `msgpack:"v"`
	ComparatorName string    `msgpack:"c"`
	ArenaBlockSize int       `msgpack:"b"`
	CreatedAt      time.Time `msgpack:"t"`
	OpenCount      uint64    `msgpack:"n"`
	LastOpenedAt   time.Time `msgpack:"o"`
}

// Manifest is an open, verified store-identity record.
type Manifest struct {
	bdb    *bbolt.DB
	state  State
	logger *slog.Logger
}

// ComparatorMismatchError reports the two comparator names involved in a
// failed open. It wraps ErrComparatorMismatch.
type ComparatorMismatchError struct {
	Stored     string // the name the store was created with
	Configured string // the name of the comparator passed to Open
}

func (e *ComparatorMismatchError) Error() string {
	return fmt.Sprintf("comparator mismatch: store created with %q, opened with %q", e.Stored, e.Configured)
}

func (e *ComparatorMismatchError) Unwrap() error {
	return ErrComparatorMismatch
}

// Open opens the manifest at opts.Path, creating it on first use, and
// verifies that the configured comparator matches the one the store was
// created with. Any returned error is fatal for the store: no data
// operation may proceed after a failed Open.
func Open(opts Options) (*Manifest, error) {
	if opts.Path == "" {
		panic("manifest: Options.Path is required")
	}
	if opts.Comparator == nil {
		panic("manifest: Options.Comparator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mode := opts.FileMode
	if mode == 0 {
		mode = 0o644
	}
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = shale.ArenaBlockSize
	}

	name := opts.Comparator.Name()
	if shale.IsReservedComparatorName(name) && name != shale.BytewiseComparator().Name() {
		return nil, fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	bdb, err := bbolt.Open(opts.Path, mode, nil)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	var state State
	err = bdb.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(manifestBucket)
		if err != nil {
			return err
		}
		if raw := b.Get(stateKey); raw != nil {
			if err := msgpack.Unmarshal(raw, &state); err != nil {
				return fmt.Errorf("failed to decode manifest state: %w", err)
			}
			if state.FormatVersion > FormatVersion {
				return fmt.Errorf("%w: %d (supported up to %d)", ErrUnsupportedVersion, state.FormatVersion, FormatVersion)
			}
			if state.ComparatorName != name {
				return &ComparatorMismatchError{Stored: state.ComparatorName, Configured: name}
			}
		} else {
			state = State{
				FormatVersion:  FormatVersion,
				ComparatorName: name,
				ArenaBlockSize: blockSize,
				CreatedAt:      now(),
			}
		}
		state.OpenCount++
		state.LastOpenedAt = now()
		raw, err := msgpack.Marshal(&state)
		if err != nil {
			return fmt.Errorf("failed to encode manifest state: %w", err)
		}
		return b.Put(stateKey, raw)
	})
	if err != nil {
		closeErr := bdb.Close()
		return nil, errors.Join(err, closeErr)
	}

	logger.Debug("manifest opened",
		"path", opts.Path,
		"comparator", state.ComparatorName,
		"opens", state.OpenCount)

	return &Manifest{bdb: bdb, state: state, logger: logger}, nil
}

// State returns a copy of the verified identity record.
func (m *Manifest) State() State {
	return m.state
}

// ComparatorName returns the comparator name the store was created with.
func (m *Manifest) ComparatorName() string {
	return m.state.ComparatorName
}

// Close closes the underlying manifest file.
func (m *Manifest) Close() error {
	return m.bdb.Close()
}
