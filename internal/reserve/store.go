package reserve

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ppdx999/tiny64/pkg/tiny64"
)

// FsyncMode defines durability behavior for claim writes.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each claim.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within the
	// configured interval (group commit).
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. A crash
	// can forget recent claims; acceptable when the store is advisory.
	FsyncModeNever
)

// ParseFsyncMode maps the config strings always|interval|never.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "always":
		return FsyncModeAlways, nil
	case "interval", "":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, errors.New("reserve: fsync must be always|interval|never")
}

// Options configures the reservation store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
}

// Store records a first-writer-wins claim for every identifier handed out,
// so independent generators that share a store can detect the rare
// same-millisecond, same-random collision. It is an optional collaborator:
// generation is correct without it, just without the hard uniqueness check.
type Store struct {
	mu        sync.Mutex
	db        *pebble.DB
	writeSync bool
}

// Open creates or opens the store under opts.DataDir.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("reserve: Options.DataDir is required")
	}
	po := &pebble.Options{}
	switch opts.Fsync {
	case FsyncModeAlways:
		// WriteOptions carry the sync; WALMinSyncInterval stays at default.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	case FsyncModeNever:
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, writeSync: opts.Fsync == FsyncModeAlways}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Claim records id as issued. It returns false when the id was already
// claimed, meaning the caller must generate a fresh one. The check-then-set
// runs under the store mutex so concurrent claimers in this process cannot
// both win; cross-process claimers must share the store through one server.
func (s *Store) Claim(id tiny64.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyID(id)
	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, err
	}

	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(time.Now().UnixMilli()))
	wo := pebble.NoSync
	if s.writeSync {
		wo = pebble.Sync
	}
	if err := s.db.Set(key, val[:], wo); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether id has been claimed.
func (s *Store) Contains(id tiny64.ID) (bool, error) {
	_, closer, err := s.db.Get(keyID(id))
	if err == nil {
		closer.Close()
		return true, nil
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// CheckHealth verifies the database answers reads.
func (s *Store) CheckHealth() error {
	if s == nil || s.db == nil {
		return errors.New("reserve: db not open")
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}
