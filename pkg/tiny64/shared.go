package tiny64

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppdx999/tiny64/pkg/lockfile"
)

// sharedState holds the cross-process coordination pieces: the filesystem
// lock and the state file carrying the authoritative (last_ms, sequence)
// pair for the lock domain.
type sharedState struct {
	lock        *lockfile.Lock
	statePath   string
	lockTimeout time.Duration
}

// WithSharedState makes the generator coordinate with other processes using
// dir as the lock domain. All processes configured with the same directory
// share one logical sequence counter, persisted in a state file that is only
// read and written while the lock is held. lockTimeout bounds each
// acquisition; zero means only the caller's context limits the wait.
func WithSharedState(dir string, lockTimeout time.Duration, lockOpts ...lockfile.Option) Option {
	return func(g *Generator) {
		g.shared = &sharedState{
			lock:        lockfile.New(filepath.Join(dir, "tiny64.lock"), lockOpts...),
			statePath:   filepath.Join(dir, "tiny64.state"),
			lockTimeout: lockTimeout,
		}
	}
}

// nextShared runs one generation cycle under the cross-process lock:
// acquire, load state, advance, persist, release. The caller holds g.mu.
func (g *Generator) nextShared(ctx context.Context) (ID, error) {
	if g.shared.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shared.lockTimeout)
		defer cancel()
	}
	if err := g.shared.lock.Acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { _ = g.shared.lock.Release() }()

	ms, seq, err := g.loadState()
	if err != nil {
		return 0, err
	}
	g.lastMs, g.seq = ms, seq

	ms, seq, err = g.advance(ctx)
	if err != nil {
		return 0, err
	}
	if err := g.saveState(ms, seq); err != nil {
		return 0, err
	}
	return g.assemble(ms, seq)
}

// loadState reads the shared (last_ms, sequence) pair. A missing file means
// a fresh lock domain and yields zero state.
func (g *Generator) loadState() (int64, uint16, error) {
	b, err := os.ReadFile(g.shared.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	var ms int64
	var seq uint16
	if _, err := fmt.Sscanf(string(b), "%d %d", &ms, &seq); err != nil {
		return 0, 0, fmt.Errorf("tiny64: corrupt state file %s: %w", g.shared.statePath, err)
	}
	return ms, seq, nil
}

// saveState persists the pair atomically via rename so a crash mid-write
// never leaves a torn state file.
func (g *Generator) saveState(ms int64, seq uint16) error {
	tmp := g.shared.statePath + ".tmp"
	if err := os.WriteFile(tmp, fmt.Appendf(nil, "%d %d\n", ms, seq), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, g.shared.statePath)
}
