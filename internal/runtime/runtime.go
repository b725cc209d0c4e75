package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cfgpkg "github.com/ppdx999/tiny64/internal/config"
	"github.com/ppdx999/tiny64/internal/reserve"
	logpkg "github.com/ppdx999/tiny64/pkg/log"
	"github.com/ppdx999/tiny64/pkg/tiny64"
)

// ErrReservationExhausted is returned when every generation attempt
// collided with an already-claimed ID. With 22 bits of same-millisecond
// space this indicates a misconfigured (shared-nothing, same machine ID)
// deployment rather than bad luck.
var ErrReservationExhausted = errors.New("runtime: could not reserve a unique ID")

// maxClaimAttempts bounds regeneration when the reservation store reports
// collisions. Retries stay bounded; resource exhaustion must surface, not
// hide behind a loop.
const maxClaimAttempts = 4

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires config, the generator, and the optional reservation store
// for a single-node instance.
type Runtime struct {
	cfg    cfgpkg.Config
	gen    *tiny64.Generator
	store  *reserve.Store
	logger logpkg.Logger
}

// Open validates the configuration and builds the generator and, when
// enabled, the reservation store.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	genOpts := []tiny64.Option{
		tiny64.WithStallHook(func(waited time.Duration) {
			logger.Debug("per-millisecond budget exhausted; waited for clock to advance",
				logpkg.Dur("waited", waited))
		}),
	}
	if cfg.MachineBits > 0 {
		genOpts = append(genOpts, tiny64.WithMachineID(uint16(cfg.MachineID), cfg.MachineBits))
	}
	if cfg.LockDir != "" {
		if err := os.MkdirAll(cfg.LockDir, 0o755); err != nil {
			return nil, fmt.Errorf("runtime: creating lock dir: %w", err)
		}
		genOpts = append(genOpts, tiny64.WithSharedState(cfg.LockDir, cfg.LockTimeout()))
	}
	gen, err := tiny64.NewGenerator(genOpts...)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{cfg: cfg, gen: gen, logger: logger}

	if cfg.Reserve.Enabled {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = cfgpkg.DefaultDataDir()
		}
		mode, err := reserve.ParseFsyncMode(cfg.Reserve.Fsync)
		if err != nil {
			return nil, err
		}
		store, err := reserve.Open(reserve.Options{
			DataDir:       filepath.Join(dataDir, "reserve"),
			Fsync:         mode,
			FsyncInterval: time.Duration(cfg.Reserve.FsyncIntervalMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		rt.store = store
	}
	return rt, nil
}

// Close releases underlying resources.
func (r *Runtime) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// Generator exposes the underlying generator.
func (r *Runtime) Generator() *tiny64.Generator { return r.gen }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.cfg }

// NewID produces one identifier. When the reservation store is enabled, the
// ID is claimed before being returned; a claimed collision triggers a fresh
// generation, bounded by maxClaimAttempts.
func (r *Runtime) NewID(ctx context.Context) (tiny64.ID, error) {
	if r.store == nil {
		return r.gen.Next(ctx)
	}
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		id, err := r.gen.Next(ctx)
		if err != nil {
			return 0, err
		}
		ok, err := r.store.Claim(id)
		if err != nil {
			return 0, err
		}
		if ok {
			return id, nil
		}
		r.logger.Warn("generated ID already reserved; regenerating",
			logpkg.Str("id", id.String()),
			logpkg.Int("attempt", attempt+1))
	}
	return 0, ErrReservationExhausted
}

// CheckHealth verifies the runtime can serve requests.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store != nil {
		if err := r.store.CheckHealth(); err != nil {
			return err
		}
	}
	_, err := r.gen.Next(ctx)
	return err
}
