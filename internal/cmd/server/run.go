package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/ppdx999/tiny64/internal/config"
	"github.com/ppdx999/tiny64/internal/runtime"
	httpserver "github.com/ppdx999/tiny64/internal/server/http"
	logpkg "github.com/ppdx999/tiny64/pkg/log"
)

// Options carries the resolved server configuration.
type Options struct {
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context; layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  opts.Config.LogLevel,
		Format: opts.Config.LogFormat,
	})
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger.Warn("invalid log config; using defaults", logpkg.Err(err))
	}

	// Redirect stdlib logs (e.g. Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: logger.WithComponent("runtime")})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	addr := opts.HTTPAddr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}
	logger.Info("starting tiny64 server",
		logpkg.Str("http", addr),
		logpkg.Str("lock_dir", opts.Config.LockDir),
		logpkg.Bool("reserve", opts.Config.Reserve.Enabled),
		logpkg.Str("level", opts.Config.LogLevel),
		logpkg.Str("format", opts.Config.LogFormat),
	)

	srv := httpserver.New(rt, logger.WithComponent("http"))
	defer srv.Close()
	if err := srv.ListenAndServe(sctx, addr); err != nil {
		return err
	}

	// brief delay to allow logs flush
	time.Sleep(50 * time.Millisecond)
	return nil
}
