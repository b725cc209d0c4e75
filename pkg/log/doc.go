// Package log provides tiny64's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library's slog via a bridge handler that preserves a single
// formatter/outputs pipeline, so output stays consistent across the
// codebase while the slog ecosystem remains reachable.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.WithComponent("server")
//	l.Info("listening", log.Str("addr", ":8080"))
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// text/json format), and RedirectStdLog to route standard library log
// output from dependencies through the facade. Construct and pass Logger
// instances explicitly; there is no global default.
package log
