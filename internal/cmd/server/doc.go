// Package serverrun boots the tiny64 HTTP server: logger from config,
// runtime wiring, graceful shutdown on SIGINT/SIGTERM.
package serverrun
