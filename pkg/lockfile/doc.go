// Package lockfile provides host-local mutual exclusion across independent
// processes via an atomically-creatable filesystem token.
//
// Two backends are available: exclusive-create of a regular file (default)
// and mkdir, for filesystems where O_EXCL is unreliable. The token records
// a UUID owner, pid and acquisition time; Release verifies ownership before
// removing it, and tokens older than a configurable stale age are treated
// as abandoned and reclaimed.
//
// Acquisition retries with bounded exponential backoff plus jitter and is
// limited by the caller's context; deadline expiry surfaces as
// ErrLockTimeout rather than hanging.
package lockfile
