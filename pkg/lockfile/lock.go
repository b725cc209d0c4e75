package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned by Acquire when the lock could not be obtained
// before the context deadline. Callers may retry; the lock itself never
// retries beyond its bounded backoff.
var ErrLockTimeout = errors.New("lockfile: acquire deadline exceeded")

// errHeld is the backends' signal that the token already exists.
var errHeld = errors.New("lockfile: held")

// ownerInfo is written into the lock token so Release can verify ownership
// and stale reclaims can report the previous holder.
type ownerInfo struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Backend is the filesystem primitive behind a Lock. Creation of the token
// must be atomic with respect to all cooperating processes on the host.
type Backend interface {
	// TryAcquire atomically creates the token holding payload. It returns
	// errHeld-wrapped detail when the token already exists.
	TryAcquire(payload []byte) error
	// Owner reads the current token payload, if any.
	Owner() ([]byte, error)
	// Remove deletes the token unconditionally.
	Remove() error
	// Age reports how long ago the token was created.
	Age() (time.Duration, error)
}

// Lock provides mutual exclusion across independent processes on one host
// via an atomically-creatable filesystem token.
type Lock struct {
	backend Backend
	token   string

	staleAfter time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures a Lock.
type Option func(*Lock)

// WithStaleAfter sets the age past which a held token is considered
// abandoned and forcibly reclaimed. Zero disables reclaim. The default is
// 30 seconds, a generous multiple of any sane critical section here.
func WithStaleAfter(d time.Duration) Option {
	return func(l *Lock) { l.staleAfter = d }
}

// WithBackoff sets the initial and maximum delay between acquisition
// attempts. Delays grow exponentially from base to max with jitter.
func WithBackoff(base, max time.Duration) Option {
	return func(l *Lock) {
		l.baseDelay = base
		l.maxDelay = max
	}
}

// WithBackend replaces the default exclusive-create file backend.
func WithBackend(b Backend) Option {
	return func(l *Lock) { l.backend = b }
}

// New creates a Lock over the given filesystem path. The default backend
// creates the token with O_CREATE|O_EXCL; see NewDirBackend for the mkdir
// variant.
func New(path string, opts ...Option) *Lock {
	l := &Lock{
		backend:    NewFileBackend(path),
		token:      uuid.NewString(),
		staleAfter: 30 * time.Second,
		baseDelay:  200 * time.Microsecond,
		maxDelay:   20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains the lock, retrying with bounded exponential backoff plus
// jitter until ctx expires. Deadline expiry surfaces as ErrLockTimeout.
func (l *Lock) Acquire(ctx context.Context) error {
	payload, err := json.Marshal(ownerInfo{
		Token:      l.token,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	delay := l.baseDelay
	for {
		err := l.backend.TryAcquire(payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errHeld) {
			return err
		}

		if l.staleAfter > 0 {
			if age, aerr := l.backend.Age(); aerr == nil && age > l.staleAfter {
				// Token abandoned by a dead holder; reclaim and retry
				// immediately.
				_ = l.backend.Remove()
				continue
			}
		}

		sleep := delay/2 + rand.N(delay/2+1)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return ctx.Err()
		case <-time.After(sleep):
		}
		if delay < l.maxDelay {
			delay *= 2
			if delay > l.maxDelay {
				delay = l.maxDelay
			}
		}
	}
}

// Release removes the token if this Lock still owns it. Releasing a lock
// that was reclaimed by another process is not an error; the reclaim already
// transferred ownership.
func (l *Lock) Release() error {
	raw, err := l.backend.Owner()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var info ownerInfo
	if err := json.Unmarshal(raw, &info); err == nil && info.Token != l.token {
		return nil
	}
	return l.backend.Remove()
}

// WithLock runs fn while holding the lock, releasing it on every exit path.
func (l *Lock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}
