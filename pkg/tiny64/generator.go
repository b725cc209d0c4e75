package tiny64

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClockUnavailable is returned when the clock source cannot produce a
// usable millisecond value. It is never silently substituted.
var ErrClockUnavailable = errors.New("tiny64: clock source unavailable")

// Clock reports the current wall time as milliseconds since the Unix epoch.
type Clock func() (int64, error)

// Entropy returns a uniformly distributed value in [0, 1023]. It is invoked
// while the generator's lock is held, so implementations need no locking of
// their own.
type Entropy func() uint16

// SystemClock is the default Clock, backed by time.Now.
func SystemClock() (int64, error) { return time.Now().UnixMilli(), nil }

// defaultEntropy builds a ChaCha8 generator seeded from crypto/rand so that
// independent processes draw from distinct streams.
func defaultEntropy() Entropy {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[0:8], uint64(time.Now().UnixNano()))
		binary.LittleEndian.PutUint64(seed[8:16], uint64(os.Getpid()))
	}
	r := rand.New(rand.NewChaCha8(seed))
	return func() uint16 { return uint16(r.Uint32()) & MaxRandom }
}

// Generator produces Tiny64 IDs that are strictly increasing in
// (timestamp_ms, sequence) order for a single instance.
//
// A Generator is safe for concurrent use by multiple goroutines. When
// configured with a shared state directory it also coordinates with other
// processes on the same host through a filesystem lock, sharing one logical
// sequence counter with them.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint16

	clock   Clock
	entropy Entropy

	machineID   uint16
	machineBits int

	shared *sharedState

	waitStep time.Duration
	onStall  func(waited time.Duration)
	stalls   atomic.Uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithEntropy replaces the random source for the 10-bit entropy field.
func WithEntropy(e Entropy) Option {
	return func(g *Generator) { g.entropy = e }
}

// WithMachineID reserves the high `bits` bits of the random field for a
// fixed machine identifier, shrinking the entropy portion accordingly. The
// base 64-bit layout is unchanged. bits must be in [1, 10] and id must fit.
func WithMachineID(id uint16, bits int) Option {
	return func(g *Generator) {
		g.machineID = id
		g.machineBits = bits
	}
}

// WithStallHook installs a callback invoked after every sequence-exhaustion
// wait with the time spent waiting for the clock to advance.
func WithStallHook(fn func(waited time.Duration)) Option {
	return func(g *Generator) { g.onStall = fn }
}

// NewGenerator creates a Generator with fresh state
// (last_time_ms = 0, sequence = 0).
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		clock:    SystemClock,
		waitStep: time.Millisecond / 8,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.machineBits < 0 || g.machineBits > RandomBits {
		return nil, fmt.Errorf("tiny64: machine ID width %d out of range [0,%d]", g.machineBits, RandomBits)
	}
	if g.machineBits > 0 && uint64(g.machineID) >= uint64(1)<<g.machineBits {
		return nil, fmt.Errorf("tiny64: machine ID %d does not fit in %d bits", g.machineID, g.machineBits)
	}
	if g.entropy == nil {
		g.entropy = defaultEntropy()
	}
	return g, nil
}

// Stalls returns the number of times this generator exhausted its
// per-millisecond budget and had to wait for the clock to advance.
func (g *Generator) Stalls() uint64 { return g.stalls.Load() }

// Next produces one ID. It blocks only while waiting out a same-millisecond
// sequence overflow or, in shared mode, while acquiring the cross-process
// lock; both respect ctx's deadline.
func (g *Generator) Next(ctx context.Context) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shared != nil {
		return g.nextShared(ctx)
	}
	ms, seq, err := g.advance(ctx)
	if err != nil {
		return 0, err
	}
	return g.assemble(ms, seq)
}

// NextString produces one ID in its 11-character encoded form.
func (g *Generator) NextString(ctx context.Context) (string, error) {
	id, err := g.Next(ctx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// advance runs the sequence state machine against (g.lastMs, g.seq). The
// caller must hold g.mu and, in shared mode, the cross-process lock.
func (g *Generator) advance(ctx context.Context) (int64, uint16, error) {
	now, err := g.readClock()
	if err != nil {
		return 0, 0, err
	}
	if now < g.lastMs {
		// Clock moved backward (NTP step, VM pause). Keep issuing against
		// the last observed millisecond until real time catches up; the
		// timestamp field temporarily decouples from wall clock but IDs
		// stay monotonic.
		now = g.lastMs
	}
	switch {
	case now == g.lastMs:
		next := (g.seq + 1) & MaxSequence
		if next == 0 {
			// 4096 IDs issued this millisecond: wait until the clock
			// strictly advances, then restart with a zero sequence.
			now, err = g.waitNextMs(ctx, g.lastMs)
			if err != nil {
				return 0, 0, err
			}
			g.lastMs, g.seq = now, 0
		} else {
			g.seq = next
		}
	default:
		g.lastMs, g.seq = now, 0
	}
	return g.lastMs, g.seq, nil
}

func (g *Generator) readClock() (int64, error) {
	now, err := g.clock()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	if now < 0 {
		return 0, fmt.Errorf("%w: clock reports pre-epoch time %d", ErrClockUnavailable, now)
	}
	return now, nil
}

// waitNextMs sleeps in small yielding steps until the clock reports a value
// strictly greater than last, or ctx expires.
func (g *Generator) waitNextMs(ctx context.Context, last int64) (int64, error) {
	start := time.Now()
	for {
		now, err := g.readClock()
		if err != nil {
			return 0, err
		}
		if now > last {
			waited := time.Since(start)
			g.stalls.Add(1)
			if g.onStall != nil {
				g.onStall(waited)
			}
			return now, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("tiny64: waiting for next millisecond: %w", ctx.Err())
		case <-time.After(g.waitStep):
		}
	}
}

// assemble injects entropy (and the machine ID prefix, when configured) and
// packs the final value.
func (g *Generator) assemble(ms int64, seq uint16) (ID, error) {
	random := g.entropy() & MaxRandom
	if g.machineBits > 0 {
		entropyBits := RandomBits - g.machineBits
		random = g.machineID<<entropyBits | random&(1<<entropyBits-1)
	}
	return Make(uint64(ms), seq, random)
}
