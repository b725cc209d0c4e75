package tiny64

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSharedStateSequenceSpansGenerators(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock(5000)

	g1 := mustGenerator(t, WithClock(clock), WithSharedState(dir, time.Second))
	g2 := mustGenerator(t, WithClock(clock), WithSharedState(dir, time.Second))

	// Interleaved calls against one lock domain must walk a single logical
	// sequence counter.
	gens := []*Generator{g1, g2, g1, g2}
	for i, g := range gens {
		id, err := g.Next(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if id.TimestampMs() != 5000 || int(id.Sequence()) != i {
			t.Fatalf("call %d: got (%d,%d), want (5000,%d)", i, id.TimestampMs(), id.Sequence(), i)
		}
	}
}

func TestSharedStatePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock(6000)

	g1 := mustGenerator(t, WithClock(clock), WithSharedState(dir, time.Second))
	for i := 0; i < 3; i++ {
		if _, err := g1.Next(context.Background()); err != nil {
			t.Fatalf("g1 call %d: %v", i, err)
		}
	}

	// A fresh instance, as after a process restart, continues the counter.
	g2 := mustGenerator(t, WithClock(clock), WithSharedState(dir, time.Second))
	id, err := g2.Next(context.Background())
	if err != nil {
		t.Fatalf("g2: %v", err)
	}
	if id.Sequence() != 3 {
		t.Fatalf("restarted instance sequence = %d, want 3", id.Sequence())
	}
}

func TestSharedStateConcurrentNoDuplicatePairs(t *testing.T) {
	dir := t.TempDir()
	const generators = 4
	const perGenerator = 100

	var mu sync.Mutex
	pairs := make(map[uint64]bool, generators*perGenerator)

	var wg sync.WaitGroup
	for i := 0; i < generators; i++ {
		g := mustGenerator(t, WithSharedState(dir, 5*time.Second))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGenerator; j++ {
				id, err := g.Next(context.Background())
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				key := uint64(id) >> RandomBits
				mu.Lock()
				if pairs[key] {
					t.Errorf("duplicate (timestamp, sequence) pair %#x across generators", key)
				}
				pairs[key] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(pairs) != generators*perGenerator {
		t.Fatalf("got %d distinct pairs, want %d", len(pairs), generators*perGenerator)
	}
}

func TestSharedStateFileFormat(t *testing.T) {
	dir := t.TempDir()
	g := mustGenerator(t, WithClock(fixedClock(7000)), WithSharedState(dir, time.Second))
	if _, err := g.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "tiny64.state"))
	if err != nil {
		t.Fatalf("state file: %v", err)
	}
	if got := strings.TrimSpace(string(b)); got != "7000 0" {
		t.Fatalf("state file = %q, want %q", got, "7000 0")
	}
}

func TestSharedStateCorruptFileSurfaces(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tiny64.state"), []byte("not numbers"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := mustGenerator(t, WithSharedState(dir, time.Second))
	if _, err := g.Next(context.Background()); err == nil {
		t.Fatalf("corrupt state file must surface an error")
	}
	// The lock must have been released on the failure path.
	if _, err := os.Stat(filepath.Join(dir, "tiny64.lock")); !os.IsNotExist(err) {
		t.Fatalf("lock leaked after error: %v", err)
	}
}
