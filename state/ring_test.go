package state

import (
	"sync"
	"testing"
	"time"
)

func sampleN(n int) Sample {
	return Sample{CPU: float64(n), Memory: float64(n), Disk: float64(n), Timestamp: time.Now()}
}

func TestNewRingRejectsZeroCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		if _, err := NewRing(capacity); err == nil {
			t.Errorf("NewRing(%d): expected error, got nil", capacity)
		}
	}
}

func TestRingUnderCapacity(t *testing.T) {
	r, err := NewRing(10)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := 0; i < 4; i++ {
		r.Push(sampleN(i))
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("snapshot length = %d, want 4", len(snap))
	}
	for i, s := range snap {
		if s.CPU != float64(i) {
			t.Errorf("snapshot[%d].CPU = %f, want %d", i, s.CPU, i)
		}
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	const capacity = 5
	r, err := NewRing(capacity)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	// Push 12 samples into a capacity-5 ring: the snapshot must hold
	// exactly samples 7..11 in push order.
	for i := 0; i < 12; i++ {
		r.Push(sampleN(i))
	}

	snap := r.Snapshot()
	if len(snap) != capacity {
		t.Fatalf("snapshot length = %d, want %d", len(snap), capacity)
	}
	for i, s := range snap {
		want := float64(12 - capacity + i)
		if s.CPU != want {
			t.Errorf("snapshot[%d].CPU = %f, want %f", i, s.CPU, want)
		}
	}

	if r.Len() != capacity {
		t.Errorf("Len = %d, want %d", r.Len(), capacity)
	}
	if r.Cap() != capacity {
		t.Errorf("Cap = %d, want %d", r.Cap(), capacity)
	}
}

func TestRingExactlyAtCapacity(t *testing.T) {
	r, err := NewRing(3)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := 0; i < 3; i++ {
		r.Push(sampleN(i))
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	if snap[0].CPU != 0 || snap[2].CPU != 2 {
		t.Errorf("snapshot out of order: first=%f last=%f", snap[0].CPU, snap[2].CPU)
	}
}

func TestRingConcurrentPushers(t *testing.T) {
	const capacity = 64
	const perPusher = 500

	r, err := NewRing(capacity)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPusher; i++ {
				r.Push(sampleN(i))
				if i%50 == 0 {
					_ = r.Snapshot()
				}
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if len(snap) != capacity {
		t.Errorf("snapshot length after saturation = %d, want %d", len(snap), capacity)
	}
}
