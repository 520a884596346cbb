package core

import (
	"sync"
	"testing"
)

// TestAdmission tests the slot counter at its cap
func TestAdmission(t *testing.T) {
	a := newAdmission(3)

	for i := 0; i < 3; i++ {
		if !a.tryAcquire() {
			t.Fatalf("acquire %d failed below the cap", i)
		}
	}
	if a.tryAcquire() {
		t.Error("acquired a slot past the cap")
	}
	if a.Active() != 3 {
		t.Errorf("Active = %d, want 3", a.Active())
	}

	a.release()
	if a.Active() != 2 {
		t.Errorf("Active after release = %d, want 2", a.Active())
	}
	if !a.tryAcquire() {
		t.Error("acquire failed after a release freed a slot")
	}
}

// TestAdmissionDefault tests that a non-positive cap falls back to the
// server default
func TestAdmissionDefault(t *testing.T) {
	a := newAdmission(0)

	granted := 0
	for a.tryAcquire() {
		granted++
		if granted > DefaultMaxConcurrency {
			break
		}
	}
	if granted != DefaultMaxConcurrency {
		t.Errorf("granted %d slots, want %d", granted, DefaultMaxConcurrency)
	}
}

// TestAdmissionConcurrent tests the counter under contention
func TestAdmissionConcurrent(t *testing.T) {
	a := newAdmission(4)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if a.tryAcquire() {
					if n := a.Active(); n < 1 || n > 4 {
						t.Errorf("Active = %d outside [1,4]", n)
					}
					a.release()
				}
			}
		}()
	}
	wg.Wait()

	if a.Active() != 0 {
		t.Errorf("Active = %d after all releases, want 0", a.Active())
	}
}
