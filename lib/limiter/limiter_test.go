// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/testutil"
)

func TestDefaultCapacityIsOne(t *testing.T) {
	t.Parallel()
	limiter := New()
	release, err := limiter.Acquire(context.Background(), "scan")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, ok := limiter.TryAcquire("scan"); ok {
		t.Fatal("second permit granted with default capacity 1")
	}
	release()
	release() // idempotent
	second, ok := limiter.TryAcquire("scan")
	if !ok {
		t.Fatal("permit not returned after release")
	}
	second()
	if limiter.Capacity("scan") != DefaultCapacity {
		t.Errorf("Capacity: got %d, want %d", limiter.Capacity("scan"), DefaultCapacity)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()
	limiter := New()
	release, _ := limiter.Acquire(context.Background(), "e")

	acquired := make(chan func())
	go func() {
		next, err := limiter.Acquire(context.Background(), "e")
		if err == nil {
			acquired <- next
		}
	}()
	testutil.RequireNoReceive(t, acquired, 50*time.Millisecond, "acquired while full")
	release()
	next := testutil.RequireReceive(t, acquired, 5*time.Second, "blocked acquire")
	next()
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()
	limiter := New()
	release, _ := limiter.Acquire(context.Background(), "e")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limiter.Acquire(ctx, "e"); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with cancelled context: got %v, want context.Canceled", err)
	}
}

func TestAtMostNInFlight(t *testing.T) {
	t.Parallel()
	const capacity = 3
	limiter := New()
	if err := limiter.Set("batch", capacity); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(context.Background(), "batch")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()
			now := current.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(time.Millisecond) //nolint:realclock holds the permit briefly
			current.Add(-1)
		}()
	}
	wg.Wait()
	if peak.Load() > capacity {
		t.Errorf("peak in-flight: got %d, want at most %d", peak.Load(), capacity)
	}
	if limiter.InFlight("batch") != 0 {
		t.Errorf("InFlight after completion: got %d, want 0", limiter.InFlight("batch"))
	}
}

func TestEntriesAreIndependent(t *testing.T) {
	t.Parallel()
	limiter := New()
	release, _ := limiter.Acquire(context.Background(), "a")
	defer release()
	other, ok := limiter.TryAcquire("b")
	if !ok {
		t.Fatal("entry b blocked by entry a")
	}
	other()
}

func TestSet(t *testing.T) {
	t.Parallel()
	limiter := New()
	if err := limiter.Set("e", 0); err == nil {
		t.Error("Set(0): expected error")
	}
	if err := limiter.Set("e", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := limiter.Set("e", 2); err != nil {
		t.Errorf("Set same capacity again: %v", err)
	}
	if err := limiter.Set("e", 5); err == nil {
		t.Error("Set different capacity: expected error")
	}
}
