package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOperationGuard_AcquireRelease(t *testing.T) {
	guard := NewOperationGuard()

	if guard.Busy() {
		t.Fatal("new guard should not be busy")
	}

	if err := guard.TryAcquire(KindImport); err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	if !guard.Busy() {
		t.Error("guard should be busy after TryAcquire")
	}

	status := guard.Status()
	if status.Holder != KindImport {
		t.Errorf("Holder = %q, want %q", status.Holder, KindImport)
	}
	if status.Since == nil {
		t.Error("Since should be set while held")
	}

	guard.Release()

	if guard.Busy() {
		t.Error("guard should be free after Release")
	}
	if got := guard.Status(); got.Holder != "" || got.Since != nil {
		t.Errorf("status after Release = %+v, want empty", got)
	}
}

func TestOperationGuard_RejectsSecondOperation(t *testing.T) {
	guard := NewOperationGuard()

	if err := guard.TryAcquire(KindImport); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}

	// Second attempt must fail immediately (no blocking, no queueing)
	start := time.Now()
	err := guard.TryAcquire(KindExportXLSX)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("expected ErrOperationInProgress, got %v", err)
	}
	if elapsed > 10*time.Millisecond {
		t.Errorf("TryAcquire blocked for %v", elapsed)
	}
	if got := guard.Status().Holder; got != KindImport {
		t.Errorf("Holder = %q, want %q (rejected attempt must not overwrite)", got, KindImport)
	}

	guard.Release()

	if err := guard.TryAcquire(KindExportXLSX); err != nil {
		t.Errorf("TryAcquire after Release should succeed, got %v", err)
	}
	guard.Release()
}

func TestOperationGuard_ConcurrentAttempts(t *testing.T) {
	const attempts = 20

	guard := NewOperationGuard()

	var wg sync.WaitGroup
	var acquired atomic.Int32
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := guard.TryAcquire(KindImport); err == nil {
				acquired.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	// Nobody released, so exactly one attempt can have won
	if got := acquired.Load(); got != 1 {
		t.Errorf("acquired = %d, want 1", got)
	}
	guard.Release()
}

func TestOperationGuard_WaitForDrain(t *testing.T) {
	guard := NewOperationGuard()
	if err := guard.TryAcquire(KindExportXML); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- guard.WaitForDrain(context.Background())
	}()

	select {
	case <-drainDone:
		t.Error("WaitForDrain returned while held")
	case <-time.After(50 * time.Millisecond):
		// Expected - still waiting
	}

	guard.Release()

	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after Release")
	}
}

func TestOperationGuard_WaitForDrain_ContextCancelled(t *testing.T) {
	guard := NewOperationGuard()
	if err := guard.TryAcquire(KindClear); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	defer guard.Release()

	ctx, cancel := context.WithCancel(context.Background())

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- guard.WaitForDrain(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-drainDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not return after context cancellation")
	}
}
