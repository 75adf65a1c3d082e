package core

import (
	"context"
	"testing"
	"time"
)

func TestReporter_NilChannel(t *testing.T) {
	var nilReporter *Reporter
	nilReporter.Report(context.Background(), Progress{Processed: 1})

	NewReporter(nil).Report(context.Background(), Progress{Processed: 1})
}

func TestReporter_NeverGoesBackwards(t *testing.T) {
	ch := make(chan Progress, 3)
	r := NewReporter(ch)
	ctx := context.Background()

	r.Report(ctx, Progress{Processed: 5, Total: 10})
	r.Report(ctx, Progress{Processed: 3, Total: 10})
	r.Report(ctx, Progress{Processed: 7, Total: 10})
	close(ch)

	var got []int64
	for p := range ch {
		got = append(got, p.Processed)
	}
	want := []int64{5, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReporter_CancelUnblocks(t *testing.T) {
	ch := make(chan Progress) // never drained
	r := NewReporter(ch)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Report(ctx, Progress{Processed: 1})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report did not return after cancellation")
	}
}

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{}, 0},
		{Progress{Processed: 5}, 0},
		{Progress{Processed: 1, Total: 3}, 33},
		{Progress{Processed: 3, Total: 3}, 100},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %d, want %d", tt.p, got, tt.want)
		}
	}
}
