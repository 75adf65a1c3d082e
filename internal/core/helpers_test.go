package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func date(y int, m time.Month, d int) pgtype.Date {
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// writeCSV writes lines to a temp file and returns its path.
func writeCSV(t testing.TB, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persons.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// csvLines returns n valid lines.
func csvLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("2024-01-%02d;First%d;Last%d;Sur%d;City%d;Country", i%28+1, i, i, i, i)
	}
	return lines
}

// recordingWriter copies every batch it receives, since the importer reuses
// the slice.
type recordingWriter struct {
	mu      sync.Mutex
	batches [][]Record
	failAt  int // batch index to fail on; -1 never
	err     error
	block   chan struct{} // if set, WriteBatch waits on it
	entered chan struct{} // signalled before waiting on block
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{failAt: -1}
}

func (w *recordingWriter) WriteBatch(ctx context.Context, batch []Record) error {
	if w.block != nil {
		if w.entered != nil {
			w.entered <- struct{}{}
		}
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.batches) == w.failAt {
		return w.err
	}
	w.batches = append(w.batches, append([]Record(nil), batch...))
	return nil
}

func (w *recordingWriter) sizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes := make([]int, len(w.batches))
	for i, b := range w.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (w *recordingWriter) rows() int {
	n := 0
	for _, s := range w.sizes() {
		n += s
	}
	return n
}

// generatedSource produces n synthetic records without holding them.
type generatedSource struct {
	n int64
}

func (s generatedSource) Count(ctx context.Context) (int64, error) {
	return s.n, nil
}

func (s generatedSource) Each(ctx context.Context, offset, limit int64, fn func(Record) error) error {
	return s.eachIndex(offset, limit, func(i int64) error {
		return fn(Record{FirstName: fmt.Sprintf("F%d", i), City: "C"})
	})
}

// sliceSource serves a fixed set of records.
type sliceSource []Record

func (s sliceSource) Count(ctx context.Context) (int64, error) {
	return int64(len(s)), nil
}

func (s sliceSource) Each(ctx context.Context, offset, limit int64, fn func(Record) error) error {
	return generatedSource{n: int64(len(s))}.eachIndex(offset, limit, func(i int64) error {
		return fn(s[i])
	})
}

func (s generatedSource) eachIndex(offset, limit int64, fn func(int64) error) error {
	end := s.n
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for i := offset; i < end; i++ {
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// collect drains a progress channel until it is closed.
func collect(ch <-chan Progress) <-chan []Progress {
	out := make(chan []Progress, 1)
	go func() {
		var samples []Progress
		for p := range ch {
			samples = append(samples, p)
		}
		out <- samples
	}()
	return out
}

func assertMonotonic(t *testing.T, samples []Progress) {
	t.Helper()
	for i := 1; i < len(samples); i++ {
		if samples[i].Processed < samples[i-1].Processed {
			t.Fatalf("processed went backwards at sample %d: %d -> %d",
				i, samples[i-1].Processed, samples[i].Processed)
		}
	}
}
