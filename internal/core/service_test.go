package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"reflect"
	"strings"
	"time"
)

// memStore keeps records in memory. Filters are ignored.
type memStore struct {
	*recordingWriter
	mu      sync.Mutex
	records []Record
	cleared bool
}

func newMemStore(records ...Record) *memStore {
	return &memStore{recordingWriter: newRecordingWriter(), records: records}
}

func (s *memStore) Source(f Filter) RecordSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sliceSource(append([]Record(nil), s.records...))
}

func (s *memStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.cleared = true
	return nil
}

func waitResult(t *testing.T, svc *Service, id string) *OperationResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result(%s): %v", id, err)
	}
	return res
}

func TestService_ImportCompletes(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{BatchSize: 100})
	path := writeCSV(t, csvLines(250))

	id, err := svc.StartImport(path)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Phase != PhaseComplete {
		t.Fatalf("phase = %s, want complete (%s)", res.Phase, res.Error)
	}
	if res.Processed != 250 || res.Total != 250 {
		t.Errorf("processed/total = %d/%d, want 250/250", res.Processed, res.Total)
	}
	if sizes := store.sizes(); !reflect.DeepEqual(sizes, []int{100, 100, 50}) {
		t.Errorf("batch sizes = %v, want [100 100 50]", sizes)
	}

	status, err := svc.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Phase != PhaseComplete {
		t.Errorf("status phase = %s", status.Phase)
	}
	if svc.GuardStatus().Busy {
		t.Error("guard still busy after completion")
	}
}

func TestService_RejectsConcurrentOperation(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	svc := NewService(store, ServiceConfig{BatchSize: 10})

	id, err := svc.StartImport(writeCSV(t, csvLines(10)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-store.entered

	if _, err := svc.StartExportXML(Filter{}, filepath.Join(t.TempDir(), "x.xml")); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("StartExportXML err = %v, want ErrOperationInProgress", err)
	}
	if _, _, err := svc.Preview(context.Background(), Filter{}); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("Preview err = %v, want ErrOperationInProgress", err)
	}
	if err := svc.Clear(context.Background()); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("Clear err = %v, want ErrOperationInProgress", err)
	}
	if store.cleared {
		t.Error("rejected clear emptied the store")
	}

	close(store.block)
	if res := waitResult(t, svc, id); res.Phase != PhaseComplete {
		t.Errorf("phase = %s, want complete", res.Phase)
	}

	// The slot is free again once the import finishes.
	if err := svc.WaitForIdle(context.Background()); err != nil {
		t.Fatalf("WaitForIdle: %v", err)
	}
	if err := svc.Clear(context.Background()); err != nil {
		t.Errorf("Clear: %v", err)
	}
	if !store.cleared {
		t.Error("store not cleared")
	}
}

func TestService_Cancel(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	svc := NewService(store, ServiceConfig{BatchSize: 10})

	id, err := svc.StartImport(writeCSV(t, csvLines(25)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-store.entered

	if err := svc.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(store.block)

	res := waitResult(t, svc, id)
	if res.Phase != PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", res.Phase)
	}
	if res.Code != "OPS002" {
		t.Errorf("code = %q, want OPS002", res.Code)
	}
	// The in-flight batch completes; the rest is dropped.
	if got := store.rows(); got != 10 {
		t.Errorf("rows written = %d, want 10", got)
	}
}

func TestService_ImportMissingFileFails(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})

	id, err := svc.StartImport(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Phase != PhaseFailed {
		t.Errorf("phase = %s, want failed", res.Phase)
	}
	if !strings.Contains(res.Error, ErrSourceNotFound.Error()) {
		t.Errorf("error = %q, want it to mention %q", res.Error, ErrSourceNotFound)
	}
	if res.Code != "IMP001" {
		t.Errorf("code = %q, want IMP001", res.Code)
	}
}

func TestService_PanicFailsOperation(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})

	id, err := svc.start(KindImport, func(ctx context.Context, progress chan<- Progress, res *OperationResult) error {
		progress <- Progress{Processed: 3, Total: 10}
		panic("boom")
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}
	var last OperationStatus
	for st := range ch {
		last = st
	}
	if last.Phase != PhaseFailed {
		t.Errorf("final status phase = %s, want failed", last.Phase)
	}

	res := waitResult(t, svc, id)
	if res.Phase != PhaseFailed || !strings.Contains(res.Error, "boom") {
		t.Errorf("result = %+v, want failed with panic value", res)
	}
	if res.Code != "ERR000" {
		t.Errorf("code = %q, want ERR000", res.Code)
	}
	if res.Processed != 3 || res.Total != 10 {
		t.Errorf("processed/total = %d/%d, want 3/10", res.Processed, res.Total)
	}
	if svc.GuardStatus().Busy {
		t.Error("guard still held after panic")
	}
}

func TestService_ExportXLSXUsesPages(t *testing.T) {
	store := newMemStore(make([]Record, 25)...)
	svc := NewService(store, ServiceConfig{PageSize: 10})
	pages := newMemPages()
	svc.SetPageWriterFactory(pages.factory)

	id, err := svc.StartExportXLSX(Filter{}, []Field{FieldCity}, "/out/p.xlsx")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Phase != PhaseComplete {
		t.Fatalf("phase = %s (%s)", res.Phase, res.Error)
	}
	want := []string{"/out/p_1.xlsx", "/out/p_2.xlsx", "/out/p_3.xlsx"}
	if !reflect.DeepEqual(res.Files, want) {
		t.Errorf("files = %v, want %v", res.Files, want)
	}
	if res.Processed != 25 {
		t.Errorf("processed = %d, want 25", res.Processed)
	}
}

func TestService_ExportXLSXRequiresFields(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})

	_, err := svc.StartExportXLSX(Filter{}, nil, "/out/p.xlsx")

	if !errors.Is(err, ErrEmptyFieldSelection) {
		t.Errorf("err = %v, want ErrEmptyFieldSelection", err)
	}
	if svc.GuardStatus().Busy {
		t.Error("rejected export took the slot")
	}
}

func TestService_ExportXML(t *testing.T) {
	store := newMemStore(Record{FirstName: "A"}, Record{FirstName: "B"})
	svc := NewService(store, ServiceConfig{})
	dest := filepath.Join(t.TempDir(), "out.xml")

	id, err := svc.StartExportXML(Filter{}, dest)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Phase != PhaseComplete {
		t.Fatalf("phase = %s (%s)", res.Phase, res.Error)
	}
	if !reflect.DeepEqual(res.Files, []string{dest}) {
		t.Errorf("files = %v", res.Files)
	}
	if n := len(readMarkup(t, dest).Records); n != 2 {
		t.Errorf("document has %d records, want 2", n)
	}
}

func TestService_SubscribeProgress(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{BatchSize: 50})

	id, err := svc.StartImport(writeCSV(t, csvLines(120)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("SubscribeProgress: %v", err)
	}

	var last OperationStatus
	for st := range ch {
		last = st
	}
	if last.Phase != PhaseComplete || last.Progress.Processed != 120 {
		t.Errorf("last status = %+v, want complete with 120 processed", last)
	}

	// Subscribing after completion yields the final status and a closed channel.
	late, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("late SubscribeProgress: %v", err)
	}
	st, ok := <-late
	if !ok || st.Phase != PhaseComplete {
		t.Errorf("late status = %+v, %v; want complete", st, ok)
	}
	if _, ok := <-late; ok {
		t.Error("late channel not closed")
	}
}

func TestService_Preview(t *testing.T) {
	records := make([]Record, 1500)
	for i := range records {
		records[i].FirstName = "P"
	}
	svc := NewService(newMemStore(records...), ServiceConfig{})

	got, total, err := svc.Preview(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if total != 1500 {
		t.Errorf("total = %d, want 1500", total)
	}
	if len(got) != DefaultPreviewLimit {
		t.Errorf("got %d records, want %d", len(got), DefaultPreviewLimit)
	}
}

func TestService_UnknownOperation(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})

	if _, err := svc.Status("missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("Status err = %v", err)
	}
	if err := svc.Cancel("missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("Cancel err = %v", err)
	}
	if _, err := svc.SubscribeProgress("missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("SubscribeProgress err = %v", err)
	}
}
