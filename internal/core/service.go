package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence collaborator: a batch writer, a filtered record
// source, and a way to empty the table.
type Store interface {
	BatchWriter
	Source(f Filter) RecordSource
	Clear(ctx context.Context) error
}

// ServiceConfig tunes the pipeline. Zero values fall back to defaults.
type ServiceConfig struct {
	BatchSize            int
	PageSize             int64
	TabularProgressEvery int64
	MarkupProgressEvery  int64
	PreviewLimit         int
	Timeout              time.Duration // per operation; 0 means no limit
	ResultRetention      time.Duration // how long finished operations stay queryable
}

// DefaultPreviewLimit is how many records Preview returns.
const DefaultPreviewLimit = 1000

// DefaultResultRetention is how long a finished operation stays queryable.
const DefaultResultRetention = 5 * time.Minute

// Service runs transfer operations in the background, one at a time.
type Service struct {
	store    Store
	cfg      ServiceConfig
	guard    *OperationGuard
	importer *Importer
	tabular  *TabularExporter
	markup   *MarkupExporter

	mu  sync.RWMutex
	ops map[string]*operation
}

type operation struct {
	ID     string
	Kind   OperationKind
	Cancel context.CancelFunc
	Done   chan struct{}
	Result *OperationResult

	mu        sync.Mutex
	status    OperationStatus
	listeners []chan OperationStatus
}

// NewService creates a Service over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = DefaultPreviewLimit
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = DefaultResultRetention
	}
	return &Service{
		store:    store,
		cfg:      cfg,
		guard:    NewOperationGuard(),
		importer: NewImporter(cfg.BatchSize),
		tabular:  NewTabularExporter(cfg.PageSize, cfg.TabularProgressEvery),
		markup:   NewMarkupExporter(cfg.MarkupProgressEvery),
		ops:      make(map[string]*operation),
	}
}

// SetPageWriterFactory replaces how tabular pages are written.
func (s *Service) SetPageWriterFactory(f PageWriterFactory) {
	s.tabular.NewPage = f
}

// StartImport begins importing the CSV file at path.
// Returns ErrOperationInProgress if another operation is running.
func (s *Service) StartImport(path string) (string, error) {
	return s.start(KindImport, func(ctx context.Context, progress chan<- Progress, res *OperationResult) error {
		_, err := s.importer.Import(ctx, path, s.store, progress)
		return err
	})
}

// StartExportXLSX begins a spreadsheet export of the filtered records.
// An empty field selection is rejected before any operation starts.
func (s *Service) StartExportXLSX(filter Filter, fields []Field, dest string) (string, error) {
	if len(fields) == 0 {
		return "", ErrEmptyFieldSelection
	}
	src := s.store.Source(filter)
	return s.start(KindExportXLSX, func(ctx context.Context, progress chan<- Progress, res *OperationResult) error {
		files, err := s.tabular.Export(ctx, src, fields, dest, progress)
		res.Files = files
		return err
	})
}

// StartExportXML begins an XML export of the filtered records.
func (s *Service) StartExportXML(filter Filter, dest string) (string, error) {
	src := s.store.Source(filter)
	return s.start(KindExportXML, func(ctx context.Context, progress chan<- Progress, res *OperationResult) error {
		err := s.markup.Export(ctx, src, dest, progress)
		if err == nil {
			res.Files = []string{dest}
		}
		return err
	})
}

// Preview returns up to PreviewLimit filtered records and the filtered total.
func (s *Service) Preview(ctx context.Context, filter Filter) ([]Record, int64, error) {
	if err := s.guard.TryAcquire(KindPreview); err != nil {
		return nil, 0, err
	}
	defer s.guard.Release()

	src := s.store.Source(filter)
	total, err := src.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	records := make([]Record, 0, min(int64(s.cfg.PreviewLimit), total))
	err = src.Each(ctx, 0, int64(s.cfg.PreviewLimit), func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("read records: %w", err)
	}
	return records, total, nil
}

// Clear deletes every stored record.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.guard.TryAcquire(KindClear); err != nil {
		return err
	}
	defer s.guard.Release()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	slog.Info("store cleared")
	return nil
}

// SubscribeProgress returns a channel that receives status updates.
// The channel is closed when the operation completes.
func (s *Service) SubscribeProgress(id string) (<-chan OperationStatus, error) {
	op, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan OperationStatus, 10)

	op.mu.Lock()
	defer op.mu.Unlock()

	ch <- op.status
	select {
	case <-op.Done:
		close(ch)
	default:
		op.listeners = append(op.listeners, ch)
	}
	return ch, nil
}

// Cancel stops a running operation. Cancelling a finished one is a no-op.
func (s *Service) Cancel(id string) error {
	op, err := s.get(id)
	if err != nil {
		return err
	}
	op.Cancel()
	return nil
}

// Status returns the current status without blocking.
func (s *Service) Status(id string) (OperationStatus, error) {
	op, err := s.get(id)
	if err != nil {
		return OperationStatus{}, err
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status, nil
}

// Result blocks until the operation completes or ctx is done.
func (s *Service) Result(ctx context.Context, id string) (*OperationResult, error) {
	op, err := s.get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-op.Done:
		return op.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GuardStatus reports whether an operation is running.
func (s *Service) GuardStatus() GuardStatus {
	return s.guard.Status()
}

// WaitForIdle blocks until no operation is running or ctx is done.
func (s *Service) WaitForIdle(ctx context.Context) error {
	return s.guard.WaitForDrain(ctx)
}

type runFunc func(ctx context.Context, progress chan<- Progress, res *OperationResult) error

func (s *Service) start(kind OperationKind, run runFunc) (string, error) {
	if err := s.guard.TryAcquire(kind); err != nil {
		return "", err
	}

	id := uuid.New().String()

	var ctx context.Context
	var cancel context.CancelFunc
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	op := &operation{
		ID:     id,
		Kind:   kind,
		Cancel: cancel,
		Done:   make(chan struct{}),
		status: OperationStatus{OperationID: id, Kind: kind, Phase: PhaseStarting},
	}

	s.mu.Lock()
	s.ops[id] = op
	s.mu.Unlock()

	go s.execute(ctx, op, run)

	return id, nil
}

func (s *Service) execute(ctx context.Context, op *operation, run runFunc) {
	logger := slog.With("operation_id", op.ID, "kind", op.Kind)
	startTime := time.Now()
	result := &OperationResult{OperationID: op.ID, Kind: op.Kind}

	progress := make(chan Progress, 64)
	forwarded := make(chan struct{})
	var last Progress
	go func() {
		defer close(forwarded)
		for p := range progress {
			last = p
			op.update(func(st *OperationStatus) {
				st.Phase = PhaseRunning
				st.Progress = p
			})
		}
	}()
	stopForwarding := sync.OnceFunc(func() {
		close(progress)
		<-forwarded
		result.Processed = last.Processed
		result.Total = last.Total
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in operation", "panic", r)
			stopForwarding()
			err := fmt.Errorf("internal error: %v", r)
			result.Phase = PhaseFailed
			result.Error = err.Error()
			result.Code = MapError(err).Code
			s.finish(op, result, startTime)
		}
	}()

	err := run(ctx, progress, result)
	stopForwarding()

	switch {
	case err == nil:
		result.Phase = PhaseComplete
	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Phase = PhaseCancelled
		result.Error = err.Error()
	default:
		result.Phase = PhaseFailed
		result.Error = err.Error()
	}

	if err != nil {
		result.Code = MapError(err).Code
		logger.Warn("operation ended", "phase", result.Phase, "error", err, "code", result.Code)
	}
	s.finish(op, result, startTime)
}

// finish publishes the result and frees the slot before Done is closed, so
// a caller woken by Result can start the next operation immediately.
func (s *Service) finish(op *operation, result *OperationResult, startTime time.Time) {
	result.Duration = time.Since(startTime)
	op.Result = result
	op.Cancel()
	s.guard.Release()

	op.mu.Lock()
	op.status.Phase = result.Phase
	op.status.Error = result.Error
	if result.Phase == PhaseComplete {
		op.status.Progress.Record = nil
	}
	final := op.status
	for _, ch := range op.listeners {
		select {
		case ch <- final:
		default:
			// Make room: the final status must not be dropped.
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
	}
	op.listeners = nil
	close(op.Done)
	op.mu.Unlock()

	s.cleanup(op.ID, s.cfg.ResultRetention)
}

// update applies fn to the status and notifies listeners. Slow listeners
// miss intermediate updates but always receive the final one.
func (op *operation) update(fn func(*OperationStatus)) {
	op.mu.Lock()
	defer op.mu.Unlock()

	fn(&op.status)
	for _, ch := range op.listeners {
		select {
		case ch <- op.status:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (s *Service) get(id string) (*operation, error) {
	s.mu.RLock()
	op, ok := s.ops[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return op, nil
}

// cleanup removes the operation from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.ops, id)
		s.mu.Unlock()
	})
}
