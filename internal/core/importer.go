package core

// importer.go streams a CSV file into the store in fixed-size batches.
//
// The flow is:
//
//  1. Open the file (ErrSourceNotFound if that fails, before any progress)
//  2. Pre-pass: count the lines that will become records
//  3. Report (0, total)
//  4. Parse each line, append to the batch, report (processed, total, record)
//  5. Flush every BatchSize records through the BatchWriter
//  6. At EOF flush the partial batch and report (processed, total)
//
// Lines longer than MaxLineLength are skipped like any other malformed line,
// in the pre-pass and in the import alike.
//
// Cancellation is checked before every line. A cancelled import discards the
// records buffered since the last flush; batches already written stay written.

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// DefaultBatchSize is the number of records per bulk write.
const DefaultBatchSize = 1000

// MaxLineLength bounds a single CSV line, terminator included. Longer lines
// are skipped.
const MaxLineLength = 1024 * 1024

// Importer loads CSV files through a BatchWriter.
type Importer struct {
	BatchSize int
	Logger    *slog.Logger
}

// NewImporter creates an importer with the given batch size.
// A non-positive size falls back to DefaultBatchSize.
func NewImporter(batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{BatchSize: batchSize}
}

// Import reads path and writes its records through w.
//
// Writers must not retain the batch slice after WriteBatch returns; the
// importer reuses its backing array for the next batch. Batch writes run to
// completion even if ctx is cancelled while they are in flight.
func (im *Importer) Import(ctx context.Context, path string, w BatchWriter, progress chan<- Progress) (ImportSummary, error) {
	start := time.Now()
	logger := im.logger().With("path", path)
	summary := ImportSummary{}

	total, err := countCandidateLines(path)
	if err != nil {
		return summary, err
	}
	summary.Total = total

	f, err := openSource(path)
	if err != nil {
		return summary, err
	}
	defer f.Close()

	reporter := NewReporter(progress)
	reporter.Report(ctx, Progress{Processed: 0, Total: total})
	logger.Info("import started", "total", total, "batch_size", im.batchSize())

	batch := make([]Record, 0, im.batchSize())
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.WriteBatch(context.WithoutCancel(ctx), batch); err != nil {
			logger.Error("batch write failed", "batch", summary.Batches, "error", err)
			return &BulkWriteError{BatchIndex: summary.Batches, Err: err}
		}
		logger.Debug("batch written", "batch", summary.Batches, "rows", len(batch))
		summary.Batches++
		batch = batch[:0]
		return nil
	}

	lines := newLineReader(WrapForStreaming(f))
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("import cancelled",
				"processed", summary.Processed,
				"discarded", len(batch),
			)
			summary.Duration = time.Since(start)
			return summary, cancelled(err)
		}

		if !lines.Next() {
			break
		}

		rec, ok := ParseLine(lines.Text())
		if !ok {
			continue
		}

		batch = append(batch, rec)
		summary.Processed++
		accepted := rec
		reporter.Report(ctx, Progress{Processed: summary.Processed, Total: total, Record: &accepted})

		if len(batch) >= im.batchSize() {
			if err := flush(); err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}
	}
	if err := lines.Err(); err != nil {
		summary.Duration = time.Since(start)
		return summary, fmt.Errorf("read %s: %w", path, err)
	}
	if lines.Oversized() > 0 {
		logger.Warn("skipped oversized lines", "count", lines.Oversized(), "max_bytes", MaxLineLength)
	}

	if err := flush(); err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	if summary.Processed != total {
		// The file changed between the pre-pass and the import.
		logger.Warn("line count changed during import", "counted", total, "processed", summary.Processed)
		total = summary.Processed
		summary.Total = total
	}
	reporter.Report(ctx, Progress{Processed: summary.Processed, Total: total})

	summary.Duration = time.Since(start)
	logger.Info("import completed",
		"processed", summary.Processed,
		"batches", summary.Batches,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (im *Importer) batchSize() int {
	if im.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return im.BatchSize
}

func (im *Importer) logger() *slog.Logger {
	if im.Logger != nil {
		return im.Logger
	}
	return slog.Default()
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, path, err)
	}
	return f, nil
}

// countCandidateLines is the one-time O(n) pre-pass that yields the total.
func countCandidateLines(path string) (int64, error) {
	f, err := openSource(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	lines := newLineReader(WrapForStreaming(f))
	for lines.Next() {
		if IsCandidateLine(lines.Text()) {
			n++
		}
	}
	if err := lines.Err(); err != nil {
		return 0, fmt.Errorf("count lines in %s: %w", path, err)
	}
	return n, nil
}

// lineReader yields the lines of r without their terminators. Unlike
// bufio.Scanner it does not stop at an over-long line: the line is drained,
// counted and passed over.
type lineReader struct {
	r         *bufio.Reader
	line      []byte
	err       error
	oversized int64
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, MaxLineLength)}
}

// Next advances to the next line that fits in the buffer. It returns false at
// end of input or on a read error.
func (lr *lineReader) Next() bool {
	if lr.err != nil {
		return false
	}
	for {
		line, err := lr.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			lr.oversized++
			if err := lr.drain(); err != nil {
				lr.fail(err)
				return false
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			lr.fail(err)
			return false
		}
		if len(line) == 0 {
			lr.fail(err)
			return false
		}
		lr.line = trimLineEnd(line)
		return true
	}
}

// Text returns the current line. The string is a copy.
func (lr *lineReader) Text() string {
	return string(lr.line)
}

// Err returns the first read error, not counting io.EOF.
func (lr *lineReader) Err() error {
	if errors.Is(lr.err, io.EOF) {
		return nil
	}
	return lr.err
}

// Oversized reports how many lines were skipped for exceeding MaxLineLength.
func (lr *lineReader) Oversized() int64 {
	return lr.oversized
}

// drain discards the rest of an over-long line, up to and including '\n'.
func (lr *lineReader) drain() error {
	for {
		_, err := lr.r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func (lr *lineReader) fail(err error) {
	if err == nil {
		err = io.EOF
	}
	lr.err = err
}

func trimLineEnd(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
