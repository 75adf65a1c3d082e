package core

// export_tabular.go writes records to spreadsheet files, one file per page.
//
// A page holds at most PageSize data rows (1,000,000 by default, just under
// the ~1,048,576 row ceiling of a worksheet). When the export needs more than
// one page, files are named by inserting a 1-based page index before the
// extension: export.xlsx -> export_1.xlsx, export_2.xlsx, ...

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is the maximum number of data rows per spreadsheet file.
const DefaultPageSize = 1_000_000

// DefaultTabularProgressEvery is the tabular export progress cadence in rows.
const DefaultTabularProgressEvery = 1000

// PageWriter receives the rows of one output file.
type PageWriter interface {
	// WriteRow appends one row of cell values.
	WriteRow(values []string) error
	// Close finalizes and saves the file.
	Close() error
	// Abort releases resources and removes anything written so far.
	Abort()
}

// PageWriterFactory creates the writer for one output file.
type PageWriterFactory func(path string) (PageWriter, error)

// TabularExporter streams a RecordSource into spreadsheet pages.
type TabularExporter struct {
	PageSize      int64
	ProgressEvery int64
	NewPage       PageWriterFactory
	Logger        *slog.Logger
}

// NewTabularExporter creates an exporter writing .xlsx pages.
func NewTabularExporter(pageSize, progressEvery int64) *TabularExporter {
	return &TabularExporter{
		PageSize:      pageSize,
		ProgressEvery: progressEvery,
		NewPage:       NewXLSXPage,
	}
}

// PagePath returns the file name for page index (1-based) out of pages.
// A single page keeps dest unchanged.
func PagePath(dest string, index, pages int) string {
	if pages <= 1 {
		return dest
	}
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)
	return base + "_" + strconv.Itoa(index) + ext
}

// PageCount returns how many pages total rows need. An empty export still
// produces one page holding only the header row.
func PageCount(total, pageSize int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + pageSize - 1) / pageSize)
}

// Export writes src to dest, projecting fields in the given order, and returns
// the paths of the files it wrote.
func (e *TabularExporter) Export(ctx context.Context, src RecordSource, fields []Field, dest string, progress chan<- Progress) ([]string, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyFieldSelection
	}
	for _, f := range fields {
		if !f.Valid() {
			return nil, fmt.Errorf("unknown export field %q", f)
		}
	}

	start := time.Now()
	logger := e.logger().With("dest", dest)

	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSize := e.pageSize()
	pages := PageCount(total, pageSize)
	every := e.progressEvery()

	reporter := NewReporter(progress)
	reporter.Report(ctx, Progress{Processed: 0, Total: total})
	logger.Info("tabular export started", "total", total, "pages", pages)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = string(f)
	}

	var processed int64
	files := make([]string, 0, pages)

	for page := 1; page <= pages; page++ {
		path := PagePath(dest, page, pages)
		offset := int64(page-1) * pageSize

		n, err := e.writePage(ctx, src, path, header, fields, offset, func() {
			processed++
			if processed%every == 0 {
				reporter.Report(ctx, Progress{Processed: processed, Total: total})
			}
		})
		if err != nil {
			logger.Error("tabular export failed", "page", page, "path", path, "error", err)
			return files, err
		}
		files = append(files, path)
		logger.Debug("page written", "page", page, "path", path, "rows", n)
	}

	if processed != total {
		logger.Warn("record count changed during export", "counted", total, "exported", processed)
		total = processed
	}
	reporter.Report(ctx, Progress{Processed: processed, Total: total})

	logger.Info("tabular export completed",
		"rows", processed,
		"files", len(files),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return files, nil
}

// writePage writes one file. On any failure the partial file is removed.
func (e *TabularExporter) writePage(ctx context.Context, src RecordSource, path string, header []string, fields []Field, offset int64, onRow func()) (int64, error) {
	w, err := e.newPage(path)
	if err != nil {
		return 0, &DestinationWriteError{Path: path, Err: err}
	}

	if err := w.WriteRow(header); err != nil {
		w.Abort()
		return 0, &DestinationWriteError{Path: path, Err: err}
	}

	var rows int64
	var writeErr error
	err = src.Each(ctx, offset, e.pageSize(), func(r Record) error {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := w.WriteRow(Project(r, fields)); err != nil {
			writeErr = &DestinationWriteError{Path: path, Err: err}
			return writeErr
		}
		rows++
		onRow()
		return nil
	})
	if err != nil {
		w.Abort()
		if writeErr != nil || errors.Is(err, ErrCancelled) {
			return rows, err
		}
		return rows, fmt.Errorf("read records: %w", err)
	}

	if err := w.Close(); err != nil {
		w.Abort()
		return rows, &DestinationWriteError{Path: path, Err: err}
	}
	return rows, nil
}

func (e *TabularExporter) newPage(path string) (PageWriter, error) {
	if e.NewPage != nil {
		return e.NewPage(path)
	}
	return NewXLSXPage(path)
}

func (e *TabularExporter) pageSize() int64 {
	if e.PageSize <= 0 {
		return DefaultPageSize
	}
	return e.PageSize
}

func (e *TabularExporter) progressEvery() int64 {
	if e.ProgressEvery <= 0 {
		return DefaultTabularProgressEvery
	}
	return e.ProgressEvery
}

func (e *TabularExporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
