package core

// export_markup.go streams records into a single XML document:
//
//	<TestProgram>
//	  <Record id="1">
//	    <Date>2024-01-02T00:00:00+00:00</Date>
//	    <FirstName>...</FirstName>
//	    ...
//	  </Record>
//	</TestProgram>
//
// Records go straight from the source to the encoder; nothing is collected.
// Ids are assigned at export time starting at 1.

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultMarkupProgressEvery is the XML export progress cadence in rows.
const DefaultMarkupProgressEvery = 500

// MarkupDateLayout renders dates with an explicit offset so they round-trip.
const MarkupDateLayout = "2006-01-02T15:04:05-07:00"

// MarkupRootElement is the document element name.
const MarkupRootElement = "TestProgram"

// MarkupRecord is one <Record> element. An absent date renders as <Date></Date>.
type MarkupRecord struct {
	XMLName   xml.Name `xml:"Record"`
	ID        int64    `xml:"id,attr"`
	Date      string   `xml:"Date"`
	FirstName string   `xml:"FirstName"`
	LastName  string   `xml:"LastName"`
	SurName   string   `xml:"SurName"`
	City      string   `xml:"City"`
	Country   string   `xml:"Country"`
}

// MarkupDocument is the whole document, for readers of exported files.
type MarkupDocument struct {
	XMLName xml.Name       `xml:"TestProgram"`
	Records []MarkupRecord `xml:"Record"`
}

// NewMarkupRecord builds the element for r with the given export id.
func NewMarkupRecord(id int64, r Record) MarkupRecord {
	m := MarkupRecord{
		ID:        id,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		SurName:   r.SurName,
		City:      r.City,
		Country:   r.Country,
	}
	if r.Date.Valid {
		m.Date = r.Date.Time.Format(MarkupDateLayout)
	}
	return m
}

// Record converts the element back into a Record.
func (m MarkupRecord) Record() (Record, error) {
	r := Record{
		FirstName: m.FirstName,
		LastName:  m.LastName,
		SurName:   m.SurName,
		City:      m.City,
		Country:   m.Country,
	}
	if m.Date != "" {
		t, err := time.Parse(MarkupDateLayout, m.Date)
		if err != nil {
			return r, fmt.Errorf("record %d: invalid date %q: %w", m.ID, m.Date, err)
		}
		r.Date = pgtype.Date{Time: t.UTC(), Valid: true}
	}
	return r, nil
}

// MarkupExporter streams a RecordSource into one XML file.
type MarkupExporter struct {
	ProgressEvery int64
	Logger        *slog.Logger
}

// NewMarkupExporter creates an exporter reporting every progressEvery rows.
func NewMarkupExporter(progressEvery int64) *MarkupExporter {
	return &MarkupExporter{ProgressEvery: progressEvery}
}

// Export writes src to dest. On failure the partial file is removed.
func (e *MarkupExporter) Export(ctx context.Context, src RecordSource, dest string, progress chan<- Progress) (err error) {
	start := time.Now()
	logger := e.logger().With("dest", dest)

	total, err := src.Count(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(dest)
			logger.Error("xml export failed", "error", err)
		}
	}()

	reporter := NewReporter(progress)
	reporter.Report(ctx, Progress{Processed: 0, Total: total})
	logger.Info("xml export started", "total", total)

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}
	enc := xml.NewEncoder(bw)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: MarkupRootElement}}
	if err := enc.EncodeToken(root); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}

	every := e.progressEvery()
	var processed int64
	var writeErr error
	err = src.Each(ctx, 0, 0, func(r Record) error {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := enc.Encode(NewMarkupRecord(processed+1, r)); err != nil {
			writeErr = &DestinationWriteError{Path: dest, Err: err}
			return writeErr
		}
		processed++
		if processed%every == 0 {
			reporter.Report(ctx, Progress{Processed: processed, Total: total})
		}
		return nil
	})
	if err != nil {
		if writeErr != nil || errors.Is(err, ErrCancelled) {
			return err
		}
		return fmt.Errorf("read records: %w", err)
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}
	if err := enc.Flush(); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}
	if err := f.Close(); err != nil {
		return &DestinationWriteError{Path: dest, Err: err}
	}

	if processed != total {
		logger.Warn("record count changed during export", "counted", total, "exported", processed)
		total = processed
	}
	reporter.Report(ctx, Progress{Processed: processed, Total: total})

	logger.Info("xml export completed",
		"rows", processed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (e *MarkupExporter) progressEvery() int64 {
	if e.ProgressEvery <= 0 {
		return DefaultMarkupProgressEvery
	}
	return e.ProgressEvery
}

func (e *MarkupExporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
