package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs. *Writer
// satisfies it; tests substitute a fake.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver periodically copies aged alert records to object storage as
// JSONL, partitioned by the year-month of the cutoff. Archival is additive:
// records stay in the primary store so de-duplication keeps working, and the
// archive serves as an off-database audit trail.
type Archiver struct {
	writer    BlobWriter
	alerts    domain.AlertStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that archives records older than retention,
// checking once per interval.
func NewArchiver(writer BlobWriter, alerts domain.AlertStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		alerts:    alerts,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on startup and then once per interval until the context is
// cancelled. Archive failures are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		count, err := a.ArchiveAlerts(ctx, time.Now().Add(-a.retention))
		if err != nil {
			a.logger.ErrorContext(ctx, "archive failed", slog.String("error", err.Error()))
		} else if count > 0 {
			a.logger.InfoContext(ctx, "alerts archived", slog.Int64("count", count))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ArchiveAlerts queries all alert records before the cutoff, serializes them
// to JSONL, and uploads the file to archive/alerts/YYYY-MM.jsonl. It returns
// the number of archived records.
func (a *Archiver) ArchiveAlerts(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.alerts.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts marshal: %w", err)
	}

	path := archivePath("alerts", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts upload: %w", err)
	}

	return int64(len(records)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/alerts/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
