package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// Archiver exports aged mint receipts to object storage and prunes them from
// the primary store. Receipts are the only high-volume table; schedules and
// audit entries stay in PostgreSQL indefinitely.
type Archiver struct {
	writer   domain.BlobWriter
	receipts domain.ReceiptStore
	audit    domain.AuditStore
	logger   *slog.Logger

	// BatchSize caps how many receipts one archive file holds.
	BatchSize int
}

// NewArchiver creates an Archiver with the given collaborators.
func NewArchiver(writer domain.BlobWriter, receipts domain.ReceiptStore, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		receipts:  receipts,
		audit:     audit,
		logger:    logger.With(slog.String("component", "archiver")),
		BatchSize: 1000,
	}
}

// Run archives all receipts minted strictly before the cutoff, batch by
// batch, and deletes them from the store once every batch has been uploaded.
// The upload happens before the delete, so a crash mid-run leaves duplicated
// archive data rather than lost receipts. Returns the number of archived
// receipts.
func (a *Archiver) Run(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for batch := 0; ; batch++ {
		receipts, err := a.receipts.ListBefore(ctx, before, a.BatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive receipts query: %w", err)
		}
		if len(receipts) == 0 {
			break
		}

		buf, err := marshalJSONL(receipts)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive receipts marshal: %w", err)
		}

		path := archivePath(before, batch)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive receipts upload: %w", err)
		}

		// Only receipts covered by the uploaded batch may be pruned. The
		// batch is the oldest slice, so deleting up to its last entry is
		// exact.
		cutoff := receipts[len(receipts)-1].MintedAt.Add(time.Nanosecond)
		deleted, err := a.receipts.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: prune receipts: %w", err)
		}

		total += int64(len(receipts))
		a.logger.InfoContext(ctx, "archived receipt batch",
			slog.String("path", path),
			slog.Int("count", len(receipts)),
			slog.Int64("deleted", deleted),
		)

		if len(receipts) < a.BatchSize {
			break
		}
	}

	if total > 0 {
		if err := a.audit.Log(ctx, "archive.receipts", map[string]any{
			"count":  total,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return total, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return total, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time and named by the full cutoff instant plus
// the batch index:
//
//	archive/receipts/2026-03/20260302T000000-000.jsonl
//
// The instant keeps runs with distinct cutoffs in the same month from
// colliding; the pruned receipts exist nowhere else, so a key reuse would
// overwrite the only copy.
func archivePath(before time.Time, batch int) string {
	return fmt.Sprintf("archive/receipts/%s/%s-%03d.jsonl",
		before.Format("2006-01"), before.UTC().Format("20060102T150405"), batch)
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
