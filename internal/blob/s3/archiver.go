package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/averyhart/pettycoon/internal/domain"
)

// archiveContentType is the MIME type for newline-delimited JSON.
const archiveContentType = "application/x-ndjson"

// TradeArchiver implements domain.Archiver. It drains resolved trade offers
// from the primary store into monthly JSONL objects under
// archive/trades/YYYY-MM.jsonl, then deletes the archived rows.
//
// When the monthly object already exists the new records are appended to it,
// so repeated runs within a month accumulate into one file.
type TradeArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	trades domain.TradeStore
	audit  domain.AuditStore
	logger *slog.Logger
}

var _ domain.Archiver = (*TradeArchiver)(nil)

// NewTradeArchiver creates a TradeArchiver.
func NewTradeArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades domain.TradeStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeArchiver {
	return &TradeArchiver{
		writer: writer,
		reader: reader,
		trades: trades,
		audit:  audit,
		logger: logger.With(slog.String("component", "trade_archiver")),
	}
}

// ArchiveTrades uploads all offers resolved before the cutoff and then
// deletes them from the store. The upload happens first: a failure between
// upload and delete leaves duplicates in the archive on the next run, never
// lost rows. Returns the number of archived offers.
func (a *TradeArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	offers, err := a.trades.ListResolvedBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(offers) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(offers)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	body, err := a.withExisting(ctx, path, buf)
	if err != nil {
		return 0, err
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), archiveContentType); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	deleted, err := a.trades.DeleteResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades purge: %w", err)
	}

	count := int64(len(offers))
	a.logger.Info("archived resolved trades",
		slog.String("path", path),
		slog.Int64("archived", count),
		slog.Int64("deleted", deleted),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
		}
	}

	return count, nil
}

// withExisting prepends the current contents of the monthly object, if any,
// so that a Put replaces the file with old lines plus new lines.
func (a *TradeArchiver) withExisting(ctx context.Context, path string, fresh []byte) ([]byte, error) {
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fresh, nil
		}
		return nil, fmt.Errorf("s3blob: read existing archive %s: %w", path, err)
	}
	defer rc.Close()

	existing, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read existing archive %s: %w", path, err)
	}
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		existing = append(existing, '\n')
	}
	return append(existing, fresh...), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff.
//
//	archive/trades/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
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
