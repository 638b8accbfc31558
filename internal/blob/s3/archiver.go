package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/surebot/surebot/internal/domain"
)

// archiveBatchSize bounds how many rows are exported per upload so a large
// backlog is archived in several objects instead of one huge buffer.
const archiveBatchSize = 5000

// Archiver implements domain.Archiver: it exports opportunities older than
// a cutoff to JSONL objects in blob storage, then deletes the exported rows
// from the primary store. Each batch is uploaded and verified before its
// rows are removed, so a failed upload never loses data.
type Archiver struct {
	writer domain.BlobWriter
	opps   domain.OpportunityStore
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, opps domain.OpportunityStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		opps:   opps,
		audit:  audit,
	}
}

// ArchiveBefore exports every opportunity detected before cutoff and deletes
// the exported rows. It returns the number of rows archived.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for batch := 0; ; batch++ {
		opps, err := a.opps.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(opps) == 0 {
			break
		}

		buf, err := marshalJSONL(opps)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		path := archivePath(cutoff, batch)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload: %w", err)
		}

		// The batch is on durable storage; now drop it from hot storage.
		// ListBefore pages oldest-first, so deleting up to the newest row in
		// the batch removes exactly the exported rows.
		last := opps[len(opps)-1].DetectedAt
		deleted, err := a.opps.DeleteBefore(ctx, last.Add(time.Nanosecond))
		if err != nil {
			return total, fmt.Errorf("s3blob: archive delete: %w", err)
		}

		total += deleted

		if err := a.audit.Log(ctx, "archive.opportunities", map[string]any{
			"path":   path,
			"count":  deleted,
			"cutoff": cutoff.Format(time.RFC3339),
		}); err != nil {
			return total, fmt.Errorf("s3blob: archive audit log: %w", err)
		}

		if len(opps) < archiveBatchSize {
			break
		}
	}
	return total, nil
}

// archivePath builds the S3 key for an archive object, partitioned by the
// year-month of the cutoff time:
//
//	archive/opportunities/2026-08/batch-0000.jsonl
func archivePath(cutoff time.Time, batch int) string {
	return fmt.Sprintf("archive/opportunities/%s/batch-%04d.jsonl", cutoff.Format("2006-01"), batch)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
