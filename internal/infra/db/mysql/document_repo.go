package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Save insert/update Document record
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO compliance_documents
(id, org_id, name, original_filename, storage_key, content_type, size_bytes,
 status, error_message, uploaded_at, processed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 name=VALUES(name), status=VALUES(status), error_message=VALUES(error_message),
 processed_at=VALUES(processed_at);
`
	org := stringOrDash(d.OrgID)
	status := stringOrDash(string(d.Status))
	uploaded := d.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	var processed sql.NullTime
	if d.ProcessedAt != nil {
		processed = sql.NullTime{Time: *d.ProcessedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		d.ID, org, d.Name, d.OriginalFilename, d.StorageKey, d.ContentType, d.SizeBytes,
		status, d.ErrorMessage, uploaded, processed,
	)
	return err
}

// Get by ID + Org
func (r *DocumentRepository) Get(ctx context.Context, org string, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT id, org_id, name, original_filename, storage_key, content_type, size_bytes,
       status, error_message, uploaded_at, processed_at
FROM compliance_documents
WHERE org_id=? AND id=? LIMIT 1;
`
	return scanDocument(r.db.QueryRowContext(ctx, q, org, id))
}

// ListByOrg returns the org's documents, newest first
func (r *DocumentRepository) ListByOrg(ctx context.Context, org string) ([]*domain.Document, error) {
	const q = `
SELECT id, org_id, name, original_filename, storage_key, content_type, size_bytes,
       status, error_message, uploaded_at, processed_at
FROM compliance_documents
WHERE org_id=? ORDER BY uploaded_at DESC, id DESC;
`
	return r.queryDocuments(ctx, q, org)
}

// ListByOrgAndStatus filters on lifecycle status
func (r *DocumentRepository) ListByOrgAndStatus(ctx context.Context, org string, status domain.Status) ([]*domain.Document, error) {
	const q = `
SELECT id, org_id, name, original_filename, storage_key, content_type, size_bytes,
       status, error_message, uploaded_at, processed_at
FROM compliance_documents
WHERE org_id=? AND status=? ORDER BY uploaded_at DESC, id DESC;
`
	return r.queryDocuments(ctx, q, org, string(status))
}

// UpdateStatus hanya update kolom status + error_message
func (r *DocumentRepository) UpdateStatus(ctx context.Context, org string, id domain.DocumentID, status domain.Status, errMsg string) error {
	const q = `
UPDATE compliance_documents
SET status = ?, error_message = ?
WHERE org_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, status, errMsg, org, id)
	return err
}

// MarkProcessed stamps the COMPLETED state
func (r *DocumentRepository) MarkProcessed(ctx context.Context, org string, id domain.DocumentID) error {
	const q = `
UPDATE compliance_documents
SET status = ?, error_message = '', processed_at = NOW()
WHERE org_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, domain.StatusCompleted, org, id)
	return err
}

// Reset clears the previous processing outcome ahead of reprocessing
func (r *DocumentRepository) Reset(ctx context.Context, org string, id domain.DocumentID) error {
	const q = `
UPDATE compliance_documents
SET status = ?, error_message = '', processed_at = NULL
WHERE org_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, domain.StatusPending, org, id)
	return err
}

// Delete removes the document row; chunks cascade via FK
func (r *DocumentRepository) Delete(ctx context.Context, org string, id domain.DocumentID) error {
	const q = `DELETE FROM compliance_documents WHERE org_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, org, id)
	return err
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, q string, args ...any) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var processed sql.NullTime
	if err := row.Scan(
		&d.ID, &d.OrgID, &d.Name, &d.OriginalFilename, &d.StorageKey, &d.ContentType, &d.SizeBytes,
		&d.Status, &d.ErrorMessage, &d.UploadedAt, &processed,
	); err != nil {
		return nil, err
	}
	if processed.Valid {
		t := processed.Time
		d.ProcessedAt = &t
	}
	return &d, nil
}
