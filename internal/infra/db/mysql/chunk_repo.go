package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForDocument deletes every existing chunk for the document and
// inserts the new set in one transaction, preserving input order.
func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, id domain.DocumentID, chunks []*domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM compliance_document_chunks WHERE document_id = ?;`, id); err != nil {
		return err
	}

	const ins = `
INSERT INTO compliance_document_chunks
(document_id, chunk_index, content, start_offset, end_offset, page, embedding_json)
VALUES (?,?,?,?,?,?,?);
`
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, id, c.Index, c.Content, c.StartOffset, c.EndOffset, c.Page, vectorJSON(c.Embedding)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByDocument returns chunks in index order
func (r *ChunkRepository) ListByDocument(ctx context.Context, id domain.DocumentID) ([]*domain.Chunk, error) {
	const q = `
SELECT document_id, chunk_index, content, start_offset, end_offset, page, embedding_json
FROM compliance_document_chunks
WHERE document_id=? ORDER BY chunk_index;
`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding string
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Content, &c.StartOffset, &c.EndOffset, &c.Page, &embedding); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embedding), &c.Embedding); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListCompletedByOrg joins chunks with their completed owning documents.
// This is the retrieval candidate set; it is re-read fresh on every advance.
func (r *ChunkRepository) ListCompletedByOrg(ctx context.Context, org string) ([]*domain.RankedChunk, error) {
	const q = `
SELECT c.document_id, c.chunk_index, c.content, c.start_offset, c.end_offset, c.page, c.embedding_json, d.name
FROM compliance_document_chunks c
JOIN compliance_documents d ON d.id = c.document_id
WHERE d.org_id=? AND d.status=?
ORDER BY d.uploaded_at, c.document_id, c.chunk_index;
`
	rows, err := r.db.QueryContext(ctx, q, org, domain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RankedChunk
	for rows.Next() {
		var c domain.RankedChunk
		var embedding string
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Content, &c.StartOffset, &c.EndOffset, &c.Page, &embedding, &c.DocumentName); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embedding), &c.Embedding); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteForDocument removes all chunks for a document
func (r *ChunkRepository) DeleteForDocument(ctx context.Context, id domain.DocumentID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM compliance_document_chunks WHERE document_id = ?;`, id)
	return err
}
