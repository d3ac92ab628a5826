package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
)

type SuggestionRepository struct {
	db *sql.DB
}

func NewSuggestionRepository(db *sql.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Upsert keyed by the (audit_id, question_id) unique index. Re-analysis
// overwrites the judgment and resets review status to PENDING.
func (r *SuggestionRepository) Upsert(ctx context.Context, s *domain.Suggestion) error {
	const q = `
INSERT INTO ai_suggestions
  (id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
   sources_json, review_status, created_at, reviewed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,NULL)
ON DUPLICATE KEY UPDATE
  label=VALUES(label), confidence=VALUES(confidence), reasoning=VALUES(reasoning),
  suggested_evidence=VALUES(suggested_evidence), sources_json=VALUES(sources_json),
  review_status=VALUES(review_status), created_at=VALUES(created_at), reviewed_at=NULL;
`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	review := s.ReviewStatus
	if review == "" {
		review = domain.ReviewPending
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.AuditID, s.QuestionID, s.Label, s.Confidence, s.Reasoning, s.SuggestedEvidence,
		jsonOrEmpty(s.Sources), review, created,
	)
	return err
}

// Get by (audit, question)
func (r *SuggestionRepository) Get(ctx context.Context, auditID, questionID string) (*domain.Suggestion, error) {
	const q = `
SELECT id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
       sources_json, review_status, created_at, reviewed_at
FROM ai_suggestions
WHERE audit_id=? AND question_id=? LIMIT 1;
`
	return scanSuggestion(r.db.QueryRowContext(ctx, q, auditID, questionID))
}

// ListByAudit returns all suggestions for an audit
func (r *SuggestionRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.Suggestion, error) {
	const q = `
SELECT id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
       sources_json, review_status, created_at, reviewed_at
FROM ai_suggestions
WHERE audit_id=? ORDER BY created_at, question_id;
`
	rows, err := r.db.QueryContext(ctx, q, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AnsweredQuestionIDs returns the set of question ids already suggested
func (r *SuggestionRepository) AnsweredQuestionIDs(ctx context.Context, auditID string) (map[string]bool, error) {
	const q = `SELECT question_id FROM ai_suggestions WHERE audit_id=?;`
	rows, err := r.db.QueryContext(ctx, q, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CountByAudit returns the suggestion count for an audit
func (r *SuggestionRepository) CountByAudit(ctx context.Context, auditID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ai_suggestions WHERE audit_id=?;`, auditID).Scan(&n)
	return n, err
}

// UpdateReview stamps the review decision
func (r *SuggestionRepository) UpdateReview(ctx context.Context, auditID, questionID string, status domain.ReviewStatus, reviewedAt time.Time) error {
	const q = `
UPDATE ai_suggestions
SET review_status = ?, reviewed_at = ?
WHERE audit_id = ? AND question_id = ?;`
	_, err := r.db.ExecContext(ctx, q, status, reviewedAt, auditID, questionID)
	return err
}

func scanSuggestion(row rowScanner) (*domain.Suggestion, error) {
	var s domain.Suggestion
	var sources string
	var reviewed sql.NullTime
	if err := row.Scan(
		&s.ID, &s.AuditID, &s.QuestionID, &s.Label, &s.Confidence, &s.Reasoning, &s.SuggestedEvidence,
		&sources, &s.ReviewStatus, &s.CreatedAt, &reviewed,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &s.Sources); err != nil {
		s.Sources = nil
	}
	if reviewed.Valid {
		t := reviewed.Time
		s.ReviewedAt = &t
	}
	return &s, nil
}
