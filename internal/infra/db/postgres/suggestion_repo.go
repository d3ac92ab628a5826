package postgres

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

// Upsert via the (audit_id, question_id) unique constraint; overwrite resets
// the review decision
func (r *SuggestionRepository) Upsert(ctx context.Context, s *domain.Suggestion) error {
	const q = `
INSERT INTO ai_suggestions
  (id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
   sources_json, review_status, created_at, reviewed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULL)
ON CONFLICT (audit_id, question_id) DO UPDATE SET
  label=EXCLUDED.label, confidence=EXCLUDED.confidence, reasoning=EXCLUDED.reasoning,
  suggested_evidence=EXCLUDED.suggested_evidence, sources_json=EXCLUDED.sources_json,
  review_status=EXCLUDED.review_status, created_at=EXCLUDED.created_at, reviewed_at=NULL;
`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	review := s.ReviewStatus
	if review == "" {
		review = domain.ReviewPending
	}
	sources, err := json.Marshal(s.Sources)
	if err != nil {
		sources = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.AuditID, s.QuestionID, s.Label, s.Confidence, s.Reasoning, s.SuggestedEvidence,
		string(sources), review, created,
	)
	return err
}

func (r *SuggestionRepository) Get(ctx context.Context, auditID, questionID string) (*domain.Suggestion, error) {
	const q = `
SELECT id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
       sources_json, review_status, created_at, reviewed_at
FROM ai_suggestions
WHERE audit_id=$1 AND question_id=$2 LIMIT 1;
`
	return scanSuggestion(r.db.QueryRowContext(ctx, q, auditID, questionID))
}

func (r *SuggestionRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.Suggestion, error) {
	const q = `
SELECT id, audit_id, question_id, label, confidence, reasoning, suggested_evidence,
       sources_json, review_status, created_at, reviewed_at
FROM ai_suggestions
WHERE audit_id=$1 ORDER BY created_at, question_id;
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

func (r *SuggestionRepository) AnsweredQuestionIDs(ctx context.Context, auditID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT question_id FROM ai_suggestions WHERE audit_id=$1;`, auditID)
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

func (r *SuggestionRepository) CountByAudit(ctx context.Context, auditID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ai_suggestions WHERE audit_id=$1;`, auditID).Scan(&n)
	return n, err
}

func (r *SuggestionRepository) UpdateReview(ctx context.Context, auditID, questionID string, status domain.ReviewStatus, reviewedAt time.Time) error {
	const q = `
UPDATE ai_suggestions
SET review_status = $1, reviewed_at = $2
WHERE audit_id = $3 AND question_id = $4;`
	_, err := r.db.ExecContext(ctx, q, status, reviewedAt, auditID, questionID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
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
