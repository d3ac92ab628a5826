package analysis

import (
	"context"
	"errors"
	"time"
)

// Precondition failures: these stop a whole job, they never count against
// the per-question failure counter.
var (
	ErrNoDocuments = errors.New("organization has no completed documents")
	ErrNoChunks    = errors.New("completed documents yielded no chunks")
	ErrJobNotFound = errors.New("analysis job not found")
)

// SuggestionRepository port. Upsert is keyed by (audit_id, question_id) and
// resets review status to PENDING on overwrite.
type SuggestionRepository interface {
	Upsert(ctx context.Context, s *Suggestion) error
	Get(ctx context.Context, auditID, questionID string) (*Suggestion, error)
	ListByAudit(ctx context.Context, auditID string) ([]*Suggestion, error)
	AnsweredQuestionIDs(ctx context.Context, auditID string) (map[string]bool, error)
	CountByAudit(ctx context.Context, auditID string) (int, error)
	UpdateReview(ctx context.Context, auditID, questionID string, status ReviewStatus, reviewedAt time.Time) error
}

// JobRepository port. AddProgress must be a single atomic increment so that
// counters never regress under concurrent callers.
type JobRepository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	ActiveByAudit(ctx context.Context, auditID string) (*Job, error)
	Update(ctx context.Context, j *Job) error
	AddProgress(ctx context.Context, id JobID, processed, failed int) error
}
