package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job row
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO ai_analysis_jobs
  (id, audit_id, org_id, chapter, status, total_questions, processed_questions,
   failed_questions, error_message, created_at, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.AuditID, j.OrgID, j.Chapter, j.Status, j.TotalQuestions, j.ProcessedQuestions,
		j.FailedQuestions, j.ErrorMessage, created, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	return err
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, audit_id, org_id, chapter, status, total_questions, processed_questions,
       failed_questions, error_message, created_at, started_at, completed_at
FROM ai_analysis_jobs
WHERE id=? LIMIT 1;
`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return j, err
}

// ActiveByAudit returns the non-terminal job for an audit, nil when none.
// This is the lookup-before-create that keeps job creation idempotent.
func (r *JobRepository) ActiveByAudit(ctx context.Context, auditID string) (*domain.Job, error) {
	const q = `
SELECT id, audit_id, org_id, chapter, status, total_questions, processed_questions,
       failed_questions, error_message, created_at, started_at, completed_at
FROM ai_analysis_jobs
WHERE audit_id=? AND status IN (?,?)
ORDER BY created_at DESC LIMIT 1;
`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, auditID, domain.JobPending, domain.JobRunning))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

// Update persists lifecycle fields (status, error, timestamps). Progress
// counters go through AddProgress only, so a stale struct cannot clobber them.
func (r *JobRepository) Update(ctx context.Context, j *domain.Job) error {
	const q = `
UPDATE ai_analysis_jobs
SET status = ?, error_message = ?, started_at = ?, completed_at = ?
WHERE id = ?;`
	_, err := r.db.ExecContext(ctx, q, j.Status, j.ErrorMessage, nullTime(j.StartedAt), nullTime(j.CompletedAt), j.ID)
	return err
}

// AddProgress is a single atomic increment of both counters
func (r *JobRepository) AddProgress(ctx context.Context, id domain.JobID, processed, failed int) error {
	const q = `
UPDATE ai_analysis_jobs
SET processed_questions = processed_questions + ?,
    failed_questions = failed_questions + ?
WHERE id = ?;`
	_, err := r.db.ExecContext(ctx, q, processed, failed, id)
	return err
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var started, completed sql.NullTime
	if err := row.Scan(
		&j.ID, &j.AuditID, &j.OrgID, &j.Chapter, &j.Status, &j.TotalQuestions, &j.ProcessedQuestions,
		&j.FailedQuestions, &j.ErrorMessage, &j.CreatedAt, &started, &completed,
	); err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
