package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/automaton-comply/internal/application"
	"github.com/bryanwahyu/automaton-comply/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-comply/internal/domain/auditlog"
	docdomain "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
	"github.com/bryanwahyu/automaton-comply/internal/domain/questions"
	"github.com/bryanwahyu/automaton-comply/internal/domain/retrieval"
	"github.com/bryanwahyu/automaton-comply/internal/infra/ai/prompt"
)

const excerptLen = 200

// Options are the tunables of the analysis pipeline. Thresholds and batch
// size are configuration, not business rules.
type Options struct {
	BatchSize            int
	TopK                 int
	InteractiveChunks    int
	BatchThreshold       float64
	InteractiveThreshold float64
	MaxImages            int
	MaxTokens            int
}

// Service implements use-cases untuk batch and interactive analysis
type Service struct {
	Jobs        domain.JobRepository
	Suggestions domain.SuggestionRepository
	Questions   questions.Repository
	Docs        docdomain.Repository
	Chunks      docdomain.ChunkRepository
	Blobs       docdomain.BlobStore
	Client      ai.Client // nil when no provider credentials are configured
	Trail       auditlog.Repository
	Clock       application.Clock
	Embedder    *retrieval.Embedder
	Limiter     *rate.Limiter // paces calls to the external provider
	Logger      zerolog.Logger
	Opts        Options
}

// Command untuk membuat job
type CreateJobCommand struct {
	AuditID string
	OrgID   string
	Chapter string
	Actor   string
}

// CreateJob is idempotent per audit: when a non-terminal job already exists
// it is returned instead of creating a duplicate. TotalQuestions is fixed
// here as the count of matching questions that have no suggestion yet.
func (s *Service) CreateJob(ctx context.Context, cmd CreateJobCommand) (*domain.Job, error) {
	existing, err := s.Jobs.ActiveByAudit(ctx, cmd.AuditID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	pending, err := s.pendingQuestions(ctx, cmd.AuditID, cmd.Chapter)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:             domain.JobID(uuid.New().String()),
		AuditID:        cmd.AuditID,
		OrgID:          cmd.OrgID,
		Chapter:        cmd.Chapter,
		Status:         domain.JobPending,
		TotalQuestions: len(pending),
		CreatedAt:      s.Clock.Now(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.appendTrail(ctx, cmd.OrgID, cmd.Actor, "analysis.job.create", string(job.ID), map[string]any{
		"audit": cmd.AuditID, "total_questions": job.TotalQuestions,
	})
	return job, nil
}

// Get ambil 1 job by id
func (s *Service) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.Jobs.Get(ctx, id)
}

// Advance performs one resumable step of the job. Terminal jobs are a no-op
// returning the last state. The unanalyzed-question set is recomputed fresh
// on every call, so advancement tolerates suggestions created out-of-band.
//
// Advance does not guard against concurrent calls for the same job: the
// pending set recompute plus idempotent suggestion upserts give at-least-once
// semantics, and AddProgress is a single atomic increment, so overlapping
// callers can at worst double-spend LLM calls — counters never regress.
func (s *Service) Advance(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	if job.Status == domain.JobPending {
		now := s.Clock.Now()
		job.Status = domain.JobRunning
		job.StartedAt = &now
		if err := s.Jobs.Update(ctx, job); err != nil {
			return nil, err
		}
	}

	pending, err := s.pendingQuestions(ctx, job.AuditID, job.Chapter)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return s.completeJob(ctx, job)
	}

	// precondition failures stop the whole job, they are not per-question failures
	if s.Client == nil {
		return s.failJob(ctx, job, ai.ErrNoCredentials)
	}
	completed, err := s.Docs.ListByOrgAndStatus(ctx, job.OrgID, docdomain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return s.failJob(ctx, job, domain.ErrNoDocuments)
	}
	chunks, err := s.Chunks.ListCompletedByOrg(ctx, job.OrgID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return s.failJob(ctx, job, domain.ErrNoChunks)
	}

	batch := pending
	if len(batch) > s.Opts.BatchSize {
		batch = batch[:s.Opts.BatchSize]
	}

	processed, failed := 0, 0
	for _, q := range batch {
		if err := s.analyzeQuestion(ctx, job.AuditID, q, chunks, s.Opts.BatchThreshold, s.Opts.TopK, nil, ""); err != nil {
			failed++
			s.Logger.Warn().Err(err).
				Str("job", string(job.ID)).
				Str("question", q.ID).
				Msg("question analysis failed")
			continue
		}
		processed++
	}

	if err := s.Jobs.AddProgress(ctx, job.ID, processed, failed); err != nil {
		return nil, err
	}

	job, err = s.Jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(pending) <= len(batch) && !job.Status.Terminal() {
		return s.completeJob(ctx, job)
	}
	return job, nil
}

// Cancel stops a non-terminal job; cancelling a terminal job is a no-op
func (s *Service) Cancel(ctx context.Context, id domain.JobID, actor string) (*domain.Job, error) {
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	now := s.Clock.Now()
	job.Status = domain.JobCancelled
	job.CompletedAt = &now
	if err := s.Jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	s.appendTrail(ctx, job.OrgID, actor, "analysis.job.cancel", string(job.ID), nil)
	return job, nil
}

// Command untuk analisis satu pertanyaan
type AnalyzeQuestionCommand struct {
	AuditID    string
	OrgID      string
	QuestionID string
	Context    string // auditor-supplied steering context
	Actor      string
}

// AnalyzeQuestion is the richer interactive path: wider raw chunk pull,
// higher relevance threshold, and image documents attached as multimodal
// parts. The resulting suggestion overwrites any prior one for the pair.
func (s *Service) AnalyzeQuestion(ctx context.Context, cmd AnalyzeQuestionCommand) (*domain.Suggestion, error) {
	if s.Client == nil {
		return nil, ai.ErrNoCredentials
	}

	q, err := s.Questions.Get(ctx, cmd.QuestionID)
	if err != nil {
		return nil, err
	}

	completed, err := s.Docs.ListByOrgAndStatus(ctx, cmd.OrgID, docdomain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return nil, domain.ErrNoDocuments
	}
	chunks, err := s.Chunks.ListCompletedByOrg(ctx, cmd.OrgID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.ErrNoChunks
	}
	if len(chunks) > s.Opts.InteractiveChunks {
		chunks = chunks[:s.Opts.InteractiveChunks]
	}

	images, err := s.collectImages(ctx, completed)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("failed to load image documents, continuing text-only")
		images = nil
	}

	if err := s.analyzeQuestion(ctx, cmd.AuditID, q, chunks, s.Opts.InteractiveThreshold, s.Opts.TopK, images, cmd.Context); err != nil {
		return nil, err
	}

	s.appendTrail(ctx, cmd.OrgID, cmd.Actor, "analysis.question", cmd.QuestionID, map[string]any{
		"audit": cmd.AuditID,
	})
	return s.Suggestions.Get(ctx, cmd.AuditID, cmd.QuestionID)
}

// ListSuggestions for an audit
func (s *Service) ListSuggestions(ctx context.Context, auditID string) ([]*domain.Suggestion, error) {
	return s.Suggestions.ListByAudit(ctx, auditID)
}

// ReviewSuggestion accepts or rejects a suggestion
func (s *Service) ReviewSuggestion(ctx context.Context, auditID, questionID string, status domain.ReviewStatus, actor string) (*domain.Suggestion, error) {
	if status != domain.ReviewAccepted && status != domain.ReviewRejected {
		return nil, fmt.Errorf("invalid review status: %s", status)
	}
	if err := s.Suggestions.UpdateReview(ctx, auditID, questionID, status, s.Clock.Now()); err != nil {
		return nil, err
	}
	s.appendTrail(ctx, "", actor, "suggestion.review", questionID, map[string]any{
		"audit": auditID, "status": string(status),
	})
	return s.Suggestions.Get(ctx, auditID, questionID)
}

// analyzeQuestion ranks the chunks against one question and persists a
// suggestion: an automatic INSUFFICIENT_INFO below threshold (no LLM call),
// otherwise the parsed adapter result. Per-question errors propagate so the
// batch loop can count them.
func (s *Service) analyzeQuestion(ctx context.Context, auditID string, q *questions.Question, chunks []*docdomain.RankedChunk, threshold float64, topK int, images []ai.ImagePart, extraContext string) error {
	qvec := s.Embedder.Embed(q.Text)

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vectors[i] = c.Embedding
	}
	ranked := retrieval.Rank(qvec, vectors, topK)

	top := make([]docdomain.RankedChunk, 0, len(ranked))
	for _, r := range ranked {
		c := *chunks[r.Index]
		c.Score = r.Score
		top = append(top, c)
	}

	if len(top) == 0 || top[0].Score < threshold {
		// short-circuit without spending an LLM call
		return s.Suggestions.Upsert(ctx, &domain.Suggestion{
			ID:           uuid.New().String(),
			AuditID:      auditID,
			QuestionID:   q.ID,
			Label:        domain.LabelInsufficientInfo,
			Confidence:   0,
			Reasoning:    "No sufficiently relevant evidence was found in the organization's documents.",
			Sources:      []domain.Source{},
			ReviewStatus: domain.ReviewPending,
			CreatedAt:    s.Clock.Now(),
		})
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	raw, err := s.Client.Analyze(ctx, ai.Request{
		SystemPrompt: prompt.GetSystemPrompt(),
		UserPrompt:   prompt.GetUserPrompt(q.Text, top, extraContext),
		Images:       images,
		MaxTokens:    s.Opts.MaxTokens,
	})
	if err != nil {
		return err
	}

	res := prompt.ExtractSuggestion(raw)

	sources := make([]domain.Source, 0, len(top))
	for _, c := range top {
		sources = append(sources, domain.Source{
			DocumentID:   string(c.DocumentID),
			DocumentName: c.DocumentName,
			Relevance:    c.Score,
			Excerpt:      truncate(c.Content, excerptLen),
		})
	}

	return s.Suggestions.Upsert(ctx, &domain.Suggestion{
		ID:                uuid.New().String(),
		AuditID:           auditID,
		QuestionID:        q.ID,
		Label:             domain.SuggestionLabel(res.Assessment),
		Confidence:        res.Confidence,
		Reasoning:         res.Reasoning,
		SuggestedEvidence: res.SuggestedEvidence,
		Sources:           sources,
		ReviewStatus:      domain.ReviewPending,
		CreatedAt:         s.Clock.Now(),
	})
}

// pendingQuestions is the live unanalyzed set: matching questions with no
// suggestion yet for the audit, in chapter → article → ref order.
func (s *Service) pendingQuestions(ctx context.Context, auditID, chapter string) ([]*questions.Question, error) {
	all, err := s.Questions.List(ctx, chapter)
	if err != nil {
		return nil, err
	}
	answered, err := s.Suggestions.AnsweredQuestionIDs(ctx, auditID)
	if err != nil {
		return nil, err
	}
	pending := make([]*questions.Question, 0, len(all))
	for _, q := range all {
		if !answered[q.ID] {
			pending = append(pending, q)
		}
	}
	return pending, nil
}

// collectImages loads up to MaxImages completed image documents as inline
// parts; the cap bounds payload size and cost
func (s *Service) collectImages(ctx context.Context, docs []*docdomain.Document) ([]ai.ImagePart, error) {
	var parts []ai.ImagePart
	for _, d := range docs {
		if !d.IsImage() {
			continue
		}
		if len(parts) >= s.Opts.MaxImages {
			break
		}
		data, err := s.Blobs.Get(ctx, d.StorageKey)
		if err != nil {
			return parts, err
		}
		parts = append(parts, ai.ImagePart{MIMEType: d.ContentType, Data: data})
	}
	return parts, nil
}

func (s *Service) completeJob(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	now := s.Clock.Now()
	job.Status = domain.JobCompleted
	job.CompletedAt = &now
	if err := s.Jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.Logger.Info().
		Str("job", string(job.ID)).
		Int("processed", job.ProcessedQuestions).
		Int("failed", job.FailedQuestions).
		Msg("analysis job completed")
	return job, nil
}

func (s *Service) failJob(ctx context.Context, job *domain.Job, cause error) (*domain.Job, error) {
	now := s.Clock.Now()
	job.Status = domain.JobFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	if err := s.Jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, cause
}

func (s *Service) appendTrail(ctx context.Context, org, actor, action, entityID string, details map[string]any) {
	if s.Trail == nil {
		return
	}
	var detailsJSON string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	entry := &auditlog.Entry{
		OrgID:       org,
		Actor:       actor,
		Action:      action,
		EntityID:    entityID,
		DetailsJSON: detailsJSON,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Trail.Append(ctx, entry); err != nil {
		s.Logger.Warn().Err(err).Str("action", action).Msg("audit log append failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
