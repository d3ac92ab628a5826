package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-comply/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
	docdomain "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
	"github.com/bryanwahyu/automaton-comply/internal/domain/questions"
	"github.com/bryanwahyu/automaton-comply/internal/domain/retrieval"
)

// ---- fakes ----

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[domain.JobID]*domain.Job
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: make(map[domain.JobID]*domain.Job)} }

func (f *fakeJobs) Create(ctx context.Context, j *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeJobs) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) ActiveByAudit(ctx context.Context, auditID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.AuditID == auditID && !j.Status.Terminal() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) Update(ctx context.Context, j *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[j.ID]
	if !ok {
		return domain.ErrJobNotFound
	}
	stored.Status = j.Status
	stored.ErrorMessage = j.ErrorMessage
	stored.StartedAt = j.StartedAt
	stored.CompletedAt = j.CompletedAt
	return nil
}

func (f *fakeJobs) AddProgress(ctx context.Context, id domain.JobID, processed, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	stored.ProcessedQuestions += processed
	stored.FailedQuestions += failed
	return nil
}

type fakeSuggestions struct {
	mu    sync.Mutex
	items map[string]*domain.Suggestion
}

func newFakeSuggestions() *fakeSuggestions {
	return &fakeSuggestions{items: make(map[string]*domain.Suggestion)}
}

func suggestionKey(auditID, questionID string) string { return auditID + "|" + questionID }

func (f *fakeSuggestions) Upsert(ctx context.Context, s *domain.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	cp.ReviewStatus = domain.ReviewPending
	cp.ReviewedAt = nil
	f.items[suggestionKey(s.AuditID, s.QuestionID)] = &cp
	return nil
}

func (f *fakeSuggestions) Get(ctx context.Context, auditID, questionID string) (*domain.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[suggestionKey(auditID, questionID)]
	if !ok {
		return nil, fmt.Errorf("suggestion not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSuggestions) ListByAudit(ctx context.Context, auditID string) ([]*domain.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Suggestion
	for _, s := range f.items {
		if s.AuditID == auditID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (f *fakeSuggestions) AnsweredQuestionIDs(ctx context.Context, auditID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for _, s := range f.items {
		if s.AuditID == auditID {
			out[s.QuestionID] = true
		}
	}
	return out, nil
}

func (f *fakeSuggestions) CountByAudit(ctx context.Context, auditID string) (int, error) {
	ids, err := f.AnsweredQuestionIDs(ctx, auditID)
	return len(ids), err
}

func (f *fakeSuggestions) UpdateReview(ctx context.Context, auditID, questionID string, status domain.ReviewStatus, reviewedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[suggestionKey(auditID, questionID)]
	if !ok {
		return fmt.Errorf("suggestion not found")
	}
	s.ReviewStatus = status
	t := reviewedAt
	s.ReviewedAt = &t
	return nil
}

type fakeQuestions struct{ list []*questions.Question }

func (f *fakeQuestions) List(ctx context.Context, chapter string) ([]*questions.Question, error) {
	if chapter == "" {
		return f.list, nil
	}
	var out []*questions.Question
	for _, q := range f.list {
		if q.Chapter == chapter {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) Get(ctx context.Context, id string) (*questions.Question, error) {
	for _, q := range f.list {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, fmt.Errorf("question not found: %s", id)
}

func (f *fakeQuestions) Count(ctx context.Context, chapter string) (int, error) {
	list, _ := f.List(ctx, chapter)
	return len(list), nil
}

type fakeDocs struct{ docs []*docdomain.Document }

func (f *fakeDocs) Save(ctx context.Context, d *docdomain.Document) error { return nil }
func (f *fakeDocs) Get(ctx context.Context, org string, id docdomain.DocumentID) (*docdomain.Document, error) {
	for _, d := range f.docs {
		if d.OrgID == org && d.ID == id {
			return d, nil
		}
	}
	return nil, docdomain.ErrNotFound
}
func (f *fakeDocs) ListByOrg(ctx context.Context, org string) ([]*docdomain.Document, error) {
	return f.docs, nil
}
func (f *fakeDocs) ListByOrgAndStatus(ctx context.Context, org string, status docdomain.Status) ([]*docdomain.Document, error) {
	var out []*docdomain.Document
	for _, d := range f.docs {
		if d.OrgID == org && d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDocs) UpdateStatus(ctx context.Context, org string, id docdomain.DocumentID, status docdomain.Status, errMsg string) error {
	return nil
}
func (f *fakeDocs) MarkProcessed(ctx context.Context, org string, id docdomain.DocumentID) error {
	return nil
}
func (f *fakeDocs) Reset(ctx context.Context, org string, id docdomain.DocumentID) error  { return nil }
func (f *fakeDocs) Delete(ctx context.Context, org string, id docdomain.DocumentID) error { return nil }

type fakeChunks struct{ ranked []*docdomain.RankedChunk }

func (f *fakeChunks) ReplaceForDocument(ctx context.Context, id docdomain.DocumentID, chunks []*docdomain.Chunk) error {
	return nil
}
func (f *fakeChunks) ListByDocument(ctx context.Context, id docdomain.DocumentID) ([]*docdomain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunks) ListCompletedByOrg(ctx context.Context, org string) ([]*docdomain.RankedChunk, error) {
	return f.ranked, nil
}
func (f *fakeChunks) DeleteForDocument(ctx context.Context, id docdomain.DocumentID) error {
	return nil
}

type fakeBlobs struct{ data map[string][]byte }

func (f *fakeBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return key, nil
}
func (f *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	d, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", key)
	}
	return d, nil
}
func (f *fakeBlobs) Delete(ctx context.Context, key string) error         { return nil }
func (f *fakeBlobs) Exists(ctx context.Context, key string) (bool, error) { return true, nil }

type fakeClient struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeClient) Analyze(ctx context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---- helpers ----

const questionText = "Does the organization test backup restoration procedures regularly?"

func makeQuestions(n int) []*questions.Question {
	out := make([]*questions.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &questions.Question{
			ID:      fmt.Sprintf("q-%02d", i),
			Chapter: "II",
			Article: "11",
			Ref:     fmt.Sprintf("11.%d", i),
			Text:    questionText,
		})
	}
	return out
}

func relevantChunks(embedder *retrieval.Embedder) []*docdomain.RankedChunk {
	// chunk content equals the question text, so relevance is maximal
	return []*docdomain.RankedChunk{
		{
			Chunk: docdomain.Chunk{
				DocumentID: "doc-1",
				Content:    questionText,
				Embedding:  embedder.Embed(questionText),
			},
			DocumentName: "backup-policy.pdf",
		},
	}
}

func completedDoc() *docdomain.Document {
	return &docdomain.Document{
		ID:     "doc-1",
		OrgID:  "acme",
		Name:   "backup-policy.pdf",
		Status: docdomain.StatusCompleted,
	}
}

func newTestService(t *testing.T, qs []*questions.Question, chunks []*docdomain.RankedChunk, client ai.Client) (*Service, *fakeJobs, *fakeSuggestions) {
	t.Helper()
	jobs := newFakeJobs()
	sugs := newFakeSuggestions()
	svc := &Service{
		Jobs:        jobs,
		Suggestions: sugs,
		Questions:   &fakeQuestions{list: qs},
		Docs:        &fakeDocs{docs: []*docdomain.Document{completedDoc()}},
		Chunks:      &fakeChunks{ranked: chunks},
		Blobs:       &fakeBlobs{},
		Client:      client,
		Clock:       fixedClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		Embedder:    retrieval.NewEmbedder(retrieval.DefaultDimension),
		Logger:      zerolog.Nop(),
		Opts: Options{
			BatchSize:            5,
			TopK:                 5,
			InteractiveChunks:    30,
			BatchThreshold:       0.05,
			InteractiveThreshold: 0.1,
			MaxImages:            5,
			MaxTokens:            2048,
		},
	}
	return svc, jobs, sugs
}

const goodReply = `{"assessment":"YES","confidence":0.9,"reasoning":"Restore tests are documented.","suggested_evidence":"DR runbook section 3"}`

// ---- tests ----

func TestCreateJobIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, makeQuestions(10), nil, nil)
	ctx := context.Background()

	cmd := CreateJobCommand{AuditID: "audit-1", OrgID: "acme", Actor: "alice"}
	first, err := svc.CreateJob(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, first.Status)
	assert.Equal(t, 10, first.TotalQuestions)

	second, err := svc.CreateJob(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateJobExcludesAnsweredQuestions(t *testing.T) {
	svc, _, sugs := newTestService(t, makeQuestions(10), nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, sugs.Upsert(ctx, &domain.Suggestion{
			ID: fmt.Sprintf("s-%d", i), AuditID: "audit-1", QuestionID: fmt.Sprintf("q-%02d", i),
			Label: domain.LabelYes,
		}))
	}

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 7, job.TotalQuestions)
}

func TestAdvanceRunsInBatchesToCompletion(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, sugs := newTestService(t, makeQuestions(10), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.Equal(t, 5, job.ProcessedQuestions)
	require.NotNil(t, job.StartedAt)

	job, err = svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 10, job.ProcessedQuestions)
	assert.Zero(t, job.FailedQuestions)
	require.NotNil(t, job.CompletedAt)

	list, err := sugs.ListByAudit(ctx, "audit-1")
	require.NoError(t, err)
	assert.Len(t, list, 10)
	for _, s := range list {
		assert.Equal(t, domain.LabelYes, s.Label)
		assert.Equal(t, domain.ReviewPending, s.ReviewStatus)
	}
	assert.Equal(t, 10, client.callCount())
}

func TestAdvanceTerminalIsNoop(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, _ := newTestService(t, makeQuestions(2), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)
	job, err = svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, job.Status)

	callsBefore := client.callCount()
	again, err := svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, again.Status)
	assert.Equal(t, job.ProcessedQuestions, again.ProcessedQuestions)
	assert.Equal(t, callsBefore, client.callCount())
}

func TestAdvanceLowRelevanceSkipsModel(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	embedder := retrieval.NewEmbedder(retrieval.DefaultDimension)
	// chunk vocabulary shares nothing with the question: relevance is zero
	chunks := []*docdomain.RankedChunk{
		{
			Chunk: docdomain.Chunk{
				DocumentID: "doc-1",
				Content:    "zzzz zzzz zzzz",
				Embedding:  embedder.Embed("zzzz zzzz zzzz"),
			},
			DocumentName: "unrelated.txt",
		},
	}
	svc, _, sugs := newTestService(t, makeQuestions(3), chunks, client)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)
	job, err = svc.Advance(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 3, job.ProcessedQuestions)
	assert.Zero(t, client.callCount())

	list, err := sugs.ListByAudit(ctx, "audit-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, s := range list {
		assert.Equal(t, domain.LabelInsufficientInfo, s.Label)
		assert.Zero(t, s.Confidence)
	}
}

func TestAdvanceNoCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, makeQuestions(3), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Advance(ctx, job.ID)
	require.ErrorIs(t, err, ai.ErrNoCredentials)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMessage)
}

func TestAdvanceNoDocuments(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, _ := newTestService(t, makeQuestions(3), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	svc.Docs = &fakeDocs{} // no completed documents
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Advance(ctx, job.ID)
	require.ErrorIs(t, err, domain.ErrNoDocuments)
	assert.Equal(t, domain.JobFailed, job.Status)
}

func TestAdvanceNoChunks(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, _ := newTestService(t, makeQuestions(3), nil, client)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Advance(ctx, job.ID)
	require.ErrorIs(t, err, domain.ErrNoChunks)
	assert.Equal(t, domain.JobFailed, job.Status)
}

func TestAdvanceCountsFailedQuestions(t *testing.T) {
	client := &fakeClient{err: errors.New("model unavailable")}
	svc, _, _ := newTestService(t, makeQuestions(3), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	// the whole batch fails per-question, the job itself still completes
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Zero(t, job.ProcessedQuestions)
	assert.Equal(t, 3, job.FailedQuestions)
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService(t, makeQuestions(3), nil, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, CreateJobCommand{AuditID: "audit-1", OrgID: "acme"})
	require.NoError(t, err)

	job, err = svc.Cancel(ctx, job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, job.Status)
	require.NotNil(t, job.CompletedAt)

	// cancelling again is a no-op
	again, err := svc.Cancel(ctx, job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, again.Status)

	// a cancelled job never advances
	after, err := svc.Advance(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, after.Status)
}

func TestAnalyzeQuestionInteractive(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, _ := newTestService(t, makeQuestions(3), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	sug, err := svc.AnalyzeQuestion(ctx, AnalyzeQuestionCommand{
		AuditID: "audit-1", OrgID: "acme", QuestionID: "q-00", Actor: "alice",
		Context: "focus on restore evidence",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelYes, sug.Label)
	assert.Equal(t, 0.9, sug.Confidence)
	assert.Equal(t, domain.ReviewPending, sug.ReviewStatus)
	require.NotEmpty(t, sug.Sources)
	assert.Equal(t, "backup-policy.pdf", sug.Sources[0].DocumentName)
}

func TestAnalyzeQuestionOverwriteResetsReview(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, sugs := newTestService(t, makeQuestions(1), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	cmd := AnalyzeQuestionCommand{AuditID: "audit-1", OrgID: "acme", QuestionID: "q-00", Actor: "alice"}
	_, err := svc.AnalyzeQuestion(ctx, cmd)
	require.NoError(t, err)

	_, err = svc.ReviewSuggestion(ctx, "audit-1", "q-00", domain.ReviewAccepted, "bob")
	require.NoError(t, err)
	accepted, err := sugs.Get(ctx, "audit-1", "q-00")
	require.NoError(t, err)
	require.Equal(t, domain.ReviewAccepted, accepted.ReviewStatus)

	// re-analysis overwrites the suggestion and drops the review decision
	_, err = svc.AnalyzeQuestion(ctx, cmd)
	require.NoError(t, err)
	fresh, err := sugs.Get(ctx, "audit-1", "q-00")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPending, fresh.ReviewStatus)
	assert.Nil(t, fresh.ReviewedAt)
}

func TestAnalyzeQuestionNoCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, makeQuestions(1), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), nil)

	_, err := svc.AnalyzeQuestion(context.Background(), AnalyzeQuestionCommand{
		AuditID: "audit-1", OrgID: "acme", QuestionID: "q-00",
	})
	assert.ErrorIs(t, err, ai.ErrNoCredentials)
}

func TestReviewSuggestion(t *testing.T) {
	client := &fakeClient{reply: goodReply}
	svc, _, _ := newTestService(t, makeQuestions(1), relevantChunks(retrieval.NewEmbedder(retrieval.DefaultDimension)), client)
	ctx := context.Background()

	_, err := svc.AnalyzeQuestion(ctx, AnalyzeQuestionCommand{AuditID: "audit-1", OrgID: "acme", QuestionID: "q-00"})
	require.NoError(t, err)

	sug, err := svc.ReviewSuggestion(ctx, "audit-1", "q-00", domain.ReviewRejected, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRejected, sug.ReviewStatus)
	require.NotNil(t, sug.ReviewedAt)

	_, err = svc.ReviewSuggestion(ctx, "audit-1", "q-00", domain.ReviewPending, "bob")
	assert.Error(t, err)
}
