package analysis

import (
	"time"
)

// ID tipe untuk AnalysisJob
type JobID string

// SuggestionLabel enum
type SuggestionLabel string

const (
	LabelYes              SuggestionLabel = "YES"
	LabelNo               SuggestionLabel = "NO"
	LabelPartial          SuggestionLabel = "PARTIAL"
	LabelInsufficientInfo SuggestionLabel = "INSUFFICIENT_INFO"
)

// ReviewStatus enum
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewAccepted ReviewStatus = "ACCEPTED"
	ReviewRejected ReviewStatus = "REJECTED"
)

// JobStatus enum
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether the status is final. Terminal jobs are never
// advanced again; invoking one is a no-op returning the last state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Source is one supporting document excerpt behind a suggestion
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Relevance    float64 `json:"relevance"`
	Excerpt      string  `json:"excerpt"`
}

// Suggestion is a cached LLM judgment for one (audit, question) pair.
// Uniquely keyed by (AuditID, QuestionID); re-analysis overwrites the prior
// row and resets review status.
type Suggestion struct {
	ID                string          `json:"id"`
	AuditID           string          `json:"audit_id"`
	QuestionID        string          `json:"question_id"`
	Label             SuggestionLabel `json:"label"`
	Confidence        float64         `json:"confidence"`
	Reasoning         string          `json:"reasoning"`
	SuggestedEvidence string          `json:"suggested_evidence,omitempty"`
	Sources           []Source        `json:"sources"`
	ReviewStatus      ReviewStatus    `json:"review_status"`
	CreatedAt         time.Time       `json:"created_at"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
}

// Aggregate Root: Job, the resumable unit of batch analysis work.
// Counters only grow; TotalQuestions is fixed at creation time.
type Job struct {
	ID                 JobID      `json:"id"`
	AuditID            string     `json:"audit_id"`
	OrgID              string     `json:"org_id"`
	Chapter            string     `json:"chapter,omitempty"`
	Status             JobStatus  `json:"status"`
	TotalQuestions     int        `json:"total_questions"`
	ProcessedQuestions int        `json:"processed_questions"`
	FailedQuestions    int        `json:"failed_questions"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
