package documents

import (
	"time"
)

// ID tipe untuk Document
type DocumentID string

// Status enum
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// Aggregate Root: Document, an organization-scoped uploaded file
type Document struct {
	ID               DocumentID `json:"id"`
	OrgID            string     `json:"org_id"`
	Name             string     `json:"name"`
	OriginalFilename string     `json:"original_filename"`
	StorageKey       string     `json:"storage_key"`
	ContentType      string     `json:"content_type"`
	SizeBytes        int64      `json:"size_bytes"`
	Status           Status     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// IsImage reports whether the stored file is an image (multimodal analysis path)
func (d *Document) IsImage() bool {
	return len(d.ContentType) > 6 && d.ContentType[:6] == "image/"
}

// Chunk is a contiguous slice of a document's extracted text.
// Indices are contiguous from 0; chunks are replaced wholesale on reprocess.
type Chunk struct {
	DocumentID  DocumentID `json:"document_id"`
	Index       int        `json:"index"`
	Content     string     `json:"content"`
	StartOffset int        `json:"start_offset"`
	EndOffset   int        `json:"end_offset"`
	Page        int        `json:"page,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
}

// RankedChunk is a chunk joined with its owning document name and a relevance score
type RankedChunk struct {
	Chunk
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
}
