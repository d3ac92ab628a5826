package documents

import (
	"context"
	"errors"
)

// ErrNotFound when a document does not exist for the org
var ErrNotFound = errors.New("document not found")

// ErrEmptyDocument when extraction yields no usable text
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, org string, id DocumentID) (*Document, error)
	ListByOrg(ctx context.Context, org string) ([]*Document, error)
	ListByOrgAndStatus(ctx context.Context, org string, status Status) ([]*Document, error)
	UpdateStatus(ctx context.Context, org string, id DocumentID, status Status, errMsg string) error
	MarkProcessed(ctx context.Context, org string, id DocumentID) error
	// Reset clears error message and processed timestamp and returns the
	// document to PENDING ahead of reprocessing.
	Reset(ctx context.Context, org string, id DocumentID) error
	Delete(ctx context.Context, org string, id DocumentID) error
}

// ChunkRepository port. ReplaceForDocument must delete all existing chunks
// for the document and insert the new set in one transaction.
type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, id DocumentID, chunks []*Chunk) error
	ListByDocument(ctx context.Context, id DocumentID) ([]*Chunk, error)
	ListCompletedByOrg(ctx context.Context, org string) ([]*RankedChunk, error)
	DeleteForDocument(ctx context.Context, id DocumentID) error
}

// BlobStore port (interface untuk penyimpanan file)
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Extractor port (interface untuk ekstraksi teks)
type Extractor interface {
	Extract(filename, contentType string, data []byte) (string, error)
}
