package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/automaton-comply/internal/application"
	"github.com/bryanwahyu/automaton-comply/internal/domain/auditlog"
	domain "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
	"github.com/bryanwahyu/automaton-comply/internal/domain/retrieval"
	"github.com/bryanwahyu/automaton-comply/internal/infra/tasks"
)

// Service implements use-cases untuk Document ingestion.
// The pipeline per document is PENDING → PROCESSING → {COMPLETED | ERROR};
// heavy work always runs detached from the triggering request.
type Service struct {
	Docs     domain.Repository
	Chunks   domain.ChunkRepository
	Blobs    domain.BlobStore
	Extract  domain.Extractor
	Trail    auditlog.Repository
	Tasks    *tasks.Runner
	Clock    application.Clock
	Embedder *retrieval.Embedder
	Logger   zerolog.Logger

	ChunkSize    int
	ChunkOverlap int
}

// Command untuk upload dokumen
type UploadCommand struct {
	OrgID       string
	Name        string
	Filename    string
	ContentType string
	Data        []byte
	Actor       string
}

// Upload stores the raw file, registers a PENDING document, and detaches
// ingestion. The returned document reflects the pre-processing state.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Document, error) {
	if len(cmd.Data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}
	name := cmd.Name
	if strings.TrimSpace(name) == "" {
		name = cmd.Filename
	}

	id := domain.DocumentID(uuid.New().String())
	key := fmt.Sprintf("%s/documents/%s/%s", cmd.OrgID, id, cmd.Filename)

	if _, err := s.Blobs.Put(ctx, key, cmd.Data, cmd.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &domain.Document{
		ID:               id,
		OrgID:            cmd.OrgID,
		Name:             name,
		OriginalFilename: cmd.Filename,
		StorageKey:       key,
		ContentType:      cmd.ContentType,
		SizeBytes:        int64(len(cmd.Data)),
		Status:           domain.StatusPending,
		UploadedAt:       s.Clock.Now(),
	}
	if err := s.Docs.Save(ctx, doc); err != nil {
		return nil, err
	}

	s.appendTrail(ctx, cmd.OrgID, cmd.Actor, "document.upload", string(id), map[string]any{
		"filename": cmd.Filename, "size": len(cmd.Data),
	})

	org, docID := cmd.OrgID, id
	s.Tasks.Go("ingest-"+string(id), func(taskCtx context.Context) error {
		return s.Process(taskCtx, org, docID)
	})

	return doc, nil
}

// Process runs the ingestion pipeline for one document: fetch blob → extract
// text → chunk → embed → replace chunks → COMPLETED. Any failure moves the
// document to ERROR with the message captured and is returned to the caller
// (normally the task runner, which logs it).
func (s *Service) Process(ctx context.Context, org string, id domain.DocumentID) error {
	doc, err := s.Docs.Get(ctx, org, id)
	if err != nil {
		return err
	}

	// visible to readers before any heavy work starts
	if err := s.Docs.UpdateStatus(ctx, org, id, domain.StatusProcessing, ""); err != nil {
		return err
	}

	data, err := s.Blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return s.failDocument(ctx, org, id, fmt.Errorf("fetch blob: %w", err))
	}

	text, err := s.Extract.Extract(doc.OriginalFilename, doc.ContentType, data)
	if err != nil {
		return s.failDocument(ctx, org, id, fmt.Errorf("extract text: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return s.failDocument(ctx, org, id, domain.ErrEmptyDocument)
	}

	fragments := domain.Split(text, s.ChunkSize, s.ChunkOverlap)
	if len(fragments) == 0 {
		return s.failDocument(ctx, org, id, domain.ErrEmptyDocument)
	}

	// sequential embedding keeps memory bounded and chunk indices in order
	chunks := make([]*domain.Chunk, 0, len(fragments))
	for i, f := range fragments {
		chunks = append(chunks, &domain.Chunk{
			DocumentID:  id,
			Index:       i,
			Content:     f.Content,
			StartOffset: f.StartOffset,
			EndOffset:   f.EndOffset,
			Embedding:   s.Embedder.Embed(f.Content),
		})
	}

	// delete-all then reinsert makes reprocessing idempotent
	if err := s.Chunks.ReplaceForDocument(ctx, id, chunks); err != nil {
		return s.failDocument(ctx, org, id, fmt.Errorf("persist chunks: %w", err))
	}

	if err := s.Docs.MarkProcessed(ctx, org, id); err != nil {
		return s.failDocument(ctx, org, id, err)
	}

	s.Logger.Info().
		Str("org", org).
		Str("document", string(id)).
		Int("chunks", len(chunks)).
		Int("text_len", len(text)).
		Msg("document ingested")
	return nil
}

// Reprocess clears the previous outcome and re-enters the pipeline
func (s *Service) Reprocess(ctx context.Context, org string, id domain.DocumentID, actor string) (*domain.Document, error) {
	if err := s.Docs.Reset(ctx, org, id); err != nil {
		return nil, err
	}
	doc, err := s.Docs.Get(ctx, org, id)
	if err != nil {
		return nil, err
	}

	s.appendTrail(ctx, org, actor, "document.reprocess", string(id), nil)

	s.Tasks.Go("reprocess-"+string(id), func(taskCtx context.Context) error {
		return s.Process(taskCtx, org, id)
	})
	return doc, nil
}

// Get ambil 1 dokumen by id
func (s *Service) Get(ctx context.Context, org string, id domain.DocumentID) (*domain.Document, error) {
	return s.Docs.Get(ctx, org, id)
}

// List ambil semua dokumen milik org
func (s *Service) List(ctx context.Context, org string) ([]*domain.Document, error) {
	return s.Docs.ListByOrg(ctx, org)
}

// GetChunks returns the persisted chunks for one of the org's documents
func (s *Service) GetChunks(ctx context.Context, org string, id domain.DocumentID) ([]*domain.Chunk, error) {
	if _, err := s.Docs.Get(ctx, org, id); err != nil {
		return nil, err
	}
	return s.Chunks.ListByDocument(ctx, id)
}

// Delete removes the blob, the document row, and its chunks
func (s *Service) Delete(ctx context.Context, org string, id domain.DocumentID, actor string) error {
	doc, err := s.Docs.Get(ctx, org, id)
	if err != nil {
		return err
	}

	if err := s.Blobs.Delete(ctx, doc.StorageKey); err != nil {
		// the row is the source of truth; a dangling blob is only logged
		s.Logger.Warn().Err(err).Str("key", doc.StorageKey).Msg("failed to delete blob")
	}
	if err := s.Chunks.DeleteForDocument(ctx, id); err != nil {
		return err
	}
	if err := s.Docs.Delete(ctx, org, id); err != nil {
		return err
	}

	s.appendTrail(ctx, org, actor, "document.delete", string(id), nil)
	return nil
}

func (s *Service) failDocument(ctx context.Context, org string, id domain.DocumentID, cause error) error {
	if err := s.Docs.UpdateStatus(ctx, org, id, domain.StatusError, cause.Error()); err != nil {
		s.Logger.Error().Err(err).Str("document", string(id)).Msg("failed to record document error")
	}
	return cause
}

// appendTrail never blocks the pipeline on audit-log failure
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
