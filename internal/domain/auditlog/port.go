package auditlog

import "context"

// Repository defines persistence for trail entries. Append is fire-and-forget
// from the caller's point of view: failures are logged, never propagated into
// the pipeline.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByOrg(ctx context.Context, org string, limit int) ([]*Entry, error)
}
