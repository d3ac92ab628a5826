package questions

import "context"

// Repository port. List must order by chapter, then article, then ref, so
// that repeated job advancement sweeps the set predictably front-to-back.
// An empty chapter means no filter.
type Repository interface {
	List(ctx context.Context, chapter string) ([]*Question, error)
	Get(ctx context.Context, id string) (*Question, error)
	Count(ctx context.Context, chapter string) (int, error)
}
