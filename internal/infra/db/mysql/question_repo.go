package mysql

import (
	"context"
	"database/sql"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/questions"
)

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// List returns questions ordered chapter → article → ref; this ordering is
// what makes repeated job advancement sweep the set front-to-back.
func (r *QuestionRepository) List(ctx context.Context, chapter string) ([]*domain.Question, error) {
	query := `
SELECT id, chapter, article, ref, text
FROM compliance_questions`
	var args []any
	if chapter != "" {
		query += "\nWHERE chapter = ?"
		args = append(args, chapter)
	}
	query += "\nORDER BY chapter, article, ref;"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Chapter, &q.Article, &q.Ref, &q.Text); err != nil {
			return nil, err
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

// Get by ID
func (r *QuestionRepository) Get(ctx context.Context, id string) (*domain.Question, error) {
	const q = `
SELECT id, chapter, article, ref, text
FROM compliance_questions
WHERE id=? LIMIT 1;
`
	var out domain.Question
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&out.ID, &out.Chapter, &out.Article, &out.Ref, &out.Text); err != nil {
		return nil, err
	}
	return &out, nil
}

// Count matching questions
func (r *QuestionRepository) Count(ctx context.Context, chapter string) (int, error) {
	query := `SELECT COUNT(*) FROM compliance_questions`
	var args []any
	if chapter != "" {
		query += " WHERE chapter = ?"
		args = append(args, chapter)
	}
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}
