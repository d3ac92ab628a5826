package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-comply/internal/domain/auditlog"
)

type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository { return &AuditLogRepository{db: db} }

func (r *AuditLogRepository) Append(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO compliance_audit_log
  (org_id, actor, action, entity_id, details_json, created_at)
VALUES (?,?,?,?,?,?)
`
	org := stringOrDash(e.OrgID)
	actor := stringOrDash(e.Actor)
	action := stringOrDash(e.Action)
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else {
		// ensure valid json; if invalid, wrap as string field
		var js any
		if json.Unmarshal([]byte(details), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": details})
			details = string(b)
		}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, org, actor, action, e.EntityID, details, created)
	return err
}

func (r *AuditLogRepository) ListByOrg(ctx context.Context, org string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, org_id, actor, action, entity_id, details_json, created_at
FROM compliance_audit_log
WHERE org_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, org, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		var created time.Time
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Actor, &e.Action, &e.EntityID, &e.DetailsJSON, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = created
		out = append(out, &e)
	}
	return out, rows.Err()
}
