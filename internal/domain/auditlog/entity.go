package auditlog

import "time"

// Entry is a persisted trail record for traceability
type Entry struct {
	ID          int64     `json:"id"`
	OrgID       string    `json:"org_id"`
	Actor       string    `json:"actor"`
	Action      string    `json:"action"`
	EntityID    string    `json:"entity_id,omitempty"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
