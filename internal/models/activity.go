package models

import "time"

// Activity actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LinkActivity is an append-only audit entry for a link mutation.
type LinkActivity struct {
	ID        string         `json:"id"`
	Kind      LinkKind       `json:"type"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actorId"`
	CompanyID string         `json:"companyId"`
	ItemID    string         `json:"itemId"`
	ItemName  string         `json:"itemName"`
	Details   map[string]any `json:"details,omitempty"`
}
