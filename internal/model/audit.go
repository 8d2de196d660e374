package model

import "time"

// AuditEntry records a staff decision or other privileged action.
type AuditEntry struct {
	ID        string    `db:"id" json:"id"`
	Timestamp time.Time `db:"ts" json:"timestamp"`
	Actor     string    `db:"actor" json:"actor"`
	Action    string    `db:"action" json:"action"`
	Subject   string    `db:"subject" json:"subject"`
	Details   string    `db:"details" json:"details,omitempty"`
}
