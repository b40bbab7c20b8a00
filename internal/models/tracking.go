package models

import "time"

// Action labels written to the ledger outside the transition table.
const (
	ActionPetitionCreated = "Petition Created"
)

// TrackingEntry is one append-only ledger record. Seq orders entries per petition starting at 1.
type TrackingEntry struct {
	ID           int64           `db:"id" json:"id"`
	PetitionID   int64           `db:"petition_id" json:"petition_id"`
	Seq          int64           `db:"seq" json:"seq"`
	FromUserID   string          `db:"from_user_id" json:"from_user_id"`
	FromRole     UserRole        `db:"from_role" json:"from_role"`
	ToUserID     *string         `db:"to_user_id" json:"to_user_id,omitempty"`
	ToRole       *UserRole       `db:"to_role" json:"to_role,omitempty"`
	Action       string          `db:"action" json:"action"`
	Comments     *string         `db:"comments" json:"comments,omitempty"`
	StatusBefore *PetitionStatus `db:"status_before" json:"status_before,omitempty"`
	StatusAfter  PetitionStatus  `db:"status_after" json:"status_after"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`

	FromUserName *string `db:"from_user_name" json:"from_user_name,omitempty"`
	ToUserName   *string `db:"to_user_name" json:"to_user_name,omitempty"`
}
