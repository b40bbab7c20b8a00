package models

import "time"

// SLABucket classifies a petition against its enquiry deadline.
type SLABucket string

const (
	SLAExcluded   SLABucket = "excluded"
	SLAWithin     SLABucket = "within"
	SLABreached   SLABucket = "breached"
	SLAInProgress SLABucket = "in_progress"
)

// SLATimestamps are the ledger-derived inputs of the SLA calculation.
type SLATimestamps struct {
	PetitionID  int64        `db:"petition_id"`
	EnquiryType *EnquiryType `db:"enquiry_type"`
	AssignedAt  *time.Time   `db:"assigned_at"`
	ClosedAt    *time.Time   `db:"closed_at"`
}

// SLAStatus is the per-petition SLA view.
type SLAStatus struct {
	PetitionID   int64      `json:"petition_id"`
	Bucket       SLABucket  `json:"bucket"`
	DeadlineDays int        `json:"deadline_days"`
	ElapsedDays  int        `json:"elapsed_days"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// SLACounts aggregates buckets over a petition set. Excluded petitions are not counted.
type SLACounts struct {
	Total      int `json:"total"`
	Within     int `json:"within"`
	Breached   int `json:"breached"`
	InProgress int `json:"in_progress"`
}

// Add folds one bucket into the counts.
func (c *SLACounts) Add(b SLABucket) {
	switch b {
	case SLAWithin:
		c.Within++
	case SLABreached:
		c.Breached++
	case SLAInProgress:
		c.InProgress++
	default:
		return
	}
	c.Total++
}
