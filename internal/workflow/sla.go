package workflow

import (
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// Enquiry deadlines in whole days, measured from inspector assignment.
const (
	PreliminaryDeadlineDays = 7
	DetailedDeadlineDays    = 45
)

const day = 24 * time.Hour

// DeadlineDays returns the SLA deadline for an enquiry type. Unset types get the detailed deadline.
func DeadlineDays(t models.EnquiryType) int {
	if t == models.EnquiryPreliminary {
		return PreliminaryDeadlineDays
	}
	return DetailedDeadlineDays
}

// ElapsedDays truncates the span between from and to to whole days, never negative.
func ElapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// Classify buckets a petition from its ledger-derived assignment and closure times.
func Classify(enquiry models.EnquiryType, assignedAt, closedAt *time.Time, now time.Time) models.SLAStatus {
	status := models.SLAStatus{
		DeadlineDays: DeadlineDays(enquiry),
		AssignedAt:   assignedAt,
		ClosedAt:     closedAt,
	}
	if assignedAt == nil {
		status.Bucket = models.SLAExcluded
		return status
	}

	end := now
	if closedAt != nil {
		end = *closedAt
	}
	status.ElapsedDays = ElapsedDays(*assignedAt, end)

	switch {
	case status.ElapsedDays > status.DeadlineDays:
		status.Bucket = models.SLABreached
	case closedAt != nil:
		status.Bucket = models.SLAWithin
	default:
		status.Bucket = models.SLAInProgress
	}
	return status
}

// ClassifyTimestamps is Classify over a row read from the ledger aggregate.
func ClassifyTimestamps(ts models.SLATimestamps, now time.Time) models.SLAStatus {
	var enquiry models.EnquiryType
	if ts.EnquiryType != nil {
		enquiry = *ts.EnquiryType
	}
	status := Classify(enquiry, ts.AssignedAt, ts.ClosedAt, now)
	status.PetitionID = ts.PetitionID
	return status
}
