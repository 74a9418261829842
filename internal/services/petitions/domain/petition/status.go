// Package petition defines the petition lifecycle vocabulary and the
// transition rules that drive it.
package petition

import "strings"

// Status is the petition lifecycle label used by domain decisions.
type Status string

const (
	StatusDraft               Status = "DRAFT"
	StatusSubmitted           Status = "SUBMITTED"
	StatusUnderReview         Status = "UNDER_REVIEW"
	StatusInCommittee         Status = "IN_COMMITTEE"
	StatusAmended             Status = "AMENDED"
	StatusApprovedByCommittee Status = "APPROVED_BY_COMMITTEE"
	StatusRejectedByCommittee Status = "REJECTED_BY_COMMITTEE"
	StatusOnCalendar          Status = "ON_CALENDAR"
	StatusAdopted             Status = "ADOPTED"
	StatusDefeated            Status = "DEFEATED"
	StatusWithdrawn           Status = "WITHDRAWN"
)

// ParseStatus canonicalizes a status label.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusInCommittee,
		StatusAmended, StatusApprovedByCommittee, StatusRejectedByCommittee,
		StatusOnCalendar, StatusAdopted, StatusDefeated, StatusWithdrawn:
		return status, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAdopted, StatusDefeated, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// IsDraft reports whether petition content is still mutable.
func (s Status) IsDraft() bool {
	return s == StatusDraft
}
