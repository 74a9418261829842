package petition

import "strings"

// ActionType describes what a petition proposes to do to its target document.
type ActionType string

const (
	ActionTypeAmend         ActionType = "AMEND"
	ActionTypeAdd           ActionType = "ADD"
	ActionTypeDelete        ActionType = "DELETE"
	ActionTypeReplace       ActionType = "REPLACE"
	ActionTypeRename        ActionType = "RENAME"
	ActionTypeRestructure   ActionType = "RESTRUCTURE"
	ActionTypeNewResolution ActionType = "NEW_RESOLUTION"
)

// ParseActionType canonicalizes an action-type label.
func ParseActionType(value string) (ActionType, bool) {
	actionType := ActionType(strings.ToUpper(strings.TrimSpace(value)))
	switch actionType {
	case ActionTypeAmend, ActionTypeAdd, ActionTypeDelete, ActionTypeReplace,
		ActionTypeRename, ActionTypeRestructure, ActionTypeNewResolution:
		return actionType, true
	default:
		return "", false
	}
}

// ChangeType describes how one target location is to be changed.
type ChangeType string

const (
	ChangeAddText         ChangeType = "ADD_TEXT"
	ChangeDeleteText      ChangeType = "DELETE_TEXT"
	ChangeReplaceText     ChangeType = "REPLACE_TEXT"
	ChangeAddParagraph    ChangeType = "ADD_PARAGRAPH"
	ChangeDeleteParagraph ChangeType = "DELETE_PARAGRAPH"
	ChangeRestructure     ChangeType = "RESTRUCTURE"
)

// ParseChangeType canonicalizes a change-type label.
func ParseChangeType(value string) (ChangeType, bool) {
	changeType := ChangeType(strings.ToUpper(strings.TrimSpace(value)))
	switch changeType {
	case ChangeAddText, ChangeDeleteText, ChangeReplaceText,
		ChangeAddParagraph, ChangeDeleteParagraph, ChangeRestructure:
		return changeType, true
	default:
		return "", false
	}
}

// IsPureAddition reports whether the change renders entirely as added text.
func (c ChangeType) IsPureAddition() bool {
	return c == ChangeAddText || c == ChangeAddParagraph
}

// IsPureDeletion reports whether the change renders entirely as removed text.
func (c ChangeType) IsPureDeletion() bool {
	return c == ChangeDeleteText || c == ChangeDeleteParagraph
}

// AssignmentStatus is the review progress of one committee assignment.
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "PENDING"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentDeferred   AssignmentStatus = "DEFERRED"
)

// ParseAssignmentStatus canonicalizes an assignment status label.
func ParseAssignmentStatus(value string) (AssignmentStatus, bool) {
	status := AssignmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case AssignmentPending, AssignmentInProgress, AssignmentCompleted, AssignmentDeferred:
		return status, true
	default:
		return "", false
	}
}

// CommitteeActionKind is a committee's recorded disposition of an assignment.
type CommitteeActionKind string

const (
	CommitteeApprove         CommitteeActionKind = "APPROVE"
	CommitteeReject          CommitteeActionKind = "REJECT"
	CommitteeAmendAndApprove CommitteeActionKind = "AMEND_AND_APPROVE"
	CommitteeDefer           CommitteeActionKind = "DEFER"
	CommitteeRefer           CommitteeActionKind = "REFER"
	CommitteeNoAction        CommitteeActionKind = "NO_ACTION"
)

// ParseCommitteeActionKind canonicalizes a committee action label.
func ParseCommitteeActionKind(value string) (CommitteeActionKind, bool) {
	kind := CommitteeActionKind(strings.ToUpper(strings.TrimSpace(value)))
	switch kind {
	case CommitteeApprove, CommitteeReject, CommitteeAmendAndApprove,
		CommitteeDefer, CommitteeRefer, CommitteeNoAction:
		return kind, true
	default:
		return "", false
	}
}

// IsFinal reports whether the action consumes the assignment's single final slot.
func (k CommitteeActionKind) IsFinal() bool {
	switch k {
	case CommitteeApprove, CommitteeReject, CommitteeAmendAndApprove, CommitteeNoAction:
		return true
	default:
		return false
	}
}

// PlenaryActionKind is the full body's recorded vote on a calendar item.
type PlenaryActionKind string

const (
	PlenaryAdopt     PlenaryActionKind = "ADOPT"
	PlenaryDefeat    PlenaryActionKind = "DEFEAT"
	PlenaryAmend     PlenaryActionKind = "AMEND"
	PlenaryReferBack PlenaryActionKind = "REFER_BACK"
	PlenaryTable     PlenaryActionKind = "TABLE"
	PlenaryPostpone  PlenaryActionKind = "POSTPONE"
)

// ParsePlenaryActionKind canonicalizes a plenary action label.
func ParsePlenaryActionKind(value string) (PlenaryActionKind, bool) {
	kind := PlenaryActionKind(strings.ToUpper(strings.TrimSpace(value)))
	switch kind {
	case PlenaryAdopt, PlenaryDefeat, PlenaryAmend, PlenaryReferBack,
		PlenaryTable, PlenaryPostpone:
		return kind, true
	default:
		return "", false
	}
}

// IsFinal reports whether the vote consumes the calendar item's single final slot.
func (k PlenaryActionKind) IsFinal() bool {
	return k == PlenaryAdopt || k == PlenaryDefeat
}

// VersionStage tags the lifecycle milestone a version snapshot was taken at.
type VersionStage string

const (
	StageOriginal         VersionStage = "ORIGINAL"
	StageCommitteeAmended VersionStage = "COMMITTEE_AMENDED"
	StagePlenaryAmended   VersionStage = "PLENARY_AMENDED"
	StageConsentCalendar  VersionStage = "CONSENT_CALENDAR"
	StageFinal            VersionStage = "FINAL"
)

// ParseVersionStage canonicalizes a version stage label.
func ParseVersionStage(value string) (VersionStage, bool) {
	stage := VersionStage(strings.ToUpper(strings.TrimSpace(value)))
	switch stage {
	case StageOriginal, StageCommitteeAmended, StagePlenaryAmended,
		StageConsentCalendar, StageFinal:
		return stage, true
	default:
		return "", false
	}
}

// CalendarSegment is the portion of a plenary agenda an item is placed on.
type CalendarSegment string

const (
	SegmentConsent      CalendarSegment = "CONSENT"
	SegmentRegular      CalendarSegment = "REGULAR"
	SegmentSpecialOrder CalendarSegment = "SPECIAL_ORDER"
)

// ParseCalendarSegment canonicalizes a calendar segment label.
func ParseCalendarSegment(value string) (CalendarSegment, bool) {
	segment := CalendarSegment(strings.ToUpper(strings.TrimSpace(value)))
	switch segment {
	case SegmentConsent, SegmentRegular, SegmentSpecialOrder:
		return segment, true
	default:
		return "", false
	}
}
