package petition

// CommitteeOutcome is the lifecycle effect of recording one committee action.
type CommitteeOutcome struct {
	// PetitionStatus is the resulting petition status when ChangesPetition is set.
	PetitionStatus Status
	// ChangesPetition reports whether the petition status is rewritten.
	ChangesPetition bool
	// AssignmentStatus is the resulting assignment status.
	AssignmentStatus AssignmentStatus
	// Final reports whether the action consumes the assignment's final slot.
	Final bool
	// AppendsVersion reports whether a committee-amended snapshot is appended.
	AppendsVersion bool
}

// committeeOutcomes is the committee half of the transition table. Defer
// leaves the petition status alone; refer sends the petition back to
// UNDER_REVIEW without consuming finality.
var committeeOutcomes = map[CommitteeActionKind]CommitteeOutcome{
	CommitteeApprove: {
		PetitionStatus:   StatusApprovedByCommittee,
		ChangesPetition:  true,
		AssignmentStatus: AssignmentCompleted,
		Final:            true,
	},
	CommitteeReject: {
		PetitionStatus:   StatusRejectedByCommittee,
		ChangesPetition:  true,
		AssignmentStatus: AssignmentCompleted,
		Final:            true,
	},
	CommitteeNoAction: {
		PetitionStatus:   StatusRejectedByCommittee,
		ChangesPetition:  true,
		AssignmentStatus: AssignmentCompleted,
		Final:            true,
	},
	CommitteeAmendAndApprove: {
		PetitionStatus:   StatusAmended,
		ChangesPetition:  true,
		AssignmentStatus: AssignmentCompleted,
		Final:            true,
		AppendsVersion:   true,
	},
	CommitteeDefer: {
		AssignmentStatus: AssignmentDeferred,
	},
	CommitteeRefer: {
		PetitionStatus:   StatusUnderReview,
		ChangesPetition:  true,
		AssignmentStatus: AssignmentPending,
	},
}

// OutcomeOfCommitteeAction resolves the transition-table row for one action kind.
func OutcomeOfCommitteeAction(kind CommitteeActionKind) (CommitteeOutcome, bool) {
	outcome, ok := committeeOutcomes[kind]
	return outcome, ok
}

// PlenaryOutcome is the lifecycle effect of recording one plenary vote.
type PlenaryOutcome struct {
	// PetitionStatus is the resulting petition status when ChangesPetition is set.
	PetitionStatus Status
	// ChangesPetition reports whether the petition status is rewritten.
	ChangesPetition bool
	// Final reports whether the vote consumes the calendar item's final slot.
	Final bool
	// AppendsVersion reports whether a plenary-amended snapshot is appended.
	AppendsVersion bool
}

// plenaryOutcomes is the plenary half of the transition table. Table and
// postpone keep the petition on the calendar with no status change.
var plenaryOutcomes = map[PlenaryActionKind]PlenaryOutcome{
	PlenaryAdopt: {
		PetitionStatus:  StatusAdopted,
		ChangesPetition: true,
		Final:           true,
	},
	PlenaryDefeat: {
		PetitionStatus:  StatusDefeated,
		ChangesPetition: true,
		Final:           true,
	},
	PlenaryAmend: {
		PetitionStatus:  StatusAmended,
		ChangesPetition: true,
		AppendsVersion:  true,
	},
	PlenaryReferBack: {
		PetitionStatus:  StatusInCommittee,
		ChangesPetition: true,
	},
	PlenaryTable:    {},
	PlenaryPostpone: {},
}

// OutcomeOfPlenaryAction resolves the transition-table row for one vote kind.
func OutcomeOfPlenaryAction(kind PlenaryActionKind) (PlenaryOutcome, bool) {
	outcome, ok := plenaryOutcomes[kind]
	return outcome, ok
}

// CanPlaceOnCalendar reports whether a petition in the given status may be
// placed on a plenary calendar. ON_CALENDAR is allowed so an item can be
// moved between sessions.
func CanPlaceOnCalendar(status Status) bool {
	switch status {
	case StatusApprovedByCommittee, StatusAmended, StatusRejectedByCommittee, StatusOnCalendar:
		return true
	default:
		return false
	}
}

// StatusAfterCalendarRemoval is the petition status restored when a calendar
// item without a recorded vote is removed. The revert is unconditional: it
// does not reconstruct the item's pre-calendar status if that differed.
func StatusAfterCalendarRemoval() Status {
	return StatusApprovedByCommittee
}

// StatusAfterAssignmentProgress resolves the petition status cascade for an
// assignment status change. Setting an assignment IN_PROGRESS overwrites the
// petition status unconditionally, even from a terminal status; callers must
// not rely on monotonicity here. Preserved as observed upstream behavior.
func StatusAfterAssignmentProgress(status AssignmentStatus) (Status, bool) {
	if status == AssignmentInProgress {
		return StatusInCommittee, true
	}
	return "", false
}
