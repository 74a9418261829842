// Package errors provides structured, coded error handling for the petition engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodePetitionTitleEmpty          Code = "PETITION_TITLE_EMPTY"
	CodePetitionTargetsEmpty        Code = "PETITION_TARGETS_EMPTY"
	CodePetitionInvalidActionType   Code = "PETITION_INVALID_ACTION_TYPE"
	CodePetitionInvalidStatus       Code = "PETITION_INVALID_STATUS"
	CodeTargetInvalidChangeType     Code = "TARGET_INVALID_CHANGE_TYPE"
	CodeAssignmentInvalidStatus     Code = "ASSIGNMENT_INVALID_STATUS"
	CodeCommitteeActionInvalidKind  Code = "COMMITTEE_ACTION_INVALID_KIND"
	CodePlenaryActionInvalidKind    Code = "PLENARY_ACTION_INVALID_KIND"
	CodeCalendarInvalidSegment      Code = "CALENDAR_INVALID_SEGMENT"
	CodeVersionInvalidStage         Code = "VERSION_INVALID_STAGE"
	CodeIdentifierRequired          Code = "IDENTIFIER_REQUIRED"

	// Authorization errors
	CodeIdentityRequired  Code = "IDENTITY_REQUIRED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeCommitteeMismatch Code = "COMMITTEE_MEMBERSHIP_REQUIRED"

	// Not-found errors
	CodePetitionNotFound     Code = "PETITION_NOT_FOUND"
	CodeAssignmentNotFound   Code = "ASSIGNMENT_NOT_FOUND"
	CodeCommitteeNotFound    Code = "COMMITTEE_NOT_FOUND"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeCalendarItemNotFound Code = "CALENDAR_ITEM_NOT_FOUND"
	CodeVersionNotFound      Code = "VERSION_NOT_FOUND"

	// Conflict errors (precondition re-check inside the transaction failed)
	CodePetitionNotDraft       Code = "PETITION_NOT_DRAFT"
	CodePetitionNotCalendarable Code = "PETITION_STATUS_DISALLOWS_CALENDAR"
	CodeFinalActionExists      Code = "FINAL_ACTION_ALREADY_RECORDED"
	CodeFinalVoteExists        Code = "FINAL_VOTE_ALREADY_RECORDED"
	CodeAssignmentExists       Code = "ASSIGNMENT_ALREADY_EXISTS"
	CodeCalendarItemVoted      Code = "CALENDAR_ITEM_HAS_VOTE"
	CodeAssignmentHasAction    Code = "ASSIGNMENT_HAS_FINAL_ACTION"
	CodePetitionTerminal       Code = "PETITION_STATUS_TERMINAL"
	CodeWriteConflict          Code = "WRITE_CONFLICT"

	// Store integrity errors
	CodeStoreIntegrity Code = "STORE_INTEGRITY"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePetitionTitleEmpty,
		CodePetitionTargetsEmpty,
		CodePetitionInvalidActionType,
		CodePetitionInvalidStatus,
		CodeTargetInvalidChangeType,
		CodeAssignmentInvalidStatus,
		CodeCommitteeActionInvalidKind,
		CodePlenaryActionInvalidKind,
		CodeCalendarInvalidSegment,
		CodeVersionInvalidStage,
		CodeIdentifierRequired:
		return codes.InvalidArgument

	// PermissionDenied / Unauthenticated - caller lacks role or membership
	case CodeIdentityRequired:
		return codes.Unauthenticated
	case CodePermissionDenied,
		CodeCommitteeMismatch:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist or does not belong to its parent
	case CodePetitionNotFound,
		CodeAssignmentNotFound,
		CodeCommitteeNotFound,
		CodeSessionNotFound,
		CodeCalendarItemNotFound,
		CodeVersionNotFound:
		return codes.NotFound

	// FailedPrecondition - state re-checked inside the transaction disallows the write
	case CodePetitionNotDraft,
		CodePetitionNotCalendarable,
		CodeFinalActionExists,
		CodeFinalVoteExists,
		CodeCalendarItemVoted,
		CodeAssignmentHasAction,
		CodePetitionTerminal:
		return codes.FailedPrecondition

	// AlreadyExists - unique resource constraint
	case CodeAssignmentExists:
		return codes.AlreadyExists

	// Aborted - raced and lost; caller may retry
	case CodeWriteConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
