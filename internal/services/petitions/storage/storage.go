// Package storage defines persistence contracts for petition lifecycle state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/routing"
)

var (
	// ErrNotFound indicates a requested record is missing or does not belong
	// to the parent it was requested under.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a precondition re-checked inside a transaction
	// failed: the caller raced another writer and lost.
	ErrConflict = errors.New("write conflict")
)

// Petition stores one proposed change to a reference document.
type Petition struct {
	ID             string
	DisplayNumber  string
	Title          string
	Summary        string
	Rationale      string
	ActionType     petition.ActionType
	TargetDocument string
	Status         petition.Status
	SubmitterID    string
	ConferenceID   string
	ConferenceYear int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Target stores one reference-document location a petition proposes to change.
type Target struct {
	ID               string
	PetitionID       string
	ParagraphNumber  *int
	ResolutionNumber *int
	ChangeType       petition.ChangeType
	CurrentText      string
	ProposedText     string
	CategoryTags     []string
	CreatedAt        time.Time
}

// RoutingTarget maps the target onto the routing matcher's input.
func (t Target) RoutingTarget() routing.Target {
	return routing.Target{
		ParagraphNumber:  t.ParagraphNumber,
		ResolutionNumber: t.ResolutionNumber,
		CategoryTags:     t.CategoryTags,
	}
}

// Committee stores one routing destination and its configured rules.
type Committee struct {
	ID               string
	Name             string
	ParagraphRanges  []routing.NumberRange
	ResolutionRanges []routing.NumberRange
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RuleSet maps the committee onto the routing matcher's input.
func (c Committee) RuleSet() routing.RuleSet {
	return routing.RuleSet{
		CommitteeID:      c.ID,
		ParagraphRanges:  c.ParagraphRanges,
		ResolutionRanges: c.ResolutionRanges,
		Tags:             c.Tags,
	}
}

// Assignment stores one petition-to-committee review link.
type Assignment struct {
	ID          string
	PetitionID  string
	CommitteeID string
	Status      petition.AssignmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommitteeAction stores one immutable committee disposition of an assignment.
type CommitteeAction struct {
	ID           string
	AssignmentID string
	Kind         petition.CommitteeActionKind
	VotesFor     int
	VotesAgainst int
	VotesAbstain int
	Notes        string
	RecordedBy   string
	CreatedAt    time.Time
}

// PlenarySession stores one scheduled full-body meeting.
type PlenarySession struct {
	ID           string
	ConferenceID string
	Name         string
	ScheduledFor time.Time
	CreatedAt    time.Time
}

// CalendarItem stores one petition's placement on a session's agenda.
type CalendarItem struct {
	ID         string
	SessionID  string
	PetitionID string
	Segment    petition.CalendarSegment
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlenaryAction stores one immutable full-body vote on a calendar item.
type PlenaryAction struct {
	ID             string
	CalendarItemID string
	Kind           petition.PlenaryActionKind
	VotesFor       int
	VotesAgainst   int
	VotesAbstain   int
	RecordedBy     string
	CreatedAt      time.Time
}

// Version stores one immutable, petition-scoped numbered snapshot.
type Version struct {
	ID         string
	PetitionID string
	VersionNum int
	Stage      petition.VersionStage
	Snapshot   Snapshot
	Delta      string
	CreatedBy  string
	CreatedAt  time.Time
}

// SubmitResult is the outcome of one successful submit transaction.
type SubmitResult struct {
	Petition Petition
	Version  Version
}

// ActionResult is the outcome of one successful committee-action transaction.
type ActionResult struct {
	Action     CommitteeAction
	Assignment Assignment
	Petition   Petition
	// Version is set when the action appended an amended snapshot.
	Version *Version
}

// VoteResult is the outcome of one successful plenary-vote transaction.
type VoteResult struct {
	Action   PlenaryAction
	Petition Petition
	// Version is set when the vote appended an amended snapshot.
	Version *Version
}

// PetitionStore persists petitions and their targets.
type PetitionStore interface {
	CreatePetition(ctx context.Context, record Petition, targets []Target) (Petition, error)
	GetPetition(ctx context.Context, petitionID string) (Petition, error)
	ListTargets(ctx context.Context, petitionID string) ([]Target, error)
	// UpdateDraft rewrites top-level fields after re-checking Draft status
	// inside the transaction.
	UpdateDraft(ctx context.Context, record Petition) (Petition, error)
	// ReplaceTargets swaps the full target set after re-checking Draft status
	// inside the transaction.
	ReplaceTargets(ctx context.Context, petitionID string, targets []Target) ([]Target, error)
	// DeleteDraft removes a petition after re-checking Draft status inside
	// the transaction. Versions cascade.
	DeleteDraft(ctx context.Context, petitionID string) error
	// SubmitPetition assigns the display number, appends version 1, and moves
	// the petition to SUBMITTED in one transaction.
	SubmitPetition(ctx context.Context, petitionID string, versionID string, submittedBy string, now time.Time) (SubmitResult, error)
	// WithdrawPetition moves a non-terminal petition to WITHDRAWN.
	WithdrawPetition(ctx context.Context, petitionID string, now time.Time) (Petition, error)
}

// CommitteeStore persists committee reference data.
type CommitteeStore interface {
	PutCommittee(ctx context.Context, record Committee) error
	GetCommittee(ctx context.Context, committeeID string) (Committee, error)
	ListCommittees(ctx context.Context) ([]Committee, error)
}

// AssignmentStore persists petition-to-committee review links.
type AssignmentStore interface {
	// CreateAssignments inserts links for each committee not already
	// assigned and reports how many were new. Duplicates are treated as
	// already satisfied. The petition moves to UNDER_REVIEW.
	CreateAssignments(ctx context.Context, petitionID string, assignments []Assignment, now time.Time) (int, error)
	// CreateAssignment inserts one manual link; a duplicate pair yields
	// ErrConflict.
	CreateAssignment(ctx context.Context, record Assignment, now time.Time) (Assignment, error)
	GetAssignment(ctx context.Context, assignmentID string) (Assignment, error)
	ListAssignments(ctx context.Context, petitionID string) ([]Assignment, error)
	// UpdateAssignmentStatus advances review progress; IN_PROGRESS cascades
	// the petition to IN_COMMITTEE unconditionally.
	UpdateAssignmentStatus(ctx context.Context, assignmentID string, status petition.AssignmentStatus, now time.Time) (Assignment, error)
	// RemoveAssignment deletes a link carrying no final action.
	RemoveAssignment(ctx context.Context, assignmentID string) error
}

// ActionStore persists committee dispositions.
type ActionStore interface {
	// RecordCommitteeAction writes the action, advances assignment and
	// petition status, and appends an amended version when required, all in
	// one transaction. A second final action yields ErrConflict.
	RecordCommitteeAction(ctx context.Context, record CommitteeAction, versionID string, now time.Time) (ActionResult, error)
	ListCommitteeActions(ctx context.Context, assignmentID string) ([]CommitteeAction, error)
	// RecordCommitteeAmendment rewrites target proposed text and appends a
	// committee-amended snapshot without consuming the final-action slot.
	RecordCommitteeAmendment(ctx context.Context, petitionID string, versionID string, amendedBy string, proposedText map[string]string, delta string, now time.Time) (Version, error)
}

// CalendarStore persists plenary sessions, calendar items, and votes.
type CalendarStore interface {
	PutSession(ctx context.Context, record PlenarySession) error
	GetSession(ctx context.Context, sessionID string) (PlenarySession, error)
	// PlaceOnCalendar creates the item and moves the petition to ON_CALENDAR
	// after re-checking the source status inside the transaction.
	PlaceOnCalendar(ctx context.Context, record CalendarItem, now time.Time) (CalendarItem, error)
	GetCalendarItem(ctx context.Context, itemID string) (CalendarItem, error)
	ListCalendarItems(ctx context.Context, sessionID string) ([]CalendarItem, error)
	// UpdateCalendarItem repositions an item that has no recorded vote.
	UpdateCalendarItem(ctx context.Context, record CalendarItem, now time.Time) (CalendarItem, error)
	// RemoveCalendarItem deletes an item with no recorded vote and reverts
	// the petition to APPROVED_BY_COMMITTEE.
	RemoveCalendarItem(ctx context.Context, itemID string, now time.Time) error
	// RecordPlenaryVote writes the vote and applies the status cascade in one
	// transaction. A second final vote yields ErrConflict.
	RecordPlenaryVote(ctx context.Context, record PlenaryAction, versionID string, now time.Time) (VoteResult, error)
	ListPlenaryActions(ctx context.Context, calendarItemID string) ([]PlenaryAction, error)
}

// VersionStore reads the immutable version ledger.
type VersionStore interface {
	GetVersion(ctx context.Context, versionID string) (Version, error)
	ListVersions(ctx context.Context, petitionID string) ([]Version, error)
}

// Store is the full persistence surface of the lifecycle engine.
type Store interface {
	PetitionStore
	CommitteeStore
	AssignmentStore
	ActionStore
	CalendarStore
	VersionStore
}
