package app

import (
	"context"
	"strings"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/platform/requestctx"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/redline"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/routing"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// CommitteeInput carries one committee's routing rule configuration.
type CommitteeInput struct {
	ID               string
	Name             string
	ParagraphRanges  []routing.NumberRange
	ResolutionRanges []routing.NumberRange
	Tags             []string
}

// PutCommittee creates or replaces a committee and its routing rules.
func (s *Service) PutCommittee(ctx context.Context, input CommitteeInput) (storage.Committee, error) {
	if _, err := requireStaff(ctx); err != nil {
		return storage.Committee{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return storage.Committee{}, apperrors.New(apperrors.CodeIdentifierRequired, "committee name is required")
	}
	committeeID := strings.TrimSpace(input.ID)
	if committeeID == "" {
		generated, err := s.nextID()
		if err != nil {
			return storage.Committee{}, err
		}
		committeeID = generated
	}

	now := s.now().UTC()
	record := storage.Committee{
		ID:               committeeID,
		Name:             input.Name,
		ParagraphRanges:  input.ParagraphRanges,
		ResolutionRanges: input.ResolutionRanges,
		Tags:             input.Tags,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.PutCommittee(ctx, record); err != nil {
		return storage.Committee{}, storeError(err, nil, writeConflict("committee write raced another writer"))
	}
	return record, nil
}

// GetCommittee fetches one committee.
func (s *Service) GetCommittee(ctx context.Context, committeeID string) (storage.Committee, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return storage.Committee{}, err
	}
	record, err := s.store.GetCommittee(ctx, committeeID)
	if err != nil {
		return storage.Committee{}, storeError(err, committeeNotFound(committeeID), nil)
	}
	return record, nil
}

// ListCommittees returns all configured committees.
func (s *Service) ListCommittees(ctx context.Context) ([]storage.Committee, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	committees, err := s.store.ListCommittees(ctx)
	if err != nil {
		return nil, storeError(err, nil, nil)
	}
	return committees, nil
}

// AssignCommittee creates one manual petition-to-committee link.
func (s *Service) AssignCommittee(ctx context.Context, petitionID, committeeID string) (storage.Assignment, error) {
	if _, err := requireStaff(ctx); err != nil {
		return storage.Assignment{}, err
	}
	if _, err := s.store.GetCommittee(ctx, committeeID); err != nil {
		return storage.Assignment{}, storeError(err, committeeNotFound(committeeID), nil)
	}
	assignmentID, err := s.nextID()
	if err != nil {
		return storage.Assignment{}, err
	}
	record, err := s.store.CreateAssignment(ctx, storage.Assignment{
		ID:          assignmentID,
		PetitionID:  petitionID,
		CommitteeID: committeeID,
	}, s.now().UTC())
	if err != nil {
		return storage.Assignment{}, storeError(err, petitionNotFound(petitionID),
			apperrors.WithMetadata(apperrors.CodeAssignmentExists, "petition is already assigned to this committee",
				map[string]string{"petition_id": petitionID, "committee_id": committeeID}))
	}
	return record, nil
}

// ListAssignments returns a petition's committee assignments.
func (s *Service) ListAssignments(ctx context.Context, petitionID string) ([]storage.Assignment, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, petitionID)
	if err != nil {
		return nil, storeError(err, petitionNotFound(petitionID), nil)
	}
	return assignments, nil
}

// reviewableAssignment resolves an assignment the caller may act on: staff,
// or a delegate belonging to the assignment's committee.
func (s *Service) reviewableAssignment(ctx context.Context, assignmentID string) (requestctx.Identity, storage.Assignment, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return requestctx.Identity{}, storage.Assignment{}, err
	}
	record, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return requestctx.Identity{}, storage.Assignment{}, storeError(err, assignmentNotFound(assignmentID), nil)
	}
	if !identity.IsStaff() && !identity.MemberOf(record.CommitteeID) {
		return requestctx.Identity{}, storage.Assignment{}, apperrors.WithMetadata(apperrors.CodeCommitteeMismatch,
			"caller is not a member of the assignment's committee",
			map[string]string{"committee_id": record.CommitteeID})
	}
	return identity, record, nil
}

// UpdateAssignmentStatus advances one assignment's review progress.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, assignmentID string, status string) (storage.Assignment, error) {
	if _, _, err := s.reviewableAssignment(ctx, assignmentID); err != nil {
		return storage.Assignment{}, err
	}
	parsed, ok := petition.ParseAssignmentStatus(status)
	if !ok {
		return storage.Assignment{}, apperrors.WithMetadata(apperrors.CodeAssignmentInvalidStatus, "unknown assignment status",
			map[string]string{"status": status})
	}
	record, err := s.store.UpdateAssignmentStatus(ctx, assignmentID, parsed, s.now().UTC())
	if err != nil {
		return storage.Assignment{}, storeError(err, assignmentNotFound(assignmentID), writeConflict("assignment update raced another writer"))
	}
	return record, nil
}

// RemoveAssignment deletes a link that carries no final action.
// Administrators only.
func (s *Service) RemoveAssignment(ctx context.Context, assignmentID string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.store.RemoveAssignment(ctx, assignmentID); err != nil {
		return storeError(err, assignmentNotFound(assignmentID),
			apperrors.WithMetadata(apperrors.CodeAssignmentHasAction, "assignment has a final action",
				map[string]string{"assignment_id": assignmentID}))
	}
	return nil
}

// ActionInput carries one committee disposition.
type ActionInput struct {
	AssignmentID string
	Kind         string
	VotesFor     int
	VotesAgainst int
	VotesAbstain int
	Notes        string
}

// RecordCommitteeAction records one committee disposition and applies its
// lifecycle effect. Final kinds consume the assignment's single final slot.
func (s *Service) RecordCommitteeAction(ctx context.Context, input ActionInput) (storage.ActionResult, error) {
	identity, _, err := s.reviewableAssignment(ctx, input.AssignmentID)
	if err != nil {
		return storage.ActionResult{}, err
	}
	kind, ok := petition.ParseCommitteeActionKind(input.Kind)
	if !ok {
		return storage.ActionResult{}, apperrors.WithMetadata(apperrors.CodeCommitteeActionInvalidKind, "unknown committee action kind",
			map[string]string{"kind": input.Kind})
	}

	actionID, err := s.nextID()
	if err != nil {
		return storage.ActionResult{}, err
	}
	versionID, err := s.nextID()
	if err != nil {
		return storage.ActionResult{}, err
	}
	result, err := s.store.RecordCommitteeAction(ctx, storage.CommitteeAction{
		ID:           actionID,
		AssignmentID: input.AssignmentID,
		Kind:         kind,
		VotesFor:     input.VotesFor,
		VotesAgainst: input.VotesAgainst,
		VotesAbstain: input.VotesAbstain,
		Notes:        input.Notes,
		RecordedBy:   identity.UserID,
	}, versionID, s.now().UTC())
	if err != nil {
		return storage.ActionResult{}, storeError(err, assignmentNotFound(input.AssignmentID),
			apperrors.WithMetadata(apperrors.CodeFinalActionExists, "assignment already has a final action",
				map[string]string{"assignment_id": input.AssignmentID}))
	}
	return result, nil
}

// ListCommitteeActions returns an assignment's recorded dispositions.
func (s *Service) ListCommitteeActions(ctx context.Context, assignmentID string) ([]storage.CommitteeAction, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	actions, err := s.store.ListCommitteeActions(ctx, assignmentID)
	if err != nil {
		return nil, storeError(err, assignmentNotFound(assignmentID), nil)
	}
	return actions, nil
}

// AmendmentInput rewrites proposed text for the named targets.
type AmendmentInput struct {
	PetitionID string
	// ProposedText maps target ID to its replacement proposed text.
	ProposedText map[string]string
}

// AmendPetition applies committee wording changes to a petition's targets
// and appends a committee-amended snapshot. The recorded delta is a wdiff
// rendering of the wording change per target.
func (s *Service) AmendPetition(ctx context.Context, input AmendmentInput) (storage.Version, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return storage.Version{}, err
	}
	if len(input.ProposedText) == 0 {
		return storage.Version{}, apperrors.New(apperrors.CodePetitionTargetsEmpty, "amendment names no targets")
	}

	targets, err := s.store.ListTargets(ctx, input.PetitionID)
	if err != nil {
		return storage.Version{}, storeError(err, petitionNotFound(input.PetitionID), nil)
	}

	if !identity.IsStaff() {
		assignments, err := s.store.ListAssignments(ctx, input.PetitionID)
		if err != nil {
			return storage.Version{}, storeError(err, petitionNotFound(input.PetitionID), nil)
		}
		member := false
		for _, assignment := range assignments {
			if identity.MemberOf(assignment.CommitteeID) {
				member = true
				break
			}
		}
		if !member {
			return storage.Version{}, apperrors.New(apperrors.CodeCommitteeMismatch,
				"caller is not a member of any committee assigned to this petition")
		}
	}

	delta := amendmentDelta(targets, input.ProposedText)
	versionID, err := s.nextID()
	if err != nil {
		return storage.Version{}, err
	}
	version, err := s.store.RecordCommitteeAmendment(ctx, input.PetitionID, versionID, identity.UserID,
		input.ProposedText, delta, s.now().UTC())
	if err != nil {
		return storage.Version{}, storeError(err, petitionNotFound(input.PetitionID),
			writeConflict("amendment raced another writer"))
	}
	return version, nil
}

// amendmentDelta renders each target's wording change in wdiff notation:
// removed words in [-brackets-], added words in {+braces+}.
func amendmentDelta(targets []storage.Target, proposedText map[string]string) string {
	var parts []string
	for _, target := range targets {
		replacement, ok := proposedText[target.ID]
		if !ok {
			continue
		}
		segments := redline.DiffWords(target.ProposedText, replacement)
		parts = append(parts, formatSegments(segments))
	}
	return strings.Join(parts, "\n")
}

func formatSegments(segments []redline.Segment) string {
	var words []string
	for _, segment := range segments {
		switch segment.Op {
		case redline.OpAdded:
			words = append(words, "{+"+segment.Text+"+}")
		case redline.OpRemoved:
			words = append(words, "[-"+segment.Text+"-]")
		default:
			words = append(words, segment.Text)
		}
	}
	return strings.Join(words, " ")
}

func committeeNotFound(committeeID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeCommitteeNotFound, "committee not found",
		map[string]string{"committee_id": committeeID})
}

func assignmentNotFound(assignmentID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeAssignmentNotFound, "assignment not found",
		map[string]string{"assignment_id": assignmentID})
}
