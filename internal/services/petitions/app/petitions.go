package app

import (
	"context"
	"strings"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/routing"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// DraftInput carries the caller-supplied petition content.
type DraftInput struct {
	Title          string
	Summary        string
	Rationale      string
	ActionType     string
	TargetDocument string
	ConferenceID   string
	ConferenceYear int
	Targets        []TargetInput
}

// TargetInput carries one caller-supplied document target.
type TargetInput struct {
	ParagraphNumber  *int
	ResolutionNumber *int
	ChangeType       string
	CurrentText      string
	ProposedText     string
	CategoryTags     []string
}

// PetitionDetail is a petition together with its current targets.
type PetitionDetail struct {
	Petition storage.Petition
	Targets  []storage.Target
}

func (s *Service) validateDraftInput(input DraftInput) (petition.ActionType, error) {
	if strings.TrimSpace(input.Title) == "" {
		return "", apperrors.New(apperrors.CodePetitionTitleEmpty, "petition title is required")
	}
	actionType, ok := petition.ParseActionType(input.ActionType)
	if !ok {
		return "", apperrors.WithMetadata(apperrors.CodePetitionInvalidActionType, "unknown action type",
			map[string]string{"action_type": input.ActionType})
	}
	return actionType, nil
}

func (s *Service) buildTargets(petitionID string, inputs []TargetInput) ([]storage.Target, error) {
	now := s.now().UTC()
	targets := make([]storage.Target, 0, len(inputs))
	for _, input := range inputs {
		changeType, ok := petition.ParseChangeType(input.ChangeType)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeTargetInvalidChangeType, "unknown change type",
				map[string]string{"change_type": input.ChangeType})
		}
		targetID, err := s.nextID()
		if err != nil {
			return nil, err
		}
		targets = append(targets, storage.Target{
			ID:               targetID,
			PetitionID:       petitionID,
			ParagraphNumber:  input.ParagraphNumber,
			ResolutionNumber: input.ResolutionNumber,
			ChangeType:       changeType,
			CurrentText:      input.CurrentText,
			ProposedText:     input.ProposedText,
			CategoryTags:     input.CategoryTags,
			CreatedAt:        now,
		})
	}
	return targets, nil
}

// CreateDraft creates a new petition in Draft for the calling submitter.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (PetitionDetail, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return PetitionDetail{}, err
	}
	actionType, err := s.validateDraftInput(input)
	if err != nil {
		return PetitionDetail{}, err
	}

	petitionID, err := s.nextID()
	if err != nil {
		return PetitionDetail{}, err
	}
	targets, err := s.buildTargets(petitionID, input.Targets)
	if err != nil {
		return PetitionDetail{}, err
	}

	now := s.now().UTC()
	record := storage.Petition{
		ID:             petitionID,
		Title:          input.Title,
		Summary:        input.Summary,
		Rationale:      input.Rationale,
		ActionType:     actionType,
		TargetDocument: input.TargetDocument,
		Status:         petition.StatusDraft,
		SubmitterID:    identity.UserID,
		ConferenceID:   input.ConferenceID,
		ConferenceYear: input.ConferenceYear,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.store.CreatePetition(ctx, record, targets)
	if err != nil {
		return PetitionDetail{}, storeError(err, nil, writeConflict("petition create raced another writer"))
	}
	return PetitionDetail{Petition: created, Targets: targets}, nil
}

// GetPetition fetches a petition and its current targets.
func (s *Service) GetPetition(ctx context.Context, petitionID string) (PetitionDetail, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return PetitionDetail{}, err
	}
	record, err := s.store.GetPetition(ctx, petitionID)
	if err != nil {
		return PetitionDetail{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	targets, err := s.store.ListTargets(ctx, petitionID)
	if err != nil {
		return PetitionDetail{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	return PetitionDetail{Petition: record, Targets: targets}, nil
}

func (s *Service) managedPetition(ctx context.Context, petitionID string) (storage.Petition, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return storage.Petition{}, err
	}
	record, err := s.store.GetPetition(ctx, petitionID)
	if err != nil {
		return storage.Petition{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	if !canManagePetition(identity, record) {
		return storage.Petition{}, apperrors.New(apperrors.CodePermissionDenied, "only the submitter or staff may modify this petition")
	}
	return record, nil
}

// UpdateDraft rewrites a draft petition's content fields.
func (s *Service) UpdateDraft(ctx context.Context, petitionID string, input DraftInput) (storage.Petition, error) {
	record, err := s.managedPetition(ctx, petitionID)
	if err != nil {
		return storage.Petition{}, err
	}
	if !record.Status.IsDraft() {
		return storage.Petition{}, notDraft(record)
	}
	actionType, err := s.validateDraftInput(input)
	if err != nil {
		return storage.Petition{}, err
	}

	record.Title = input.Title
	record.Summary = input.Summary
	record.Rationale = input.Rationale
	record.ActionType = actionType
	record.TargetDocument = input.TargetDocument
	record.UpdatedAt = s.now().UTC()

	updated, err := s.store.UpdateDraft(ctx, record)
	if err != nil {
		return storage.Petition{}, storeError(err, petitionNotFound(petitionID), notDraft(record))
	}
	return updated, nil
}

// ReplaceTargets swaps a draft petition's full target set.
func (s *Service) ReplaceTargets(ctx context.Context, petitionID string, inputs []TargetInput) ([]storage.Target, error) {
	record, err := s.managedPetition(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	if !record.Status.IsDraft() {
		return nil, notDraft(record)
	}
	targets, err := s.buildTargets(petitionID, inputs)
	if err != nil {
		return nil, err
	}
	replaced, err := s.store.ReplaceTargets(ctx, petitionID, targets)
	if err != nil {
		return nil, storeError(err, petitionNotFound(petitionID), notDraft(record))
	}
	return replaced, nil
}

// DeleteDraft removes a petition still in Draft.
func (s *Service) DeleteDraft(ctx context.Context, petitionID string) error {
	record, err := s.managedPetition(ctx, petitionID)
	if err != nil {
		return err
	}
	if !record.Status.IsDraft() {
		return notDraft(record)
	}
	if err := s.store.DeleteDraft(ctx, petitionID); err != nil {
		return storeError(err, petitionNotFound(petitionID), notDraft(record))
	}
	return nil
}

// SubmitPetition validates a draft and runs the submit transaction: display
// number assignment, version 1 snapshot, and the move to SUBMITTED.
func (s *Service) SubmitPetition(ctx context.Context, petitionID string) (storage.SubmitResult, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return storage.SubmitResult{}, err
	}
	record, err := s.store.GetPetition(ctx, petitionID)
	if err != nil {
		return storage.SubmitResult{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	if !canManagePetition(identity, record) {
		return storage.SubmitResult{}, apperrors.New(apperrors.CodePermissionDenied, "only the submitter or staff may submit this petition")
	}
	if !record.Status.IsDraft() {
		return storage.SubmitResult{}, notDraft(record)
	}
	if strings.TrimSpace(record.Title) == "" {
		return storage.SubmitResult{}, apperrors.New(apperrors.CodePetitionTitleEmpty, "petition title is required")
	}
	targets, err := s.store.ListTargets(ctx, petitionID)
	if err != nil {
		return storage.SubmitResult{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	if len(targets) == 0 {
		return storage.SubmitResult{}, apperrors.New(apperrors.CodePetitionTargetsEmpty, "petition needs at least one target")
	}

	versionID, err := s.nextID()
	if err != nil {
		return storage.SubmitResult{}, err
	}
	result, err := s.store.SubmitPetition(ctx, petitionID, versionID, identity.UserID, s.now().UTC())
	if err != nil {
		return storage.SubmitResult{}, storeError(err, petitionNotFound(petitionID), notDraft(record))
	}
	return result, nil
}

// WithdrawPetition moves a non-terminal petition to WITHDRAWN.
func (s *Service) WithdrawPetition(ctx context.Context, petitionID string) (storage.Petition, error) {
	record, err := s.managedPetition(ctx, petitionID)
	if err != nil {
		return storage.Petition{}, err
	}
	if record.Status.IsTerminal() {
		return storage.Petition{}, terminal(record)
	}
	withdrawn, err := s.store.WithdrawPetition(ctx, petitionID, s.now().UTC())
	if err != nil {
		return storage.Petition{}, storeError(err, petitionNotFound(petitionID), terminal(record))
	}
	return withdrawn, nil
}

// RouteResult reports the outcome of auto-routing one petition.
type RouteResult struct {
	// CommitteeIDs are the matched committees in match order.
	CommitteeIDs []string
	// Created is how many assignments were new; re-routing an already
	// assigned committee counts as satisfied, not created.
	Created int
}

// AutoRoute matches a submitted petition's targets against every committee's
// rules and creates the missing assignments. The operation is idempotent.
// Routing marks the petition under review even when no committee matched;
// the unmatched set is the secretariat's cue to assign manually.
func (s *Service) AutoRoute(ctx context.Context, petitionID string) (RouteResult, error) {
	if _, err := requireStaff(ctx); err != nil {
		return RouteResult{}, err
	}
	record, err := s.store.GetPetition(ctx, petitionID)
	if err != nil {
		return RouteResult{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	if record.Status.IsDraft() {
		return RouteResult{}, notSubmitted(record)
	}
	if record.Status.IsTerminal() {
		return RouteResult{}, terminal(record)
	}

	targets, err := s.store.ListTargets(ctx, petitionID)
	if err != nil {
		return RouteResult{}, storeError(err, petitionNotFound(petitionID), nil)
	}
	committees, err := s.store.ListCommittees(ctx)
	if err != nil {
		return RouteResult{}, storeError(err, nil, nil)
	}

	routingTargets := make([]routing.Target, 0, len(targets))
	for _, target := range targets {
		routingTargets = append(routingTargets, target.RoutingTarget())
	}
	ruleSets := make([]routing.RuleSet, 0, len(committees))
	for _, committee := range committees {
		ruleSets = append(ruleSets, committee.RuleSet())
	}
	matched := routing.MatchCommittees(routingTargets, ruleSets)
	assignments := make([]storage.Assignment, 0, len(matched))
	for _, committeeID := range matched {
		assignmentID, err := s.nextID()
		if err != nil {
			return RouteResult{}, err
		}
		assignments = append(assignments, storage.Assignment{
			ID:          assignmentID,
			PetitionID:  petitionID,
			CommitteeID: committeeID,
		})
	}
	created, err := s.store.CreateAssignments(ctx, petitionID, assignments, s.now().UTC())
	if err != nil {
		return RouteResult{}, storeError(err, petitionNotFound(petitionID), writeConflict("routing raced another writer"))
	}
	return RouteResult{CommitteeIDs: matched, Created: created}, nil
}

func notDraft(record storage.Petition) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePetitionNotDraft, "petition is no longer a draft",
		map[string]string{"petition_id": record.ID, "status": string(record.Status)})
}

func notSubmitted(record storage.Petition) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePetitionInvalidStatus, "petition has not been submitted",
		map[string]string{"petition_id": record.ID, "status": string(record.Status)})
}

func terminal(record storage.Petition) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePetitionTerminal, "petition is in a terminal status",
		map[string]string{"petition_id": record.ID, "status": string(record.Status)})
}
