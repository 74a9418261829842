package app

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// SessionInput carries one plenary session's schedule.
type SessionInput struct {
	ID           string
	ConferenceID string
	Name         string
	ScheduledFor time.Time
}

// PutSession creates or replaces a plenary session.
func (s *Service) PutSession(ctx context.Context, input SessionInput) (storage.PlenarySession, error) {
	if _, err := requireStaff(ctx); err != nil {
		return storage.PlenarySession{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return storage.PlenarySession{}, apperrors.New(apperrors.CodeIdentifierRequired, "session name is required")
	}
	sessionID := strings.TrimSpace(input.ID)
	if sessionID == "" {
		generated, err := s.nextID()
		if err != nil {
			return storage.PlenarySession{}, err
		}
		sessionID = generated
	}

	record := storage.PlenarySession{
		ID:           sessionID,
		ConferenceID: input.ConferenceID,
		Name:         input.Name,
		ScheduledFor: input.ScheduledFor,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.PutSession(ctx, record); err != nil {
		return storage.PlenarySession{}, storeError(err, nil, writeConflict("session write raced another writer"))
	}
	return record, nil
}

// GetSession fetches one plenary session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (storage.PlenarySession, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return storage.PlenarySession{}, err
	}
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.PlenarySession{}, storeError(err, sessionNotFound(sessionID), nil)
	}
	return record, nil
}

// CalendarInput places one petition on a session's agenda.
type CalendarInput struct {
	SessionID  string
	PetitionID string
	Segment    string
	Position   int
}

// PlaceOnCalendar schedules a committee-reviewed petition for plenary
// consideration and moves it to ON_CALENDAR.
func (s *Service) PlaceOnCalendar(ctx context.Context, input CalendarInput) (storage.CalendarItem, error) {
	if _, err := requireStaff(ctx); err != nil {
		return storage.CalendarItem{}, err
	}
	segment, ok := petition.ParseCalendarSegment(input.Segment)
	if !ok {
		return storage.CalendarItem{}, apperrors.WithMetadata(apperrors.CodeCalendarInvalidSegment, "unknown calendar segment",
			map[string]string{"segment": input.Segment})
	}
	if _, err := s.store.GetSession(ctx, input.SessionID); err != nil {
		return storage.CalendarItem{}, storeError(err, sessionNotFound(input.SessionID), nil)
	}
	record, err := s.store.GetPetition(ctx, input.PetitionID)
	if err != nil {
		return storage.CalendarItem{}, storeError(err, petitionNotFound(input.PetitionID), nil)
	}
	if !petition.CanPlaceOnCalendar(record.Status) {
		return storage.CalendarItem{}, notCalendarable(record)
	}

	itemID, err := s.nextID()
	if err != nil {
		return storage.CalendarItem{}, err
	}
	item, err := s.store.PlaceOnCalendar(ctx, storage.CalendarItem{
		ID:         itemID,
		SessionID:  input.SessionID,
		PetitionID: input.PetitionID,
		Segment:    segment,
		Position:   input.Position,
	}, s.now().UTC())
	if err != nil {
		return storage.CalendarItem{}, storeError(err, petitionNotFound(input.PetitionID), notCalendarable(record))
	}
	return item, nil
}

// GetCalendarItem fetches one agenda item.
func (s *Service) GetCalendarItem(ctx context.Context, itemID string) (storage.CalendarItem, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return storage.CalendarItem{}, err
	}
	record, err := s.store.GetCalendarItem(ctx, itemID)
	if err != nil {
		return storage.CalendarItem{}, storeError(err, calendarItemNotFound(itemID), nil)
	}
	return record, nil
}

// ListCalendarItems returns a session's agenda.
func (s *Service) ListCalendarItems(ctx context.Context, sessionID string) ([]storage.CalendarItem, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	items, err := s.store.ListCalendarItems(ctx, sessionID)
	if err != nil {
		return nil, storeError(err, sessionNotFound(sessionID), nil)
	}
	return items, nil
}

// UpdateCalendarItem repositions an unvoted agenda item.
func (s *Service) UpdateCalendarItem(ctx context.Context, itemID string, input CalendarInput) (storage.CalendarItem, error) {
	if _, err := requireStaff(ctx); err != nil {
		return storage.CalendarItem{}, err
	}
	segment, ok := petition.ParseCalendarSegment(input.Segment)
	if !ok {
		return storage.CalendarItem{}, apperrors.WithMetadata(apperrors.CodeCalendarInvalidSegment, "unknown calendar segment",
			map[string]string{"segment": input.Segment})
	}
	current, err := s.store.GetCalendarItem(ctx, itemID)
	if err != nil {
		return storage.CalendarItem{}, storeError(err, calendarItemNotFound(itemID), nil)
	}

	sessionID := input.SessionID
	if strings.TrimSpace(sessionID) == "" {
		sessionID = current.SessionID
	} else if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return storage.CalendarItem{}, storeError(err, sessionNotFound(sessionID), nil)
	}

	current.SessionID = sessionID
	current.Segment = segment
	current.Position = input.Position
	updated, err := s.store.UpdateCalendarItem(ctx, current, s.now().UTC())
	if err != nil {
		return storage.CalendarItem{}, storeError(err, calendarItemNotFound(itemID), itemVoted(itemID))
	}
	return updated, nil
}

// RemoveCalendarItem deletes an unvoted agenda item and reverts the
// petition to APPROVED_BY_COMMITTEE.
func (s *Service) RemoveCalendarItem(ctx context.Context, itemID string) error {
	if _, err := requireStaff(ctx); err != nil {
		return err
	}
	if err := s.store.RemoveCalendarItem(ctx, itemID, s.now().UTC()); err != nil {
		return storeError(err, calendarItemNotFound(itemID), itemVoted(itemID))
	}
	return nil
}

// VoteInput carries one full-body vote on a calendar item.
type VoteInput struct {
	CalendarItemID string
	Kind           string
	VotesFor       int
	VotesAgainst   int
	VotesAbstain   int
}

// RecordPlenaryVote records one full-body vote and applies its lifecycle
// effect. Adopt and defeat consume the item's single final slot.
func (s *Service) RecordPlenaryVote(ctx context.Context, input VoteInput) (storage.VoteResult, error) {
	identity, err := requireStaff(ctx)
	if err != nil {
		return storage.VoteResult{}, err
	}
	kind, ok := petition.ParsePlenaryActionKind(input.Kind)
	if !ok {
		return storage.VoteResult{}, apperrors.WithMetadata(apperrors.CodePlenaryActionInvalidKind, "unknown plenary action kind",
			map[string]string{"kind": input.Kind})
	}

	actionID, err := s.nextID()
	if err != nil {
		return storage.VoteResult{}, err
	}
	versionID, err := s.nextID()
	if err != nil {
		return storage.VoteResult{}, err
	}
	result, err := s.store.RecordPlenaryVote(ctx, storage.PlenaryAction{
		ID:             actionID,
		CalendarItemID: input.CalendarItemID,
		Kind:           kind,
		VotesFor:       input.VotesFor,
		VotesAgainst:   input.VotesAgainst,
		VotesAbstain:   input.VotesAbstain,
		RecordedBy:     identity.UserID,
	}, versionID, s.now().UTC())
	if err != nil {
		return storage.VoteResult{}, storeError(err, calendarItemNotFound(input.CalendarItemID),
			apperrors.WithMetadata(apperrors.CodeFinalVoteExists, "calendar item already has a final vote",
				map[string]string{"calendar_item_id": input.CalendarItemID}))
	}
	return result, nil
}

// ListPlenaryActions returns a calendar item's recorded votes.
func (s *Service) ListPlenaryActions(ctx context.Context, calendarItemID string) ([]storage.PlenaryAction, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	actions, err := s.store.ListPlenaryActions(ctx, calendarItemID)
	if err != nil {
		return nil, storeError(err, calendarItemNotFound(calendarItemID), nil)
	}
	return actions, nil
}

func sessionNotFound(sessionID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeSessionNotFound, "session not found",
		map[string]string{"session_id": sessionID})
}

func calendarItemNotFound(itemID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeCalendarItemNotFound, "calendar item not found",
		map[string]string{"calendar_item_id": itemID})
}

func itemVoted(itemID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeCalendarItemVoted, "calendar item has a recorded vote",
		map[string]string{"calendar_item_id": itemID})
}

func notCalendarable(record storage.Petition) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePetitionNotCalendarable, "petition status disallows calendar placement",
		map[string]string{"petition_id": record.ID, "status": string(record.Status)})
}
