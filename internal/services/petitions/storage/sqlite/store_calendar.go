package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// PutSession creates or replaces one plenary session.
func (s *Store) PutSession(ctx context.Context, record storage.PlenarySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO plenary_sessions (id, conference_id, name, scheduled_for, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    conference_id = excluded.conference_id,
    name = excluded.name,
    scheduled_for = excluded.scheduled_for`,
		record.ID,
		record.ConferenceID,
		record.Name,
		toMillis(record.ScheduledFor),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return conflictOr(err, "put session")
	}
	return nil
}

// GetSession fetches one plenary session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.PlenarySession, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlenarySession{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PlenarySession{}, fmt.Errorf("storage is not configured")
	}

	var (
		record       storage.PlenarySession
		scheduledFor int64
		createdAt    int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, conference_id, name, scheduled_for, created_at FROM plenary_sessions WHERE id = ?`,
		sessionID,
	).Scan(&record.ID, &record.ConferenceID, &record.Name, &scheduledFor, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlenarySession{}, storage.ErrNotFound
		}
		return storage.PlenarySession{}, fmt.Errorf("get session: %w", err)
	}
	record.ScheduledFor = fromMillis(scheduledFor)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

const calendarItemColumns = `id, session_id, petition_id, segment, position, created_at, updated_at`

func scanCalendarItem(scan func(dest ...any) error) (storage.CalendarItem, error) {
	var (
		record    storage.CalendarItem
		segment   string
		createdAt int64
		updatedAt int64
	)
	err := scan(
		&record.ID,
		&record.SessionID,
		&record.PetitionID,
		&segment,
		&record.Position,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.CalendarItem{}, err
	}
	parsed, ok := petition.ParseCalendarSegment(segment)
	if !ok {
		return storage.CalendarItem{}, fmt.Errorf("calendar item %s has invalid segment %q", record.ID, segment)
	}
	record.Segment = parsed
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func getCalendarItem(ctx context.Context, q dbtx, itemID string) (storage.CalendarItem, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+calendarItemColumns+` FROM calendar_items WHERE id = ?`, itemID)
	record, err := scanCalendarItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CalendarItem{}, storage.ErrNotFound
		}
		return storage.CalendarItem{}, fmt.Errorf("get calendar item: %w", err)
	}
	return record, nil
}

func countFinalVotes(ctx context.Context, q dbtx, itemID string) (int, error) {
	var finals int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plenary_actions WHERE calendar_item_id = ? AND is_final = 1`,
		itemID,
	).Scan(&finals)
	if err != nil {
		return 0, fmt.Errorf("count final votes: %w", err)
	}
	return finals, nil
}

// PlaceOnCalendar creates the agenda item and moves the petition to
// ON_CALENDAR. The source-status gate is re-checked inside the transaction.
func (s *Store) PlaceOnCalendar(ctx context.Context, record storage.CalendarItem, now time.Time) (storage.CalendarItem, error) {
	if err := ctx.Err(); err != nil {
		return storage.CalendarItem{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CalendarItem{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "place on calendar")
	if err != nil {
		return storage.CalendarItem{}, err
	}

	current, err := getPetition(ctx, tx, record.PetitionID)
	if err != nil {
		return storage.CalendarItem{}, rollbackWith(err)
	}
	if !petition.CanPlaceOnCalendar(current.Status) {
		return storage.CalendarItem{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", record.PetitionID, current.Status, storage.ErrConflict))
	}

	record.CreatedAt = now
	record.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
INSERT INTO calendar_items (id, session_id, petition_id, segment, position, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.PetitionID,
		string(record.Segment),
		record.Position,
		toMillis(now),
		toMillis(now),
	); err != nil {
		return storage.CalendarItem{}, rollbackWith(conflictOr(err, "insert calendar item"))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
		string(petition.StatusOnCalendar),
		toMillis(now),
		record.PetitionID,
	); err != nil {
		return storage.CalendarItem{}, rollbackWith(conflictOr(err, "mark on calendar"))
	}

	if err := tx.Commit(); err != nil {
		return storage.CalendarItem{}, conflictOr(err, "commit place on calendar")
	}
	return record, nil
}

// GetCalendarItem fetches one agenda item by ID.
func (s *Store) GetCalendarItem(ctx context.Context, itemID string) (storage.CalendarItem, error) {
	if err := ctx.Err(); err != nil {
		return storage.CalendarItem{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CalendarItem{}, fmt.Errorf("storage is not configured")
	}
	return getCalendarItem(ctx, s.sqlDB, itemID)
}

// ListCalendarItems returns a session's agenda ordered by segment position.
func (s *Store) ListCalendarItems(ctx context.Context, sessionID string) ([]storage.CalendarItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+calendarItemColumns+` FROM calendar_items WHERE session_id = ? ORDER BY segment ASC, position ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list calendar items: %w", err)
	}
	defer rows.Close()

	var items []storage.CalendarItem
	for rows.Next() {
		record, err := scanCalendarItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan calendar item: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calendar items: %w", err)
	}
	return items, nil
}

// UpdateCalendarItem repositions an item. A recorded final vote freezes the
// item as history.
func (s *Store) UpdateCalendarItem(ctx context.Context, record storage.CalendarItem, now time.Time) (storage.CalendarItem, error) {
	if err := ctx.Err(); err != nil {
		return storage.CalendarItem{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CalendarItem{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "update calendar item")
	if err != nil {
		return storage.CalendarItem{}, err
	}

	current, err := getCalendarItem(ctx, tx, record.ID)
	if err != nil {
		return storage.CalendarItem{}, rollbackWith(err)
	}
	finals, err := countFinalVotes(ctx, tx, record.ID)
	if err != nil {
		return storage.CalendarItem{}, rollbackWith(err)
	}
	if finals > 0 {
		return storage.CalendarItem{}, rollbackWith(fmt.Errorf("calendar item %s has a recorded vote: %w", record.ID, storage.ErrConflict))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE calendar_items SET session_id = ?, segment = ?, position = ?, updated_at = ? WHERE id = ?`,
		record.SessionID,
		string(record.Segment),
		record.Position,
		toMillis(now),
		record.ID,
	); err != nil {
		return storage.CalendarItem{}, rollbackWith(conflictOr(err, "update calendar item"))
	}
	if err := tx.Commit(); err != nil {
		return storage.CalendarItem{}, conflictOr(err, "commit update calendar item")
	}

	current.SessionID = record.SessionID
	current.Segment = record.Segment
	current.Position = record.Position
	current.UpdatedAt = now
	return current, nil
}

// RemoveCalendarItem deletes an unvoted item and reverts the petition to
// APPROVED_BY_COMMITTEE.
func (s *Store) RemoveCalendarItem(ctx context.Context, itemID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "remove calendar item")
	if err != nil {
		return err
	}

	current, err := getCalendarItem(ctx, tx, itemID)
	if err != nil {
		return rollbackWith(err)
	}
	var votes int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plenary_actions WHERE calendar_item_id = ?`,
		itemID,
	).Scan(&votes); err != nil {
		return rollbackWith(fmt.Errorf("count votes: %w", err))
	}
	if votes > 0 {
		return rollbackWith(fmt.Errorf("calendar item %s has recorded votes: %w", itemID, storage.ErrConflict))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_items WHERE id = ?`, itemID); err != nil {
		return rollbackWith(fmt.Errorf("delete calendar item: %w", err))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
		string(petition.StatusAfterCalendarRemoval()),
		toMillis(now),
		current.PetitionID,
	); err != nil {
		return rollbackWith(conflictOr(err, "revert petition status"))
	}
	if err := tx.Commit(); err != nil {
		return conflictOr(err, "commit remove calendar item")
	}
	return nil
}

// RecordPlenaryVote writes one full-body vote and applies its lifecycle
// effect in a single transaction. The final-slot precondition is re-checked
// under the tx write lock; the partial unique index is the backstop.
func (s *Store) RecordPlenaryVote(ctx context.Context, record storage.PlenaryAction, versionID string, now time.Time) (storage.VoteResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.VoteResult{}, fmt.Errorf("storage is not configured")
	}

	outcome, ok := petition.OutcomeOfPlenaryAction(record.Kind)
	if !ok {
		return storage.VoteResult{}, fmt.Errorf("unknown plenary action kind %q", record.Kind)
	}

	tx, rollbackWith, err := s.begin(ctx, "record plenary vote")
	if err != nil {
		return storage.VoteResult{}, err
	}

	item, err := getCalendarItem(ctx, tx, record.CalendarItemID)
	if err != nil {
		return storage.VoteResult{}, rollbackWith(err)
	}
	current, err := getPetition(ctx, tx, item.PetitionID)
	if err != nil {
		return storage.VoteResult{}, rollbackWith(err)
	}
	if current.Status.IsTerminal() {
		return storage.VoteResult{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", current.ID, current.Status, storage.ErrConflict))
	}

	if outcome.Final {
		finals, err := countFinalVotes(ctx, tx, record.CalendarItemID)
		if err != nil {
			return storage.VoteResult{}, rollbackWith(err)
		}
		if finals > 0 {
			return storage.VoteResult{}, rollbackWith(fmt.Errorf("calendar item %s already has a final vote: %w", record.CalendarItemID, storage.ErrConflict))
		}
	}

	record.CreatedAt = now
	if _, err := tx.ExecContext(ctx, `
INSERT INTO plenary_actions (id, calendar_item_id, kind, is_final, votes_for, votes_against, votes_abstain, recorded_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CalendarItemID,
		string(record.Kind),
		boolToInt(outcome.Final),
		record.VotesFor,
		record.VotesAgainst,
		record.VotesAbstain,
		record.RecordedBy,
		toMillis(now),
	); err != nil {
		return storage.VoteResult{}, rollbackWith(conflictOr(err, "insert plenary action"))
	}

	if outcome.ChangesPetition {
		if _, err := tx.ExecContext(ctx,
			`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
			string(outcome.PetitionStatus),
			toMillis(now),
			current.ID,
		); err != nil {
			return storage.VoteResult{}, rollbackWith(conflictOr(err, "cascade petition status"))
		}
		current.Status = outcome.PetitionStatus
		current.UpdatedAt = now
	}

	result := storage.VoteResult{Action: record, Petition: current}

	if outcome.AppendsVersion {
		targets, err := listTargets(ctx, tx, current.ID)
		if err != nil {
			return storage.VoteResult{}, rollbackWith(err)
		}
		version, err := appendVersionTx(ctx, tx, versionParams{
			VersionID:  versionID,
			Petition:   current,
			Targets:    targets,
			Stage:      petition.StagePlenaryAmended,
			CreatedBy:  record.RecordedBy,
			RecordedAt: now,
		})
		if err != nil {
			return storage.VoteResult{}, rollbackWith(conflictOr(err, "append amended version"))
		}
		result.Version = &version
	}

	if err := tx.Commit(); err != nil {
		return storage.VoteResult{}, conflictOr(err, "commit plenary vote")
	}
	return result, nil
}

// ListPlenaryActions returns a calendar item's votes in recording order.
func (s *Store) ListPlenaryActions(ctx context.Context, calendarItemID string) ([]storage.PlenaryAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, calendar_item_id, kind, votes_for, votes_against, votes_abstain, recorded_by, created_at
FROM plenary_actions
WHERE calendar_item_id = ?
ORDER BY created_at ASC, id ASC`, calendarItemID)
	if err != nil {
		return nil, fmt.Errorf("list plenary actions: %w", err)
	}
	defer rows.Close()

	var actions []storage.PlenaryAction
	for rows.Next() {
		var (
			record    storage.PlenaryAction
			kind      string
			createdAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.CalendarItemID,
			&kind,
			&record.VotesFor,
			&record.VotesAgainst,
			&record.VotesAbstain,
			&record.RecordedBy,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan plenary action: %w", err)
		}
		parsed, ok := petition.ParsePlenaryActionKind(kind)
		if !ok {
			return nil, fmt.Errorf("plenary action %s has invalid kind %q", record.ID, kind)
		}
		record.Kind = parsed
		record.CreatedAt = fromMillis(createdAt)
		actions = append(actions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plenary actions: %w", err)
	}
	return actions, nil
}
