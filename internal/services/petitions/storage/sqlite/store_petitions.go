package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// dbtx abstracts *sql.DB and *sql.Tx so read helpers work in both scopes.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const petitionColumns = `id, display_number, title, summary, rationale, action_type, target_document,
 status, submitter_id, conference_id, conference_year, created_at, updated_at`

func scanPetition(scan func(dest ...any) error) (storage.Petition, error) {
	var (
		record        storage.Petition
		displayNumber sql.NullString
		actionType    string
		status        string
		createdAt     int64
		updatedAt     int64
	)
	err := scan(
		&record.ID,
		&displayNumber,
		&record.Title,
		&record.Summary,
		&record.Rationale,
		&actionType,
		&record.TargetDocument,
		&status,
		&record.SubmitterID,
		&record.ConferenceID,
		&record.ConferenceYear,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Petition{}, err
	}
	record.DisplayNumber = fromNullString(displayNumber)
	record.ActionType = petition.ActionType(actionType)
	parsed, ok := petition.ParseStatus(status)
	if !ok {
		return storage.Petition{}, fmt.Errorf("petition %s has invalid status %q", record.ID, status)
	}
	record.Status = parsed
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// getPetition re-reads one petition in the caller's scope; inside a
// transaction this is the precondition read the guards depend on.
func getPetition(ctx context.Context, q dbtx, petitionID string) (storage.Petition, error) {
	row := q.QueryRowContext(ctx, `SELECT `+petitionColumns+` FROM petitions WHERE id = ?`, petitionID)
	record, err := scanPetition(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Petition{}, storage.ErrNotFound
		}
		return storage.Petition{}, fmt.Errorf("get petition: %w", err)
	}
	return record, nil
}

func insertTarget(ctx context.Context, q dbtx, target storage.Target) error {
	tags, err := encodeJSON(target.CategoryTags)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO petition_targets (id, petition_id, paragraph_number, resolution_number, change_type, current_text, proposed_text, category_tags, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		target.ID,
		target.PetitionID,
		toNullInt(target.ParagraphNumber),
		toNullInt(target.ResolutionNumber),
		string(target.ChangeType),
		target.CurrentText,
		target.ProposedText,
		tags,
		toMillis(target.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func listTargets(ctx context.Context, q dbtx, petitionID string) ([]storage.Target, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, petition_id, paragraph_number, resolution_number, change_type, current_text, proposed_text, category_tags, created_at
FROM petition_targets
WHERE petition_id = ?
ORDER BY created_at ASC, id ASC`, petitionID)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []storage.Target
	for rows.Next() {
		var (
			target     storage.Target
			paragraph  sql.NullInt64
			resolution sql.NullInt64
			changeType string
			tags       string
			createdAt  int64
		)
		if err := rows.Scan(
			&target.ID,
			&target.PetitionID,
			&paragraph,
			&resolution,
			&changeType,
			&target.CurrentText,
			&target.ProposedText,
			&tags,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		target.ParagraphNumber = fromNullInt(paragraph)
		target.ResolutionNumber = fromNullInt(resolution)
		target.ChangeType = petition.ChangeType(changeType)
		if err := decodeJSON(tags, &target.CategoryTags); err != nil {
			return nil, fmt.Errorf("decode target tags: %w", err)
		}
		target.CreatedAt = fromMillis(createdAt)
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// CreatePetition persists one draft petition with its initial targets.
func (s *Store) CreatePetition(ctx context.Context, record storage.Petition, targets []storage.Target) (storage.Petition, error) {
	if err := ctx.Err(); err != nil {
		return storage.Petition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Petition{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return storage.Petition{}, fmt.Errorf("petition id is required")
	}
	if strings.TrimSpace(record.SubmitterID) == "" {
		return storage.Petition{}, fmt.Errorf("submitter id is required")
	}
	record.Status = petition.StatusDraft
	record.DisplayNumber = ""

	tx, rollbackWith, err := s.begin(ctx, "create petition")
	if err != nil {
		return storage.Petition{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO petitions (id, display_number, title, summary, rationale, action_type, target_document, status, submitter_id, conference_id, conference_year, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		toNullString(record.DisplayNumber),
		record.Title,
		record.Summary,
		record.Rationale,
		string(record.ActionType),
		record.TargetDocument,
		string(record.Status),
		record.SubmitterID,
		record.ConferenceID,
		record.ConferenceYear,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	); err != nil {
		return storage.Petition{}, rollbackWith(conflictOr(err, "insert petition"))
	}
	for _, target := range targets {
		if err := insertTarget(ctx, tx, target); err != nil {
			return storage.Petition{}, rollbackWith(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.Petition{}, conflictOr(err, "commit create petition")
	}
	return record, nil
}

// GetPetition fetches one petition by ID.
func (s *Store) GetPetition(ctx context.Context, petitionID string) (storage.Petition, error) {
	if err := ctx.Err(); err != nil {
		return storage.Petition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Petition{}, fmt.Errorf("storage is not configured")
	}
	return getPetition(ctx, s.sqlDB, petitionID)
}

// ListTargets returns a petition's targets in creation order.
func (s *Store) ListTargets(ctx context.Context, petitionID string) ([]storage.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return listTargets(ctx, s.sqlDB, petitionID)
}

// UpdateDraft rewrites a draft petition's content fields. The Draft gate is
// re-checked inside the transaction so an edit racing a concurrent submit
// fails cleanly instead of applying to a submitted petition.
func (s *Store) UpdateDraft(ctx context.Context, record storage.Petition) (storage.Petition, error) {
	if err := ctx.Err(); err != nil {
		return storage.Petition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Petition{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "update draft")
	if err != nil {
		return storage.Petition{}, err
	}

	current, err := getPetition(ctx, tx, record.ID)
	if err != nil {
		return storage.Petition{}, rollbackWith(err)
	}
	if !current.Status.IsDraft() {
		return storage.Petition{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", record.ID, current.Status, storage.ErrConflict))
	}

	result, err := tx.ExecContext(ctx, `
UPDATE petitions
SET title = ?, summary = ?, rationale = ?, action_type = ?, target_document = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		record.Title,
		record.Summary,
		record.Rationale,
		string(record.ActionType),
		record.TargetDocument,
		toMillis(record.UpdatedAt),
		record.ID,
		string(petition.StatusDraft),
	)
	if err != nil {
		return storage.Petition{}, rollbackWith(conflictOr(err, "update draft"))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.Petition{}, rollbackWith(fmt.Errorf("update draft rows: %w", err))
	}
	if affected != 1 {
		return storage.Petition{}, rollbackWith(fmt.Errorf("petition %s left draft: %w", record.ID, storage.ErrConflict))
	}
	if err := tx.Commit(); err != nil {
		return storage.Petition{}, conflictOr(err, "commit update draft")
	}

	current.Title = record.Title
	current.Summary = record.Summary
	current.Rationale = record.Rationale
	current.ActionType = record.ActionType
	current.TargetDocument = record.TargetDocument
	current.UpdatedAt = record.UpdatedAt
	return current, nil
}

// ReplaceTargets swaps a draft petition's full target set wholesale.
func (s *Store) ReplaceTargets(ctx context.Context, petitionID string, targets []storage.Target) ([]storage.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "replace targets")
	if err != nil {
		return nil, err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return nil, rollbackWith(err)
	}
	if !current.Status.IsDraft() {
		return nil, rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM petition_targets WHERE petition_id = ?`, petitionID); err != nil {
		return nil, rollbackWith(fmt.Errorf("delete targets: %w", err))
	}
	for _, target := range targets {
		target.PetitionID = petitionID
		if err := insertTarget(ctx, tx, target); err != nil {
			return nil, rollbackWith(err)
		}
	}
	replaced, err := listTargets(ctx, tx, petitionID)
	if err != nil {
		return nil, rollbackWith(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, conflictOr(err, "commit replace targets")
	}
	return replaced, nil
}

// DeleteDraft removes a petition still in Draft. Targets and versions
// cascade with it; submitted petitions are never deleted.
func (s *Store) DeleteDraft(ctx context.Context, petitionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "delete draft")
	if err != nil {
		return err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return rollbackWith(err)
	}
	if !current.Status.IsDraft() {
		return rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM petitions WHERE id = ? AND status = ?`, petitionID, string(petition.StatusDraft)); err != nil {
		return rollbackWith(fmt.Errorf("delete petition: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return conflictOr(err, "commit delete draft")
	}
	return nil
}

// nextDisplaySeq reserves the next display-number ordinal for a conference
// year inside the caller's transaction. The UPDATE takes the write lock, so
// concurrent submits serialize on this row; a loser that cannot wait out the
// busy timeout surfaces as a retryable conflict, never as a duplicate.
func nextDisplaySeq(ctx context.Context, tx *sql.Tx, conferenceYear int) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO display_number_seq (conference_year, next_seq) VALUES (?, 1)`,
		conferenceYear,
	); err != nil {
		return 0, fmt.Errorf("init display seq: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_seq FROM display_number_seq WHERE conference_year = ?`,
		conferenceYear,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get display seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE display_number_seq SET next_seq = next_seq + 1 WHERE conference_year = ?`,
		conferenceYear,
	); err != nil {
		return 0, fmt.Errorf("increment display seq: %w", err)
	}
	return seq, nil
}

// SubmitPetition performs the submit transaction: re-check Draft, re-check
// the target set is non-empty, assign the display number, flip status to
// SUBMITTED, and append version 1 with an ORIGINAL snapshot.
func (s *Store) SubmitPetition(ctx context.Context, petitionID string, versionID string, submittedBy string, now time.Time) (storage.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.SubmitResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SubmitResult{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "submit petition")
	if err != nil {
		return storage.SubmitResult{}, err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(err)
	}
	if !current.Status.IsDraft() {
		return storage.SubmitResult{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}
	targets, err := listTargets(ctx, tx, petitionID)
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(err)
	}
	// A concurrent target replacement may have emptied the set since the
	// caller validated; the submit must fail cleanly, not snapshot nothing.
	if len(targets) == 0 {
		return storage.SubmitResult{}, rollbackWith(fmt.Errorf("petition %s has no targets: %w", petitionID, storage.ErrConflict))
	}

	seq, err := nextDisplaySeq(ctx, tx, current.ConferenceYear)
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(conflictOr(err, "reserve display number"))
	}
	displayNumber := fmt.Sprintf("P-%d-%04d", current.ConferenceYear, seq)

	result, err := tx.ExecContext(ctx, `
UPDATE petitions SET display_number = ?, status = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		displayNumber,
		string(petition.StatusSubmitted),
		toMillis(now),
		petitionID,
		string(petition.StatusDraft),
	)
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(conflictOr(err, "mark submitted"))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(fmt.Errorf("mark submitted rows: %w", err))
	}
	if affected != 1 {
		return storage.SubmitResult{}, rollbackWith(fmt.Errorf("petition %s left draft: %w", petitionID, storage.ErrConflict))
	}

	current.DisplayNumber = displayNumber
	current.Status = petition.StatusSubmitted
	current.UpdatedAt = now

	version, err := appendVersionTx(ctx, tx, versionParams{
		VersionID:  versionID,
		Petition:   current,
		Targets:    targets,
		Stage:      petition.StageOriginal,
		CreatedBy:  submittedBy,
		RecordedAt: now,
	})
	if err != nil {
		return storage.SubmitResult{}, rollbackWith(conflictOr(err, "append original version"))
	}

	if err := tx.Commit(); err != nil {
		return storage.SubmitResult{}, conflictOr(err, "commit submit")
	}
	return storage.SubmitResult{Petition: current, Version: version}, nil
}

// WithdrawPetition moves a non-terminal petition to WITHDRAWN.
func (s *Store) WithdrawPetition(ctx context.Context, petitionID string, now time.Time) (storage.Petition, error) {
	if err := ctx.Err(); err != nil {
		return storage.Petition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Petition{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "withdraw petition")
	if err != nil {
		return storage.Petition{}, err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return storage.Petition{}, rollbackWith(err)
	}
	if current.Status.IsTerminal() {
		return storage.Petition{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
		string(petition.StatusWithdrawn),
		toMillis(now),
		petitionID,
	); err != nil {
		return storage.Petition{}, rollbackWith(conflictOr(err, "withdraw petition"))
	}
	if err := tx.Commit(); err != nil {
		return storage.Petition{}, conflictOr(err, "commit withdraw")
	}

	current.Status = petition.StatusWithdrawn
	current.UpdatedAt = now
	return current, nil
}
