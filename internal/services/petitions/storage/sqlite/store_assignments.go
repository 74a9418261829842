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

const assignmentColumns = `id, petition_id, committee_id, status, created_at, updated_at`

func scanAssignment(scan func(dest ...any) error) (storage.Assignment, error) {
	var (
		record    storage.Assignment
		status    string
		createdAt int64
		updatedAt int64
	)
	err := scan(
		&record.ID,
		&record.PetitionID,
		&record.CommitteeID,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Assignment{}, err
	}
	parsed, ok := petition.ParseAssignmentStatus(status)
	if !ok {
		return storage.Assignment{}, fmt.Errorf("assignment %s has invalid status %q", record.ID, status)
	}
	record.Status = parsed
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func getAssignment(ctx context.Context, q dbtx, assignmentID string) (storage.Assignment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, assignmentID)
	record, err := scanAssignment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Assignment{}, storage.ErrNotFound
		}
		return storage.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return record, nil
}

// CreateAssignments links a petition to each routed committee. Pairs that
// already exist count as satisfied, so re-routing is idempotent; the return
// value is how many links were new. The petition moves SUBMITTED to
// UNDER_REVIEW in the same transaction, even when the routed set is empty.
func (s *Store) CreateAssignments(ctx context.Context, petitionID string, assignments []storage.Assignment, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "create assignments")
	if err != nil {
		return 0, err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return 0, rollbackWith(err)
	}
	if current.Status.IsTerminal() || current.Status.IsDraft() {
		return 0, rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}

	created := 0
	for _, assignment := range assignments {
		result, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO assignments (id, petition_id, committee_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			assignment.ID,
			petitionID,
			assignment.CommitteeID,
			string(petition.AssignmentPending),
			toMillis(now),
			toMillis(now),
		)
		if err != nil {
			return 0, rollbackWith(conflictOr(err, "insert assignment"))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, rollbackWith(fmt.Errorf("insert assignment rows: %w", err))
		}
		created += int(affected)
	}

	if current.Status == petition.StatusSubmitted {
		if _, err := tx.ExecContext(ctx,
			`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(petition.StatusUnderReview),
			toMillis(now),
			petitionID,
			string(petition.StatusSubmitted),
		); err != nil {
			return 0, rollbackWith(conflictOr(err, "mark under review"))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, conflictOr(err, "commit create assignments")
	}
	return created, nil
}

// CreateAssignment inserts one manual link; a duplicate pair is a conflict.
func (s *Store) CreateAssignment(ctx context.Context, record storage.Assignment, now time.Time) (storage.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return storage.Assignment{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Assignment{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "create assignment")
	if err != nil {
		return storage.Assignment{}, err
	}

	current, err := getPetition(ctx, tx, record.PetitionID)
	if err != nil {
		return storage.Assignment{}, rollbackWith(err)
	}
	if current.Status.IsTerminal() || current.Status.IsDraft() {
		return storage.Assignment{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", record.PetitionID, current.Status, storage.ErrConflict))
	}

	record.Status = petition.AssignmentPending
	record.CreatedAt = now
	record.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
INSERT INTO assignments (id, petition_id, committee_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PetitionID,
		record.CommitteeID,
		string(record.Status),
		toMillis(now),
		toMillis(now),
	); err != nil {
		return storage.Assignment{}, rollbackWith(conflictOr(err, "insert assignment"))
	}

	if current.Status == petition.StatusSubmitted {
		if _, err := tx.ExecContext(ctx,
			`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(petition.StatusUnderReview),
			toMillis(now),
			record.PetitionID,
			string(petition.StatusSubmitted),
		); err != nil {
			return storage.Assignment{}, rollbackWith(conflictOr(err, "mark under review"))
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Assignment{}, conflictOr(err, "commit create assignment")
	}
	return record, nil
}

// GetAssignment fetches one assignment by ID.
func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (storage.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return storage.Assignment{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Assignment{}, fmt.Errorf("storage is not configured")
	}
	return getAssignment(ctx, s.sqlDB, assignmentID)
}

// ListAssignments returns a petition's assignments in creation order.
func (s *Store) ListAssignments(ctx context.Context, petitionID string) ([]storage.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE petition_id = ? ORDER BY created_at ASC, id ASC`,
		petitionID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []storage.Assignment
	for rows.Next() {
		record, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// UpdateAssignmentStatus advances one assignment's review progress. Moving
// to IN_PROGRESS cascades the petition to IN_COMMITTEE.
func (s *Store) UpdateAssignmentStatus(ctx context.Context, assignmentID string, status petition.AssignmentStatus, now time.Time) (storage.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return storage.Assignment{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Assignment{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "update assignment status")
	if err != nil {
		return storage.Assignment{}, err
	}

	record, err := getAssignment(ctx, tx, assignmentID)
	if err != nil {
		return storage.Assignment{}, rollbackWith(err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		toMillis(now),
		assignmentID,
	); err != nil {
		return storage.Assignment{}, rollbackWith(conflictOr(err, "update assignment"))
	}

	if petitionStatus, ok := petition.StatusAfterAssignmentProgress(status); ok {
		if _, err := tx.ExecContext(ctx,
			`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
			string(petitionStatus),
			toMillis(now),
			record.PetitionID,
		); err != nil {
			return storage.Assignment{}, rollbackWith(conflictOr(err, "cascade petition status"))
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Assignment{}, conflictOr(err, "commit update assignment")
	}

	record.Status = status
	record.UpdatedAt = now
	return record, nil
}

// RemoveAssignment deletes a link that carries no final action. Non-final
// records like deferrals do not pin the assignment.
func (s *Store) RemoveAssignment(ctx context.Context, assignmentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "remove assignment")
	if err != nil {
		return err
	}

	if _, err := getAssignment(ctx, tx, assignmentID); err != nil {
		return rollbackWith(err)
	}

	var finalActions int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM committee_actions WHERE assignment_id = ? AND is_final = 1`,
		assignmentID,
	).Scan(&finalActions); err != nil {
		return rollbackWith(fmt.Errorf("count final actions: %w", err))
	}
	if finalActions > 0 {
		return rollbackWith(fmt.Errorf("assignment %s has a final action: %w", assignmentID, storage.ErrConflict))
	}

	// Non-final records leave with the link.
	if _, err := tx.ExecContext(ctx, `DELETE FROM committee_actions WHERE assignment_id = ?`, assignmentID); err != nil {
		return rollbackWith(fmt.Errorf("delete actions: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, assignmentID); err != nil {
		return rollbackWith(fmt.Errorf("delete assignment: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return conflictOr(err, "commit remove assignment")
	}
	return nil
}
