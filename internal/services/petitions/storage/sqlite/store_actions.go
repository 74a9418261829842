package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// RecordCommitteeAction writes one committee disposition and applies its
// full lifecycle effect in a single transaction: the action row, the
// assignment status, the petition status cascade, and, for amend-and-approve,
// a committee-amended snapshot. The final-slot precondition is re-checked
// under the tx write lock; the partial unique index is the backstop.
func (s *Store) RecordCommitteeAction(ctx context.Context, record storage.CommitteeAction, versionID string, now time.Time) (storage.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActionResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ActionResult{}, fmt.Errorf("storage is not configured")
	}

	outcome, ok := petition.OutcomeOfCommitteeAction(record.Kind)
	if !ok {
		return storage.ActionResult{}, fmt.Errorf("unknown committee action kind %q", record.Kind)
	}

	tx, rollbackWith, err := s.begin(ctx, "record committee action")
	if err != nil {
		return storage.ActionResult{}, err
	}

	assignment, err := getAssignment(ctx, tx, record.AssignmentID)
	if err != nil {
		return storage.ActionResult{}, rollbackWith(err)
	}
	current, err := getPetition(ctx, tx, assignment.PetitionID)
	if err != nil {
		return storage.ActionResult{}, rollbackWith(err)
	}
	if current.Status.IsTerminal() {
		return storage.ActionResult{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", current.ID, current.Status, storage.ErrConflict))
	}

	if outcome.Final {
		var finals int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM committee_actions WHERE assignment_id = ? AND is_final = 1`,
			record.AssignmentID,
		).Scan(&finals); err != nil {
			return storage.ActionResult{}, rollbackWith(fmt.Errorf("count final actions: %w", err))
		}
		if finals > 0 {
			return storage.ActionResult{}, rollbackWith(fmt.Errorf("assignment %s already has a final action: %w", record.AssignmentID, storage.ErrConflict))
		}
	}

	record.CreatedAt = now
	if _, err := tx.ExecContext(ctx, `
INSERT INTO committee_actions (id, assignment_id, kind, is_final, votes_for, votes_against, votes_abstain, notes, recorded_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AssignmentID,
		string(record.Kind),
		boolToInt(outcome.Final),
		record.VotesFor,
		record.VotesAgainst,
		record.VotesAbstain,
		record.Notes,
		record.RecordedBy,
		toMillis(now),
	); err != nil {
		return storage.ActionResult{}, rollbackWith(conflictOr(err, "insert committee action"))
	}

	if outcome.AssignmentStatus != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE assignments SET status = ?, updated_at = ? WHERE id = ?`,
			string(outcome.AssignmentStatus),
			toMillis(now),
			record.AssignmentID,
		); err != nil {
			return storage.ActionResult{}, rollbackWith(conflictOr(err, "update assignment status"))
		}
		assignment.Status = outcome.AssignmentStatus
		assignment.UpdatedAt = now
	}

	if outcome.ChangesPetition {
		if _, err := tx.ExecContext(ctx,
			`UPDATE petitions SET status = ?, updated_at = ? WHERE id = ?`,
			string(outcome.PetitionStatus),
			toMillis(now),
			current.ID,
		); err != nil {
			return storage.ActionResult{}, rollbackWith(conflictOr(err, "cascade petition status"))
		}
		current.Status = outcome.PetitionStatus
		current.UpdatedAt = now
	}

	result := storage.ActionResult{Action: record, Assignment: assignment, Petition: current}

	if outcome.AppendsVersion {
		targets, err := listTargets(ctx, tx, current.ID)
		if err != nil {
			return storage.ActionResult{}, rollbackWith(err)
		}
		version, err := appendVersionTx(ctx, tx, versionParams{
			VersionID:  versionID,
			Petition:   current,
			Targets:    targets,
			Stage:      petition.StageCommitteeAmended,
			CreatedBy:  record.RecordedBy,
			RecordedAt: now,
		})
		if err != nil {
			return storage.ActionResult{}, rollbackWith(conflictOr(err, "append amended version"))
		}
		result.Version = &version
	}

	if err := tx.Commit(); err != nil {
		return storage.ActionResult{}, conflictOr(err, "commit committee action")
	}
	return result, nil
}

// ListCommitteeActions returns an assignment's actions in recording order.
func (s *Store) ListCommitteeActions(ctx context.Context, assignmentID string) ([]storage.CommitteeAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, assignment_id, kind, votes_for, votes_against, votes_abstain, notes, recorded_by, created_at
FROM committee_actions
WHERE assignment_id = ?
ORDER BY created_at ASC, id ASC`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list committee actions: %w", err)
	}
	defer rows.Close()

	var actions []storage.CommitteeAction
	for rows.Next() {
		var (
			record    storage.CommitteeAction
			kind      string
			createdAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.AssignmentID,
			&kind,
			&record.VotesFor,
			&record.VotesAgainst,
			&record.VotesAbstain,
			&record.Notes,
			&record.RecordedBy,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan committee action: %w", err)
		}
		parsed, ok := petition.ParseCommitteeActionKind(kind)
		if !ok {
			return nil, fmt.Errorf("committee action %s has invalid kind %q", record.ID, kind)
		}
		record.Kind = parsed
		record.CreatedAt = fromMillis(createdAt)
		actions = append(actions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list committee actions: %w", err)
	}
	return actions, nil
}

// RecordCommitteeAmendment rewrites target proposed text keyed by target ID
// and appends a committee-amended snapshot, without consuming the
// assignment's final-action slot.
func (s *Store) RecordCommitteeAmendment(ctx context.Context, petitionID string, versionID string, amendedBy string, proposedText map[string]string, delta string, now time.Time) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return storage.Version{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Version{}, fmt.Errorf("storage is not configured")
	}

	tx, rollbackWith, err := s.begin(ctx, "record committee amendment")
	if err != nil {
		return storage.Version{}, err
	}

	current, err := getPetition(ctx, tx, petitionID)
	if err != nil {
		return storage.Version{}, rollbackWith(err)
	}
	if current.Status.IsTerminal() || current.Status.IsDraft() {
		return storage.Version{}, rollbackWith(fmt.Errorf("petition %s is %s: %w", petitionID, current.Status, storage.ErrConflict))
	}

	for targetID, text := range proposedText {
		result, err := tx.ExecContext(ctx,
			`UPDATE petition_targets SET proposed_text = ? WHERE id = ? AND petition_id = ?`,
			text, targetID, petitionID)
		if err != nil {
			return storage.Version{}, rollbackWith(fmt.Errorf("amend target: %w", err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return storage.Version{}, rollbackWith(fmt.Errorf("amend target rows: %w", err))
		}
		if affected != 1 {
			return storage.Version{}, rollbackWith(fmt.Errorf("target %s: %w", targetID, storage.ErrNotFound))
		}
	}

	targets, err := listTargets(ctx, tx, petitionID)
	if err != nil {
		return storage.Version{}, rollbackWith(err)
	}
	version, err := appendVersionTx(ctx, tx, versionParams{
		VersionID:  versionID,
		Petition:   current,
		Targets:    targets,
		Stage:      petition.StageCommitteeAmended,
		Delta:      delta,
		CreatedBy:  amendedBy,
		RecordedAt: now,
	})
	if err != nil {
		return storage.Version{}, rollbackWith(conflictOr(err, "append amended version"))
	}

	if err := tx.Commit(); err != nil {
		return storage.Version{}, conflictOr(err, "commit committee amendment")
	}
	return version, nil
}
