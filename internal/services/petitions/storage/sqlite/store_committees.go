package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// PutCommittee creates or replaces one committee's routing rule set.
func (s *Store) PutCommittee(ctx context.Context, record storage.Committee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	paragraphRanges, err := encodeJSON(record.ParagraphRanges)
	if err != nil {
		return err
	}
	resolutionRanges, err := encodeJSON(record.ResolutionRanges)
	if err != nil {
		return err
	}
	tags, err := encodeJSON(record.Tags)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO committees (id, name, paragraph_ranges, resolution_ranges, tags, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    paragraph_ranges = excluded.paragraph_ranges,
    resolution_ranges = excluded.resolution_ranges,
    tags = excluded.tags,
    updated_at = excluded.updated_at`,
		record.ID,
		record.Name,
		paragraphRanges,
		resolutionRanges,
		tags,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return conflictOr(err, "put committee")
	}
	return nil
}

const committeeColumns = `id, name, paragraph_ranges, resolution_ranges, tags, created_at, updated_at`

func scanCommittee(scan func(dest ...any) error) (storage.Committee, error) {
	var (
		record           storage.Committee
		paragraphRanges  string
		resolutionRanges string
		tags             string
		createdAt        int64
		updatedAt        int64
	)
	err := scan(
		&record.ID,
		&record.Name,
		&paragraphRanges,
		&resolutionRanges,
		&tags,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Committee{}, err
	}
	if err := decodeJSON(paragraphRanges, &record.ParagraphRanges); err != nil {
		return storage.Committee{}, fmt.Errorf("decode paragraph ranges: %w", err)
	}
	if err := decodeJSON(resolutionRanges, &record.ResolutionRanges); err != nil {
		return storage.Committee{}, fmt.Errorf("decode resolution ranges: %w", err)
	}
	if err := decodeJSON(tags, &record.Tags); err != nil {
		return storage.Committee{}, fmt.Errorf("decode tags: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// GetCommittee fetches one committee by ID.
func (s *Store) GetCommittee(ctx context.Context, committeeID string) (storage.Committee, error) {
	if err := ctx.Err(); err != nil {
		return storage.Committee{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Committee{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+committeeColumns+` FROM committees WHERE id = ?`, committeeID)
	record, err := scanCommittee(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Committee{}, storage.ErrNotFound
		}
		return storage.Committee{}, fmt.Errorf("get committee: %w", err)
	}
	return record, nil
}

// ListCommittees returns all committees ordered by creation time. The
// routing matcher depends on this order for deterministic union output.
func (s *Store) ListCommittees(ctx context.Context) ([]storage.Committee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+committeeColumns+` FROM committees ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list committees: %w", err)
	}
	defer rows.Close()

	var committees []storage.Committee
	for rows.Next() {
		record, err := scanCommittee(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan committee: %w", err)
		}
		committees = append(committees, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list committees: %w", err)
	}
	return committees, nil
}
