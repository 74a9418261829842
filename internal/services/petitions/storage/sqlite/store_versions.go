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

type versionParams struct {
	VersionID  string
	Petition   storage.Petition
	Targets    []storage.Target
	Stage      petition.VersionStage
	Delta      string
	CreatedBy  string
	RecordedAt time.Time
}

// appendVersionTx numbers and inserts one snapshot inside the caller's
// transaction. The number is MAX(version_num)+1 read under the tx write
// lock; the UNIQUE (petition_id, version_num) index is the backstop.
func appendVersionTx(ctx context.Context, tx *sql.Tx, params versionParams) (storage.Version, error) {
	var maxNum sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version_num) FROM petition_versions WHERE petition_id = ?`,
		params.Petition.ID,
	).Scan(&maxNum); err != nil {
		return storage.Version{}, fmt.Errorf("next version number: %w", err)
	}
	versionNum := int(maxNum.Int64) + 1

	snapshot := storage.NewSnapshot(params.Petition, params.Targets)
	encoded, err := storage.EncodeSnapshot(snapshot)
	if err != nil {
		return storage.Version{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO petition_versions (id, petition_id, version_num, stage, snapshot_json, delta, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.VersionID,
		params.Petition.ID,
		versionNum,
		string(params.Stage),
		encoded,
		params.Delta,
		params.CreatedBy,
		toMillis(params.RecordedAt),
	); err != nil {
		return storage.Version{}, fmt.Errorf("insert version: %w", err)
	}

	return storage.Version{
		ID:         params.VersionID,
		PetitionID: params.Petition.ID,
		VersionNum: versionNum,
		Stage:      params.Stage,
		Snapshot:   snapshot,
		Delta:      params.Delta,
		CreatedBy:  params.CreatedBy,
		CreatedAt:  params.RecordedAt,
	}, nil
}

const versionColumns = `id, petition_id, version_num, stage, snapshot_json, delta, created_by, created_at`

func scanVersion(scan func(dest ...any) error) (storage.Version, error) {
	var (
		record    storage.Version
		stage     string
		snapshot  string
		createdAt int64
	)
	err := scan(
		&record.ID,
		&record.PetitionID,
		&record.VersionNum,
		&stage,
		&snapshot,
		&record.Delta,
		&record.CreatedBy,
		&createdAt,
	)
	if err != nil {
		return storage.Version{}, err
	}
	parsed, ok := petition.ParseVersionStage(stage)
	if !ok {
		return storage.Version{}, fmt.Errorf("version %s has invalid stage %q", record.ID, stage)
	}
	record.Stage = parsed
	decoded, err := storage.DecodeSnapshot(snapshot)
	if err != nil {
		return storage.Version{}, fmt.Errorf("version %s: %w", record.ID, err)
	}
	record.Snapshot = decoded
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// GetVersion fetches one version by ID.
func (s *Store) GetVersion(ctx context.Context, versionID string) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return storage.Version{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Version{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM petition_versions WHERE id = ?`, versionID)
	record, err := scanVersion(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Version{}, storage.ErrNotFound
		}
		return storage.Version{}, fmt.Errorf("get version: %w", err)
	}
	return record, nil
}

// ListVersions returns a petition's versions ordered by version number.
func (s *Store) ListVersions(ctx context.Context, petitionID string) ([]storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM petition_versions WHERE petition_id = ? ORDER BY version_num ASC`,
		petitionID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []storage.Version
	for rows.Next() {
		record, err := scanVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}
