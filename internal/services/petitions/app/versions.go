package app

import (
	"context"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/redline"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// GetVersion fetches one immutable snapshot.
func (s *Service) GetVersion(ctx context.Context, versionID string) (storage.Version, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return storage.Version{}, err
	}
	record, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return storage.Version{}, storeError(err, versionNotFound(versionID), nil)
	}
	return record, nil
}

// ListVersions returns a petition's full version ledger.
func (s *Service) ListVersions(ctx context.Context, petitionID string) ([]storage.Version, error) {
	if _, err := requireIdentity(ctx); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, petitionID)
	if err != nil {
		return nil, storeError(err, petitionNotFound(petitionID), nil)
	}
	return versions, nil
}

// GetRedline renders one version's targets against the document text each
// target captured.
func (s *Service) GetRedline(ctx context.Context, versionID string) ([]redline.TargetDiff, error) {
	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return redline.Render(version.Snapshot.TargetTexts()), nil
}

// CompareVersions diffs two of a petition's snapshots by version number.
// Targets present only in the newer version diff against an empty baseline.
// Comparing a version to itself yields equal-only segments.
func (s *Service) CompareVersions(ctx context.Context, petitionID string, olderNum, newerNum int) ([]redline.TargetDiff, error) {
	versions, err := s.ListVersions(ctx, petitionID)
	if err != nil {
		return nil, err
	}
	var older, newer *storage.Version
	for i := range versions {
		if versions[i].VersionNum == olderNum {
			older = &versions[i]
		}
		if versions[i].VersionNum == newerNum {
			newer = &versions[i]
		}
	}
	if older == nil || newer == nil {
		return nil, apperrors.WithMetadata(apperrors.CodeVersionNotFound, "requested versions are not in the ledger",
			map[string]string{"petition_id": petitionID})
	}
	return redline.Compare(older.Snapshot.TargetTexts(), newer.Snapshot.TargetTexts()), nil
}

func versionNotFound(versionID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeVersionNotFound, "version not found",
		map[string]string{"version_id": versionID})
}
