// Package app implements the petition lifecycle operations behind the API.
package app

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/platform/id"
	"github.com/quorumhq/petitions/internal/platform/requestctx"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
)

// Service coordinates validation, authorization, and storage for the
// petition lifecycle. Status preconditions are enforced twice: here for a
// clear error, and again inside the store transaction for correctness under
// concurrency.
type Service struct {
	store storage.Store
	now   func() time.Time
	newID func() (string, error)
}

// New creates a service backed by the given store.
func New(store storage.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: id.NewID,
	}
}

func (s *Service) nextID() (string, error) {
	value, err := s.newID()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "generate id", err)
	}
	return value, nil
}

// requireIdentity resolves the authenticated caller or fails the request.
func requireIdentity(ctx context.Context) (requestctx.Identity, error) {
	identity, ok := requestctx.IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		return requestctx.Identity{}, apperrors.New(apperrors.CodeIdentityRequired, "caller identity is required")
	}
	return identity, nil
}

// requireStaff resolves the caller and ensures staff-tier privileges.
func requireStaff(ctx context.Context) (requestctx.Identity, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return requestctx.Identity{}, err
	}
	if !identity.IsStaff() {
		return requestctx.Identity{}, apperrors.New(apperrors.CodePermissionDenied, "staff privileges are required")
	}
	return identity, nil
}

// requireAdmin resolves the caller and ensures administrator privileges.
func requireAdmin(ctx context.Context) (requestctx.Identity, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return requestctx.Identity{}, err
	}
	if !identity.IsAdmin() {
		return requestctx.Identity{}, apperrors.New(apperrors.CodePermissionDenied, "administrator privileges are required")
	}
	return identity, nil
}

// canManagePetition reports whether the caller may mutate the petition:
// its submitter, or staff.
func canManagePetition(identity requestctx.Identity, record storage.Petition) bool {
	return identity.IsStaff() || identity.UserID == record.SubmitterID
}

// storeError maps a storage failure onto the domain error taxonomy.
// notFound and conflict carry the operation-specific codes; anything else is
// an opaque storage failure.
func storeError(err error, notFound, conflict *apperrors.Error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if notFound != nil {
			notFound.Cause = err
			return notFound
		}
	case errors.Is(err, storage.ErrConflict):
		if conflict != nil {
			conflict.Cause = err
			return conflict
		}
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "storage operation failed", err)
}

func petitionNotFound(petitionID string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePetitionNotFound, "petition not found",
		map[string]string{"petition_id": petitionID})
}

func writeConflict(message string) *apperrors.Error {
	return apperrors.New(apperrors.CodeWriteConflict, message)
}
