package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/platform/requestctx"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/redline"
	"github.com/quorumhq/petitions/internal/services/petitions/domain/routing"
	"github.com/quorumhq/petitions/internal/services/petitions/storage/sqlite"
)

var serviceClock = time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "petitions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	service := New(store)
	service.now = func() time.Time { return serviceClock }
	seq := 0
	service.newID = func() (string, error) {
		seq++
		return fmt.Sprintf("id-%04d", seq), nil
	}
	return service
}

func delegateCtx(userID string, committees ...string) context.Context {
	return requestctx.WithIdentity(context.Background(), requestctx.Identity{
		UserID:       userID,
		Role:         requestctx.RoleDelegate,
		CommitteeIDs: committees,
	})
}

func staffCtx() context.Context {
	return requestctx.WithIdentity(context.Background(), requestctx.Identity{
		UserID: "user-staff",
		Role:   requestctx.RoleStaff,
	})
}

func adminCtx() context.Context {
	return requestctx.WithIdentity(context.Background(), requestctx.Identity{
		UserID: "user-admin",
		Role:   requestctx.RoleAdmin,
	})
}

func intRef(v int) *int { return &v }

func draftInput() DraftInput {
	return DraftInput{
		Title:          "Amend membership provisions",
		Summary:        "Updates paragraph 140 wording",
		ActionType:     "amend",
		TargetDocument: "book-of-order",
		ConferenceYear: 2026,
		Targets: []TargetInput{{
			ParagraphNumber: intRef(140),
			ChangeType:      "replace_text",
			CurrentText:     "members shall be received",
			ProposedText:    "members are received",
			CategoryTags:    []string{"membership"},
		}},
	}
}

func createSubmitted(t *testing.T, service *Service, ctx context.Context) PetitionDetail {
	t.Helper()
	detail, err := service.CreateDraft(ctx, draftInput())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := service.SubmitPetition(ctx, detail.Petition.ID); err != nil {
		t.Fatalf("submit petition: %v", err)
	}
	return detail
}

func TestCreateDraftRequiresIdentity(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	_, err := service.CreateDraft(context.Background(), draftInput())
	if !errors.Is(err, apperrors.New(apperrors.CodeIdentityRequired, "")) {
		t.Fatalf("expected identity error, got %v", err)
	}
}

func TestCreateDraftValidatesInput(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	input := draftInput()
	input.Title = "   "
	if _, err := service.CreateDraft(ctx, input); !errors.Is(err, apperrors.New(apperrors.CodePetitionTitleEmpty, "")) {
		t.Fatalf("expected title error, got %v", err)
	}

	input = draftInput()
	input.ActionType = "obliterate"
	if _, err := service.CreateDraft(ctx, input); !errors.Is(err, apperrors.New(apperrors.CodePetitionInvalidActionType, "")) {
		t.Fatalf("expected action type error, got %v", err)
	}

	input = draftInput()
	input.Targets[0].ChangeType = "scribble"
	if _, err := service.CreateDraft(ctx, input); !errors.Is(err, apperrors.New(apperrors.CodeTargetInvalidChangeType, "")) {
		t.Fatalf("expected change type error, got %v", err)
	}
}

func TestSubmitRequiresTargets(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	input := draftInput()
	input.Targets = nil
	detail, err := service.CreateDraft(ctx, input)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	_, err = service.SubmitPetition(ctx, detail.Petition.ID)
	if !errors.Is(err, apperrors.New(apperrors.CodePetitionTargetsEmpty, "")) {
		t.Fatalf("expected targets error, got %v", err)
	}
}

func TestOnlySubmitterOrStaffMayModify(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	detail, err := service.CreateDraft(delegateCtx("user-1"), draftInput())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	_, err = service.UpdateDraft(delegateCtx("user-2"), detail.Petition.ID, draftInput())
	if !errors.Is(err, apperrors.New(apperrors.CodePermissionDenied, "")) {
		t.Fatalf("expected permission error, got %v", err)
	}

	if _, err := service.UpdateDraft(staffCtx(), detail.Petition.ID, draftInput()); err != nil {
		t.Fatalf("staff update: %v", err)
	}
}

func TestSubmitAssignsDisplayNumberAndVersion(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	detail, err := service.CreateDraft(ctx, draftInput())
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	result, err := service.SubmitPetition(ctx, detail.Petition.ID)
	if err != nil {
		t.Fatalf("submit petition: %v", err)
	}
	if result.Petition.DisplayNumber != "P-2026-0001" {
		t.Fatalf("unexpected display number %q", result.Petition.DisplayNumber)
	}
	if result.Version.VersionNum != 1 || result.Version.Stage != petition.StageOriginal {
		t.Fatalf("unexpected version %d/%s", result.Version.VersionNum, result.Version.Stage)
	}

	// A second submit must fail on the draft gate.
	_, err = service.SubmitPetition(ctx, detail.Petition.ID)
	if !errors.Is(err, apperrors.New(apperrors.CodePetitionNotDraft, "")) {
		t.Fatalf("expected not-draft error, got %v", err)
	}
}

func TestAutoRouteMatchesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:   "committee-membership",
		Name: "Committee on Membership",
		Tags: []string{"membership"},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}

	detail := createSubmitted(t, service, delegateCtx("user-1"))

	// Delegates cannot trigger routing.
	_, err := service.AutoRoute(delegateCtx("user-1"), detail.Petition.ID)
	if !errors.Is(err, apperrors.New(apperrors.CodePermissionDenied, "")) {
		t.Fatalf("expected permission error, got %v", err)
	}

	// The paragraph range matches, so the tag rule set is never consulted.
	result, err := service.AutoRoute(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("auto route: %v", err)
	}
	if len(result.CommitteeIDs) != 1 || result.CommitteeIDs[0] != "committee-order" {
		t.Fatalf("unexpected routing %+v", result.CommitteeIDs)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 created, got %d", result.Created)
	}

	again, err := service.AutoRoute(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("re-route: %v", err)
	}
	if again.Created != 0 {
		t.Fatalf("expected idempotent re-route, got %d created", again.Created)
	}

	updated, err := service.GetPetition(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("get petition: %v", err)
	}
	if updated.Petition.Status != petition.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW, got %s", updated.Petition.Status)
	}
}

func TestAutoRouteZeroMatchesStillAdvancesStatus(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 900, High: 999}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}

	input := draftInput()
	input.Targets[0].CategoryTags = nil
	detail, err := service.CreateDraft(delegateCtx("user-1"), input)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := service.SubmitPetition(delegateCtx("user-1"), detail.Petition.ID); err != nil {
		t.Fatalf("submit petition: %v", err)
	}

	result, err := service.AutoRoute(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("auto route: %v", err)
	}
	if len(result.CommitteeIDs) != 0 || result.Created != 0 {
		t.Fatalf("expected no matches, got %+v", result)
	}

	updated, err := service.GetPetition(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("get petition: %v", err)
	}
	if updated.Petition.Status != petition.StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW after zero-match routing, got %s", updated.Petition.Status)
	}
}

func TestCommitteeActionRequiresMembership(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	detail := createSubmitted(t, service, delegateCtx("user-1"))
	if _, err := service.AutoRoute(staffCtx(), detail.Petition.ID); err != nil {
		t.Fatalf("auto route: %v", err)
	}
	assignments, err := service.ListAssignments(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}

	input := ActionInput{AssignmentID: assignments[0].ID, Kind: "approve", VotesFor: 9}
	_, err = service.RecordCommitteeAction(delegateCtx("user-outsider"), input)
	if !errors.Is(err, apperrors.New(apperrors.CodeCommitteeMismatch, "")) {
		t.Fatalf("expected membership error, got %v", err)
	}

	result, err := service.RecordCommitteeAction(delegateCtx("user-member", "committee-order"), input)
	if err != nil {
		t.Fatalf("record action: %v", err)
	}
	if result.Petition.Status != petition.StatusApprovedByCommittee {
		t.Fatalf("expected APPROVED_BY_COMMITTEE, got %s", result.Petition.Status)
	}

	// The final slot is consumed.
	_, err = service.RecordCommitteeAction(staffCtx(), ActionInput{AssignmentID: assignments[0].ID, Kind: "reject"})
	if !errors.Is(err, apperrors.New(apperrors.CodeFinalActionExists, "")) {
		t.Fatalf("expected final action error, got %v", err)
	}
}

func TestRemoveAssignmentRequiresAdmin(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	detail := createSubmitted(t, service, delegateCtx("user-1"))
	if _, err := service.AutoRoute(staffCtx(), detail.Petition.ID); err != nil {
		t.Fatalf("auto route: %v", err)
	}
	assignments, err := service.ListAssignments(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}

	if err := service.RemoveAssignment(staffCtx(), assignments[0].ID); !errors.Is(err, apperrors.New(apperrors.CodePermissionDenied, "")) {
		t.Fatalf("expected permission error for staff, got %v", err)
	}
	if err := service.RemoveAssignment(adminCtx(), assignments[0].ID); err != nil {
		t.Fatalf("admin remove assignment: %v", err)
	}
	remaining, err := service.ListAssignments(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no assignments, got %+v", remaining)
	}
}

func TestAmendPetitionAppendsVersionWithDelta(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	detail := createSubmitted(t, service, delegateCtx("user-1"))
	if _, err := service.AutoRoute(staffCtx(), detail.Petition.ID); err != nil {
		t.Fatalf("auto route: %v", err)
	}

	targetID := detail.Targets[0].ID
	version, err := service.AmendPetition(delegateCtx("user-member", "committee-order"), AmendmentInput{
		PetitionID:   detail.Petition.ID,
		ProposedText: map[string]string{targetID: "members are welcomed and received"},
	})
	if err != nil {
		t.Fatalf("amend petition: %v", err)
	}
	if version.VersionNum != 2 || version.Stage != petition.StageCommitteeAmended {
		t.Fatalf("unexpected version %d/%s", version.VersionNum, version.Stage)
	}
	if !strings.Contains(version.Delta, "{+") {
		t.Fatalf("expected wdiff markers in delta, got %q", version.Delta)
	}

	_, err = service.AmendPetition(delegateCtx("user-outsider"), AmendmentInput{
		PetitionID:   detail.Petition.ID,
		ProposedText: map[string]string{targetID: "anything"},
	})
	if !errors.Is(err, apperrors.New(apperrors.CodeCommitteeMismatch, "")) {
		t.Fatalf("expected membership error, got %v", err)
	}
}

func approvedPetition(t *testing.T, service *Service) PetitionDetail {
	t.Helper()
	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	detail := createSubmitted(t, service, delegateCtx("user-1"))
	if _, err := service.AutoRoute(staffCtx(), detail.Petition.ID); err != nil {
		t.Fatalf("auto route: %v", err)
	}
	assignments, err := service.ListAssignments(staffCtx(), detail.Petition.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if _, err := service.RecordCommitteeAction(staffCtx(), ActionInput{
		AssignmentID: assignments[0].ID,
		Kind:         "approve",
	}); err != nil {
		t.Fatalf("record approve: %v", err)
	}
	return detail
}

func TestCalendarAndPlenaryVote(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	detail := approvedPetition(t, service)

	session, err := service.PutSession(staffCtx(), SessionInput{
		Name:         "Plenary I",
		ScheduledFor: serviceClock.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("put session: %v", err)
	}

	item, err := service.PlaceOnCalendar(staffCtx(), CalendarInput{
		SessionID:  session.ID,
		PetitionID: detail.Petition.ID,
		Segment:    "regular",
		Position:   1,
	})
	if err != nil {
		t.Fatalf("place on calendar: %v", err)
	}

	result, err := service.RecordPlenaryVote(staffCtx(), VoteInput{
		CalendarItemID: item.ID,
		Kind:           "adopt",
		VotesFor:       400,
		VotesAgainst:   120,
	})
	if err != nil {
		t.Fatalf("record vote: %v", err)
	}
	if result.Petition.Status != petition.StatusAdopted {
		t.Fatalf("expected ADOPTED, got %s", result.Petition.Status)
	}

	_, err = service.RecordPlenaryVote(staffCtx(), VoteInput{CalendarItemID: item.ID, Kind: "defeat"})
	if !errors.Is(err, apperrors.New(apperrors.CodeFinalVoteExists, "")) {
		t.Fatalf("expected final vote error, got %v", err)
	}

	if err := service.RemoveCalendarItem(staffCtx(), item.ID); !errors.Is(err, apperrors.New(apperrors.CodeCalendarItemVoted, "")) {
		t.Fatalf("expected voted-item error, got %v", err)
	}
}

func TestPlaceOnCalendarGatesStatus(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	detail := createSubmitted(t, service, delegateCtx("user-1"))
	session, err := service.PutSession(staffCtx(), SessionInput{Name: "Plenary I", ScheduledFor: serviceClock})
	if err != nil {
		t.Fatalf("put session: %v", err)
	}

	_, err = service.PlaceOnCalendar(staffCtx(), CalendarInput{
		SessionID:  session.ID,
		PetitionID: detail.Petition.ID,
		Segment:    "consent",
	})
	if !errors.Is(err, apperrors.New(apperrors.CodePetitionNotCalendarable, "")) {
		t.Fatalf("expected calendar gate error, got %v", err)
	}
}

func TestCompareVersionsProducesRedline(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	if _, err := service.PutCommittee(staffCtx(), CommitteeInput{
		ID:              "committee-order",
		Name:            "Committee on Church Order",
		ParagraphRanges: []routing.NumberRange{{Low: 100, High: 199}},
	}); err != nil {
		t.Fatalf("put committee: %v", err)
	}
	detail := createSubmitted(t, service, delegateCtx("user-1"))
	if _, err := service.AutoRoute(staffCtx(), detail.Petition.ID); err != nil {
		t.Fatalf("auto route: %v", err)
	}
	if _, err := service.AmendPetition(staffCtx(), AmendmentInput{
		PetitionID:   detail.Petition.ID,
		ProposedText: map[string]string{detail.Targets[0].ID: "members are welcomed and received"},
	}); err != nil {
		t.Fatalf("amend petition: %v", err)
	}

	diffs, err := service.CompareVersions(staffCtx(), detail.Petition.ID, 1, 2)
	if err != nil {
		t.Fatalf("compare versions: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected 1 target diff, got %d", len(diffs))
	}
	var added bool
	for _, segment := range diffs[0].Segments {
		if segment.Op == redline.OpAdded && strings.Contains(segment.Text, "welcomed") {
			added = true
		}
	}
	if !added {
		t.Fatalf("expected added wording in diff, got %+v", diffs[0].Segments)
	}

	if _, err := service.CompareVersions(staffCtx(), detail.Petition.ID, 1, 9); !errors.Is(err, apperrors.New(apperrors.CodeVersionNotFound, "")) {
		t.Fatalf("expected version not found, got %v", err)
	}
}

func TestCompareVersionWithItselfIsAllEqual(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	detail := createSubmitted(t, service, ctx)
	diffs, err := service.CompareVersions(ctx, detail.Petition.ID, 1, 1)
	if err != nil {
		t.Fatalf("compare version with itself: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected 1 target diff, got %d", len(diffs))
	}
	for _, segment := range diffs[0].Segments {
		if segment.Op != redline.OpEqual {
			t.Fatalf("expected only equal segments, got %+v", diffs[0].Segments)
		}
	}
}

func TestGetRedlineRendersVersion(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	detail := createSubmitted(t, service, ctx)
	versions, err := service.ListVersions(ctx, detail.Petition.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}

	diffs, err := service.GetRedline(ctx, versions[0].ID)
	if err != nil {
		t.Fatalf("get redline: %v", err)
	}
	if len(diffs) != 1 || len(diffs[0].Segments) == 0 {
		t.Fatalf("unexpected redline %+v", diffs)
	}
}

func TestWithdrawTerminalPetitionFails(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	ctx := delegateCtx("user-1")

	detail := createSubmitted(t, service, ctx)
	if _, err := service.WithdrawPetition(ctx, detail.Petition.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	_, err := service.WithdrawPetition(ctx, detail.Petition.ID)
	if !errors.Is(err, apperrors.New(apperrors.CodePetitionTerminal, "")) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}
