package petition

import "testing"

func TestCommitteeOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind           CommitteeActionKind
		wantStatus     Status
		wantChange     bool
		wantAssignment AssignmentStatus
		wantFinal      bool
		wantVersion    bool
	}{
		{CommitteeApprove, StatusApprovedByCommittee, true, AssignmentCompleted, true, false},
		{CommitteeReject, StatusRejectedByCommittee, true, AssignmentCompleted, true, false},
		{CommitteeNoAction, StatusRejectedByCommittee, true, AssignmentCompleted, true, false},
		{CommitteeAmendAndApprove, StatusAmended, true, AssignmentCompleted, true, true},
		{CommitteeDefer, "", false, AssignmentDeferred, false, false},
		{CommitteeRefer, StatusUnderReview, true, AssignmentPending, false, false},
	}
	for _, tc := range tests {
		outcome, ok := OutcomeOfCommitteeAction(tc.kind)
		if !ok {
			t.Fatalf("kind %s: expected outcome", tc.kind)
		}
		if outcome.ChangesPetition != tc.wantChange {
			t.Fatalf("kind %s: expected ChangesPetition %v", tc.kind, tc.wantChange)
		}
		if tc.wantChange && outcome.PetitionStatus != tc.wantStatus {
			t.Fatalf("kind %s: expected status %s, got %s", tc.kind, tc.wantStatus, outcome.PetitionStatus)
		}
		if outcome.AssignmentStatus != tc.wantAssignment {
			t.Fatalf("kind %s: expected assignment %s, got %s", tc.kind, tc.wantAssignment, outcome.AssignmentStatus)
		}
		if outcome.Final != tc.wantFinal {
			t.Fatalf("kind %s: expected final %v", tc.kind, tc.wantFinal)
		}
		if outcome.AppendsVersion != tc.wantVersion {
			t.Fatalf("kind %s: expected version append %v", tc.kind, tc.wantVersion)
		}
		if outcome.Final != tc.kind.IsFinal() {
			t.Fatalf("kind %s: IsFinal disagrees with table", tc.kind)
		}
	}

	if _, ok := OutcomeOfCommitteeAction("BOGUS"); ok {
		t.Fatal("expected no outcome for unknown kind")
	}
}

func TestPlenaryOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind        PlenaryActionKind
		wantStatus  Status
		wantChange  bool
		wantFinal   bool
		wantVersion bool
	}{
		{PlenaryAdopt, StatusAdopted, true, true, false},
		{PlenaryDefeat, StatusDefeated, true, true, false},
		{PlenaryAmend, StatusAmended, true, false, true},
		{PlenaryReferBack, StatusInCommittee, true, false, false},
		{PlenaryTable, "", false, false, false},
		{PlenaryPostpone, "", false, false, false},
	}
	for _, tc := range tests {
		outcome, ok := OutcomeOfPlenaryAction(tc.kind)
		if !ok {
			t.Fatalf("kind %s: expected outcome", tc.kind)
		}
		if outcome.ChangesPetition != tc.wantChange {
			t.Fatalf("kind %s: expected ChangesPetition %v", tc.kind, tc.wantChange)
		}
		if tc.wantChange && outcome.PetitionStatus != tc.wantStatus {
			t.Fatalf("kind %s: expected status %s, got %s", tc.kind, tc.wantStatus, outcome.PetitionStatus)
		}
		if outcome.Final != tc.wantFinal {
			t.Fatalf("kind %s: expected final %v", tc.kind, tc.wantFinal)
		}
		if outcome.AppendsVersion != tc.wantVersion {
			t.Fatalf("kind %s: expected version append %v", tc.kind, tc.wantVersion)
		}
		if outcome.Final != tc.kind.IsFinal() {
			t.Fatalf("kind %s: IsFinal disagrees with table", tc.kind)
		}
	}
}

func TestCanPlaceOnCalendar(t *testing.T) {
	t.Parallel()

	allowed := []Status{StatusApprovedByCommittee, StatusAmended, StatusRejectedByCommittee, StatusOnCalendar}
	for _, status := range allowed {
		if !CanPlaceOnCalendar(status) {
			t.Fatalf("expected %s to allow calendar placement", status)
		}
	}
	denied := []Status{StatusDraft, StatusSubmitted, StatusUnderReview, StatusInCommittee, StatusAdopted, StatusDefeated, StatusWithdrawn}
	for _, status := range denied {
		if CanPlaceOnCalendar(status) {
			t.Fatalf("expected %s to deny calendar placement", status)
		}
	}
}

func TestStatusAfterAssignmentProgress(t *testing.T) {
	t.Parallel()

	status, cascades := StatusAfterAssignmentProgress(AssignmentInProgress)
	if !cascades {
		t.Fatal("expected IN_PROGRESS to cascade")
	}
	if status != StatusInCommittee {
		t.Fatalf("expected IN_COMMITTEE, got %s", status)
	}
	for _, other := range []AssignmentStatus{AssignmentPending, AssignmentCompleted, AssignmentDeferred} {
		if _, cascades := StatusAfterAssignmentProgress(other); cascades {
			t.Fatalf("unexpected cascade for %s", other)
		}
	}
}

func TestStatusAfterCalendarRemoval(t *testing.T) {
	t.Parallel()

	if StatusAfterCalendarRemoval() != StatusApprovedByCommittee {
		t.Fatal("expected APPROVED_BY_COMMITTEE after calendar removal")
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusAdopted, StatusDefeated, StatusWithdrawn}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	if StatusOnCalendar.IsTerminal() {
		t.Fatal("ON_CALENDAR must not be terminal")
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if status, ok := ParseStatus(" under_review "); !ok || status != StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW, got %q ok=%v", status, ok)
	}
	if _, ok := ParseStatus("PENDING"); ok {
		t.Fatal("expected parse failure for non-status label")
	}
}
