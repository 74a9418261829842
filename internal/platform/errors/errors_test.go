package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodePetitionNotDraft, "petition is no longer draft")
	if !stderrors.Is(err, New(CodePetitionNotDraft, "other message")) {
		t.Fatal("expected code match")
	}
	if stderrors.Is(err, New(CodePetitionNotFound, "petition is no longer draft")) {
		t.Fatal("unexpected match across codes")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("sqlite busy")
	err := Wrap(CodeWriteConflict, "submit raced", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "submit raced" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodePetitionTitleEmpty, codes.InvalidArgument},
		{CodePetitionTargetsEmpty, codes.InvalidArgument},
		{CodeIdentityRequired, codes.Unauthenticated},
		{CodePermissionDenied, codes.PermissionDenied},
		{CodePetitionNotFound, codes.NotFound},
		{CodeFinalActionExists, codes.FailedPrecondition},
		{CodeFinalVoteExists, codes.FailedPrecondition},
		{CodeAssignmentExists, codes.AlreadyExists},
		{CodeWriteConflict, codes.Aborted},
		{CodeStoreIntegrity, codes.Internal},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestToGRPCStatusCarriesReason(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeAssignmentExists, "assignment already exists", map[string]string{
		"petition_id":  "pet-1",
		"committee_id": "com-1",
	})
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected grpc status")
	}
	if st.Code() != codes.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", st.Code())
	}
	if st.Message() != "assignment already exists" {
		t.Fatalf("unexpected message %q", st.Message())
	}
	if len(st.Details()) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(st.Details()))
	}
}
