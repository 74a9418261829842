package storage

import (
	"strings"
	"testing"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
)

func intPtr(v int) *int { return &v }

func TestSnapshotEncodeDecode(t *testing.T) {
	t.Parallel()

	record := Petition{
		Title:      "Revise clergy housing language",
		Summary:    "Updates housing terms",
		Rationale:  "Current language is outdated",
		ActionType: petition.ActionTypeAmend,
	}
	targets := []Target{
		{
			ParagraphNumber: intPtr(161),
			ChangeType:      petition.ChangeReplaceText,
			CurrentText:     "the old wording",
			ProposedText:    "the new wording",
		},
	}

	snapshot := NewSnapshot(record, targets)
	if snapshot.SchemaVersion != SnapshotSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SnapshotSchemaVersion, snapshot.SchemaVersion)
	}

	encoded, err := EncodeSnapshot(snapshot)
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	if !strings.Contains(encoded, `"paragraph_number":161`) {
		t.Fatalf("expected paragraph number in payload, got %s", encoded)
	}

	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if decoded.Title != record.Title {
		t.Fatalf("expected title %q, got %q", record.Title, decoded.Title)
	}
	if len(decoded.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(decoded.Targets))
	}
	if decoded.Targets[0].ProposedText != "the new wording" {
		t.Fatalf("unexpected proposed text %q", decoded.Targets[0].ProposedText)
	}
}

func TestDecodeSnapshotRejectsUnknownSchema(t *testing.T) {
	t.Parallel()

	if _, err := DecodeSnapshot(`{"schema_version":99}`); err == nil {
		t.Fatal("expected schema version error")
	}
	if _, err := DecodeSnapshot("not json"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTargetTextsMapping(t *testing.T) {
	t.Parallel()

	snapshot := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Targets: []TargetSnapshot{
			{ResolutionNumber: intPtr(3021), ChangeType: petition.ChangeRestructure, ProposedText: "moved text"},
		},
	}
	texts := snapshot.TargetTexts()
	if len(texts) != 1 {
		t.Fatalf("expected 1 target text, got %d", len(texts))
	}
	if texts[0].ResolutionNumber == nil || *texts[0].ResolutionNumber != 3021 {
		t.Fatal("expected resolution number 3021")
	}
}
