package redline

import (
	"reflect"
	"testing"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
)

func intPtr(v int) *int { return &v }

func TestDiffWordsBothEmpty(t *testing.T) {
	t.Parallel()

	if segments := DiffWords("", "   "); len(segments) != 0 {
		t.Fatalf("expected no segments, got %v", segments)
	}
}

func TestDiffWordsOneSideEmpty(t *testing.T) {
	t.Parallel()

	added := DiffWords("", "all new text")
	if !reflect.DeepEqual(added, []Segment{{Op: OpAdded, Text: "all new text"}}) {
		t.Fatalf("unexpected added segments %v", added)
	}
	removed := DiffWords("old text here", "")
	if !reflect.DeepEqual(removed, []Segment{{Op: OpRemoved, Text: "old text here"}}) {
		t.Fatalf("unexpected removed segments %v", removed)
	}
}

func TestDiffWordsIdenticalYieldsEqual(t *testing.T) {
	t.Parallel()

	segments := DiffWords("the church shall act", "the church shall act")
	if !reflect.DeepEqual(segments, []Segment{{Op: OpEqual, Text: "the church shall act"}}) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestDiffWordsReplacement(t *testing.T) {
	t.Parallel()

	segments := DiffWords(
		"the pastor shall preside at meetings",
		"the pastor may preside at gatherings",
	)
	want := []Segment{
		{Op: OpEqual, Text: "the pastor"},
		{Op: OpRemoved, Text: "shall"},
		{Op: OpAdded, Text: "may"},
		{Op: OpEqual, Text: "preside at"},
		{Op: OpRemoved, Text: "meetings"},
		{Op: OpAdded, Text: "gatherings"},
	}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestDiffWordsInsertionRun(t *testing.T) {
	t.Parallel()

	segments := DiffWords("members vote annually", "members in good standing vote annually")
	want := []Segment{
		{Op: OpEqual, Text: "members"},
		{Op: OpAdded, Text: "in good standing"},
		{Op: OpEqual, Text: "vote annually"},
	}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestTargetRedlinePureAddition(t *testing.T) {
	t.Parallel()

	// Pure additions never consult the current text.
	segments := TargetRedline(petition.ChangeAddParagraph, "existing text ignored", "a wholly new paragraph")
	want := []Segment{{Op: OpAdded, Text: "a wholly new paragraph"}}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestTargetRedlinePureDeletion(t *testing.T) {
	t.Parallel()

	// Pure deletions discard the proposed text even when present.
	segments := TargetRedline(petition.ChangeDeleteText, "text being struck", "stray proposed text")
	want := []Segment{{Op: OpRemoved, Text: "text being struck"}}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestTargetRedlineReplaceUsesWordDiff(t *testing.T) {
	t.Parallel()

	segments := TargetRedline(petition.ChangeReplaceText, "shall be required", "may be required")
	want := []Segment{
		{Op: OpRemoved, Text: "shall"},
		{Op: OpAdded, Text: "may"},
		{Op: OpEqual, Text: "be required"},
	}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("unexpected segments %v", segments)
	}
}

func TestCompareMatchesByIdentity(t *testing.T) {
	t.Parallel()

	older := []TargetText{
		{ParagraphNumber: intPtr(161), ProposedText: "first proposal text"},
		{ResolutionNumber: intPtr(3021), ProposedText: "resolution text stands"},
	}
	newer := []TargetText{
		{ParagraphNumber: intPtr(161), ProposedText: "first amended text"},
		{ResolutionNumber: intPtr(3021), ProposedText: "resolution text stands"},
		{ParagraphNumber: intPtr(999), ProposedText: "brand new target"},
	}

	diffs := Compare(older, newer)
	if len(diffs) != 3 {
		t.Fatalf("expected 3 diffs, got %d", len(diffs))
	}

	first := diffs[0].Segments
	want := []Segment{
		{Op: OpEqual, Text: "first"},
		{Op: OpRemoved, Text: "proposal"},
		{Op: OpAdded, Text: "amended"},
		{Op: OpEqual, Text: "text"},
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("unexpected first diff %v", first)
	}

	second := diffs[1].Segments
	if !reflect.DeepEqual(second, []Segment{{Op: OpEqual, Text: "resolution text stands"}}) {
		t.Fatalf("unexpected second diff %v", second)
	}

	// No identity match in the old version diffs against an empty baseline.
	third := diffs[2].Segments
	if !reflect.DeepEqual(third, []Segment{{Op: OpAdded, Text: "brand new target"}}) {
		t.Fatalf("unexpected third diff %v", third)
	}
}

func TestCompareVersionToItselfIsAllEqual(t *testing.T) {
	t.Parallel()

	targets := []TargetText{
		{ParagraphNumber: intPtr(10), ProposedText: "identical wording here"},
		{ResolutionNumber: intPtr(42), ProposedText: "more identical wording"},
	}
	for _, diff := range Compare(targets, targets) {
		for _, segment := range diff.Segments {
			if segment.Op != OpEqual {
				t.Fatalf("expected only equal segments, got %v", diff.Segments)
			}
		}
	}
}

func TestRenderUsesChangeType(t *testing.T) {
	t.Parallel()

	diffs := Render([]TargetText{
		{
			ParagraphNumber: intPtr(7),
			ChangeType:      petition.ChangeAddText,
			ProposedText:    "inserted sentence",
		},
	})
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}
	if !reflect.DeepEqual(diffs[0].Segments, []Segment{{Op: OpAdded, Text: "inserted sentence"}}) {
		t.Fatalf("unexpected segments %v", diffs[0].Segments)
	}
}
