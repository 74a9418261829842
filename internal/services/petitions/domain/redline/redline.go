// Package redline computes word-level diffs between current and proposed
// petition text, producing the segments a redline view renders.
package redline

import (
	"strings"

	"github.com/quorumhq/petitions/internal/services/petitions/domain/petition"
)

// Op labels one diff segment.
type Op string

const (
	OpEqual   Op = "EQUAL"
	OpAdded   Op = "ADDED"
	OpRemoved Op = "REMOVED"
)

// Segment is one run of words sharing a diff label.
type Segment struct {
	Op   Op
	Text string
}

// DiffWords computes a word-granularity diff between current and proposed
// text. Both sides empty yields no segments; one side empty yields a single
// segment covering the other side's full text.
func DiffWords(current, proposed string) []Segment {
	current = strings.TrimSpace(current)
	proposed = strings.TrimSpace(proposed)
	if current == "" && proposed == "" {
		return nil
	}
	if current == "" {
		return []Segment{{Op: OpAdded, Text: proposed}}
	}
	if proposed == "" {
		return []Segment{{Op: OpRemoved, Text: current}}
	}

	currentWords := strings.Fields(current)
	proposedWords := strings.Fields(proposed)
	return mergeRuns(diffOps(currentWords, proposedWords))
}

// wordOp pairs one word with its diff label before run merging.
type wordOp struct {
	op   Op
	word string
}

// diffOps walks a longest-common-subsequence table over the two word lists.
func diffOps(currentWords, proposedWords []string) []wordOp {
	n := len(currentWords)
	m := len(proposedWords)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if currentWords[i] == proposedWords[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	ops := make([]wordOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case currentWords[i] == proposedWords[j]:
			ops = append(ops, wordOp{op: OpEqual, word: currentWords[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, wordOp{op: OpRemoved, word: currentWords[i]})
			i++
		default:
			ops = append(ops, wordOp{op: OpAdded, word: proposedWords[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, wordOp{op: OpRemoved, word: currentWords[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, wordOp{op: OpAdded, word: proposedWords[j]})
	}
	return ops
}

// mergeRuns collapses adjacent words sharing a label into one segment.
func mergeRuns(ops []wordOp) []Segment {
	var segments []Segment
	for _, op := range ops {
		last := len(segments) - 1
		if last >= 0 && segments[last].Op == op.op {
			segments[last].Text += " " + op.word
			continue
		}
		segments = append(segments, Segment{Op: op.op, Text: op.word})
	}
	return segments
}

// TargetRedline renders one target's change as diff segments. Pure-addition
// change types render the whole proposed text as added without consulting the
// current text; pure-deletion change types render the whole current text as
// removed even when a proposed text is present.
func TargetRedline(changeType petition.ChangeType, current, proposed string) []Segment {
	switch {
	case changeType.IsPureAddition():
		return DiffWords("", proposed)
	case changeType.IsPureDeletion():
		return DiffWords(current, "")
	default:
		return DiffWords(current, proposed)
	}
}

// TargetText is the diff-relevant slice of one versioned target.
type TargetText struct {
	ParagraphNumber  *int
	ResolutionNumber *int
	ChangeType       petition.ChangeType
	CurrentText      string
	ProposedText     string
}

// TargetDiff is the redline result for one target.
type TargetDiff struct {
	ParagraphNumber  *int
	ResolutionNumber *int
	Segments         []Segment
}

// Render produces the redline view of one version's targets against the
// document text each target captured.
func Render(targets []TargetText) []TargetDiff {
	diffs := make([]TargetDiff, 0, len(targets))
	for _, target := range targets {
		diffs = append(diffs, TargetDiff{
			ParagraphNumber:  target.ParagraphNumber,
			ResolutionNumber: target.ResolutionNumber,
			Segments:         TargetRedline(target.ChangeType, target.CurrentText, target.ProposedText),
		})
	}
	return diffs
}

// sameIdentity reports whether two targets reference the same document location.
func sameIdentity(a, b TargetText) bool {
	if a.ParagraphNumber != nil && b.ParagraphNumber != nil && *a.ParagraphNumber == *b.ParagraphNumber {
		return true
	}
	if a.ResolutionNumber != nil && b.ResolutionNumber != nil && *a.ResolutionNumber == *b.ResolutionNumber {
		return true
	}
	return false
}

// Compare diffs a newer version's targets against an older version's,
// matching targets by paragraph or resolution identity. A new target with no
// identity match diffs against an empty baseline and renders fully added.
func Compare(older, newer []TargetText) []TargetDiff {
	diffs := make([]TargetDiff, 0, len(newer))
	for _, target := range newer {
		baseline := ""
		for _, previous := range older {
			if sameIdentity(previous, target) {
				baseline = previous.ProposedText
				break
			}
		}
		diffs = append(diffs, TargetDiff{
			ParagraphNumber:  target.ParagraphNumber,
			ResolutionNumber: target.ResolutionNumber,
			Segments:         DiffWords(baseline, target.ProposedText),
		})
	}
	return diffs
}
