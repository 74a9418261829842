// Package routing matches petition targets against committee routing rules.
//
// Matching is pure: numeric identifiers are tested against inclusive ranges.
// A paragraph target falls back to category-tag overlap only when its number
// misses every committee's ranges; a range match anywhere suppresses the
// fallback for that target. Overlapping committee ranges legitimately produce
// multiple matches; deduplication happens across a petition's whole target set.
package routing

// NumberRange is an inclusive numeric range over paragraph or resolution numbers.
type NumberRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Contains reports whether value falls inside the range, bounds included.
func (r NumberRange) Contains(value int) bool {
	return value >= r.Low && value <= r.High
}

// RuleSet is one committee's configured routing rules.
type RuleSet struct {
	// CommitteeID identifies the committee the rules belong to.
	CommitteeID string
	// ParagraphRanges match paragraph-numbered targets.
	ParagraphRanges []NumberRange
	// ResolutionRanges match resolution-numbered targets.
	ResolutionRanges []NumberRange
	// Tags are the fallback match for paragraph targets whose number falls
	// outside every committee's ranges.
	Tags []string
}

// Target is the routing-relevant slice of one petition target.
type Target struct {
	// ParagraphNumber is set when the target is a reference-document paragraph.
	ParagraphNumber *int
	// ResolutionNumber is set when the target is a resolution.
	ResolutionNumber *int
	// CategoryTags are the paragraph's category tags, used only as a fallback.
	CategoryTags []string
}

// anyRangeContains reports whether any range includes value.
func anyRangeContains(ranges []NumberRange, value int) bool {
	for _, r := range ranges {
		if r.Contains(value) {
			return true
		}
	}
	return false
}

// tagsOverlap reports whether the two tag sets share at least one tag.
func tagsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			return true
		}
	}
	return false
}

// Matches reports whether one target routes to the committee described by
// rules on numeric identity alone. A target may reference both a paragraph
// and a resolution; each identity is tested against its own range set and
// either suffices. The tag fallback is a whole-roster concern and lives in
// MatchCommittees.
func Matches(target Target, rules RuleSet) bool {
	if target.ParagraphNumber != nil && anyRangeContains(rules.ParagraphRanges, *target.ParagraphNumber) {
		return true
	}
	if target.ResolutionNumber != nil && anyRangeContains(rules.ResolutionRanges, *target.ResolutionNumber) {
		return true
	}
	return false
}

// fallsBackToTags reports whether a target that range-matched no committee
// routes to rules by tag overlap. Resolutions never use the fallback.
func fallsBackToTags(target Target, rangeMatched bool, rules RuleSet) bool {
	if rangeMatched || target.ParagraphNumber == nil {
		return false
	}
	return tagsOverlap(target.CategoryTags, rules.Tags)
}

// MatchCommittees unions the committees matched by any target, deduplicated,
// preserving the order committees were supplied in. The tag fallback is
// consulted only for paragraph targets whose number missed every committee's
// ranges; one range match anywhere disables it for that target.
func MatchCommittees(targets []Target, committees []RuleSet) []string {
	rangeMatched := make([]bool, len(targets))
	for i, target := range targets {
		for _, rules := range committees {
			if Matches(target, rules) {
				rangeMatched[i] = true
				break
			}
		}
	}

	var matched []string
	seen := make(map[string]struct{}, len(committees))
	for _, rules := range committees {
		if _, dup := seen[rules.CommitteeID]; dup {
			continue
		}
		for i, target := range targets {
			if Matches(target, rules) || fallsBackToTags(target, rangeMatched[i], rules) {
				matched = append(matched, rules.CommitteeID)
				seen[rules.CommitteeID] = struct{}{}
				break
			}
		}
	}
	return matched
}
