package stredit

import (
	"fmt"
	"strings"

	"github.com/alantheprice/nextedit/pkg/utils"
)

// StringEdit is an ordered, non-overlapping set of replacements over one
// base string.
//
// Invariants (checked by New, violations are programming errors):
//
//	I1 (order):   replacements are sorted by ReplaceRange.Start ascending.
//	I2 (disjoint): for consecutive r_i, r_i+1: r_i.EndExclusive <= r_i+1.Start,
//	               with equality only permitted when at least one side is a
//	               pure insertion (zero-length ReplaceRange).
type StringEdit struct {
	Replacements []StringReplacement
}

// Empty is the identity edit.
var Empty = StringEdit{}

// Single builds a one-element edit.
func Single(r StringReplacement) StringEdit {
	return StringEdit{Replacements: []StringReplacement{r}}
}

// New validates and constructs a StringEdit from a list of replacements.
// Callers are expected to pass replacements already sorted by start; New
// panics (a programming error) if I1 or I2 is violated.
func New(replacements ...StringReplacement) StringEdit {
	for i := 1; i < len(replacements); i++ {
		prev, cur := replacements[i-1], replacements[i]
		if prev.ReplaceRange.Start > cur.ReplaceRange.Start {
			panic(utils.NewValidationError("replacements", fmt.Sprintf("not sorted: %v then %v", prev.ReplaceRange, cur.ReplaceRange)))
		}
		if prev.ReplaceRange.EndExclusive > cur.ReplaceRange.Start {
			panic(utils.NewValidationError("replacements", fmt.Sprintf("overlapping: %v then %v", prev.ReplaceRange, cur.ReplaceRange)))
		}
		if prev.ReplaceRange.EndExclusive == cur.ReplaceRange.Start {
			if prev.ReplaceRange.Length() != 0 && cur.ReplaceRange.Length() != 0 {
				panic(utils.NewValidationError("replacements", fmt.Sprintf("touching non-insertion replacements: %v then %v", prev.ReplaceRange, cur.ReplaceRange)))
			}
		}
	}
	return StringEdit{Replacements: replacements}
}

// IsEmpty reports whether the edit has no replacements at all; an edit
// holding only no-op replacements is not empty.
func (e StringEdit) IsEmpty() bool {
	return len(e.Replacements) == 0
}

// Apply replays e's replacements left to right over text, producing the
// result. Any replacement whose EndExclusive exceeds len(text) is a
// programming error.
func (e StringEdit) Apply(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, r := range e.Replacements {
		if r.ReplaceRange.EndExclusive > len(text) {
			panic(utils.NewValidationError("ReplaceRange", fmt.Sprintf("%v out of bounds for text of length %d", r.ReplaceRange, len(text))))
		}
		b.WriteString(text[pos:r.ReplaceRange.Start])
		b.WriteString(r.NewText)
		pos = r.ReplaceRange.EndExclusive
	}
	b.WriteString(text[pos:])
	return b.String()
}

// GetNewRanges returns, for each replacement, its range in the coordinate
// system of the text produced by Apply (the "post-apply" coordinates),
// computed via a running prefix sum of each replacement's length delta.
func (e StringEdit) GetNewRanges() []OffsetRange {
	ranges := make([]OffsetRange, len(e.Replacements))
	delta := 0
	for i, r := range e.Replacements {
		start := r.ReplaceRange.Start + delta
		end := start + len(r.NewText)
		ranges[i] = OffsetRange{Start: start, EndExclusive: end}
		delta += r.LengthDelta()
	}
	return ranges
}

// RemoveCommonSuffixAndPrefix canonicalizes every replacement against base
// and drops any that become empty as a result.
func (e StringEdit) RemoveCommonSuffixAndPrefix(base string) StringEdit {
	out := make([]StringReplacement, 0, len(e.Replacements))
	for _, r := range e.Replacements {
		canon := r.RemoveCommonSuffixAndPrefix(base)
		if canon.IsEmpty() {
			continue
		}
		out = append(out, canon)
	}
	return StringEdit{Replacements: out}
}

// ApplyToOffsetRange maps r forward through e: replacements entirely
// before r shift it by their length delta, replacements entirely inside r
// shrink/grow it, and a replacement partially overlapping r's boundary
// makes the mapping undefined.
func (e StringEdit) ApplyToOffsetRange(r OffsetRange) (OffsetRange, bool) {
	start, end := r.Start, r.EndExclusive
	delta := 0
	for _, rep := range e.Replacements {
		rr := rep.ReplaceRange
		switch {
		case rr.EndExclusive <= start:
			// entirely before the window: shifts both endpoints
			delta += rep.LengthDelta()
		case rr.Start >= end:
			// entirely after the window: no effect
		case rr.Start >= start && rr.EndExclusive <= end:
			// entirely inside the window: window grows/shrinks with it
			end += rep.LengthDelta()
		default:
			// partial overlap with the window boundary: undefined
			return OffsetRange{}, false
		}
	}
	return OffsetRange{Start: start + delta, EndExclusive: end + delta}, true
}
