// Package arc tracks how much of an originally tracked insertion survives
// across later, untracked edits: a suggestion's text starts
// fully "tracked," and as the user keeps typing, whatever part of it gets
// overwritten or deleted drops out, while the rest keeps its (shifting)
// position. It is the basis for reporting what fraction of an accepted
// suggestion a user actually kept.
package arc

import (
	"github.com/alantheprice/nextedit/pkg/stredit"
)

// fragment is one surviving, contiguous slice of originally tracked text,
// at its current position in the live document. Update splits a fragment
// wherever a follow-up edit cuts through it and drops the cut-through part;
// the untouched remainder is kept and remapped to its new offsets.
//
// This is the same "decompose, keep one side" idea as splitting an
// AnnotatedStringEdit on its boolean annotation, but done
// directly on ranges: stredit's generic AnnotatedStringEdit.Compose joins
// overlapping touches into a single replacement with a single Joined
// annotation, which can't express "half of this replacement's text is
// still tracked, half isn't" once a follow-up edit straddles the boundary.
// Tracking survival at sub-replacement granularity needs the split to
// happen before merging, not after, so Tracker keeps its own fragment list
// instead of going through Joiner.
type fragment struct {
	start, end int
	text       string
}

// Tracker measures survival of one tracked StringEdit over time.
type Tracker struct {
	fragments   []fragment
	originalLen int
}

// New starts tracking the replacements of tracked, normalized against
// originalText.
func New(originalText string, tracked stredit.StringEdit) *Tracker {
	canon := tracked.RemoveCommonSuffixAndPrefix(originalText)
	ranges := canon.GetNewRanges()

	fragments := make([]fragment, len(ranges))
	total := 0
	for i, r := range ranges {
		text := canon.Replacements[i].NewText
		fragments[i] = fragment{start: r.Start, end: r.EndExclusive, text: text}
		total += len(text)
	}
	return &Tracker{fragments: fragments, originalLen: total}
}

// Update folds a follow-up edit F into the tracker: any tracked fragment F
// writes into is cut down to the parts F left alone, and every surviving
// part is remapped to F's output coordinates.
func (t *Tracker) Update(f stredit.StringEdit) {
	if f.IsEmpty() || len(t.fragments) == 0 {
		return
	}

	var split []fragment
	for _, frag := range t.fragments {
		split = append(split, splitFragment(frag, f.Replacements)...)
	}
	t.fragments = remapFragments(split, f)
}

// splitFragment keeps the parts of frag not touched by any replacement in
// reps, dropping whatever a replacement overwrites.
func splitFragment(frag fragment, reps []stredit.StringReplacement) []fragment {
	var out []fragment
	cursor := frag.start
	for _, r := range reps {
		rr := r.ReplaceRange
		if rr.EndExclusive <= frag.start || rr.Start >= frag.end {
			continue
		}
		touchStart := max(cursor, max(rr.Start, frag.start))
		touchEnd := min(rr.EndExclusive, frag.end)
		if touchStart > cursor {
			out = append(out, fragment{
				start: cursor,
				end:   touchStart,
				text:  frag.text[cursor-frag.start : touchStart-frag.start],
			})
		}
		if touchEnd > cursor {
			cursor = touchEnd
		}
	}
	if cursor < frag.end {
		out = append(out, fragment{start: cursor, end: frag.end, text: frag.text[cursor-frag.start:]})
	}
	return out
}

// remapFragments forwards each surviving fragment's range through f. By
// construction no surviving fragment straddles one of f's replacements, so
// the mapping always succeeds.
func remapFragments(frags []fragment, f stredit.StringEdit) []fragment {
	out := make([]fragment, 0, len(frags))
	for _, frag := range frags {
		if frag.end <= frag.start {
			continue
		}
		mapped, ok := f.ApplyToOffsetRange(stredit.NewOffsetRange(frag.start, frag.end))
		if !ok {
			continue
		}
		out = append(out, fragment{start: mapped.Start, end: mapped.EndExclusive, text: frag.text})
	}
	return out
}

// Survived returns the accepted-and-retained-character count: the total
// length of text still present from the original tracked edit.
func (t *Tracker) Survived() int {
	total := 0
	for _, f := range t.fragments {
		total += len(f.text)
	}
	return total
}

// Original returns the total length of the originally tracked edit.
func (t *Tracker) Original() int {
	return t.originalLen
}

// Fraction returns Survived/Original. An originally empty tracked edit
// reports full survival (1.0): there is nothing left to lose.
func (t *Tracker) Fraction() float64 {
	if t.originalLen == 0 {
		return 1
	}
	return float64(t.Survived()) / float64(t.originalLen)
}

// FourGramSimilarity scores two strings by overlap of their length-4
// substring multisets. Strings shorter than four bytes
// score 1 if equal, 0 otherwise.
func FourGramSimilarity(a, b string) float64 {
	if len(a) < 4 || len(b) < 4 {
		if a == b {
			return 1
		}
		return 0
	}

	na := fourGramCounts(a)
	nb := fourGramCounts(b)

	sizeA, sizeB := 0, 0
	for _, c := range na {
		sizeA += c
	}
	for _, c := range nb {
		sizeB += c
	}

	symDiff := 0
	for g, ca := range na {
		cb := nb[g]
		d := ca - cb
		if d < 0 {
			d = -d
		}
		symDiff += d
	}
	for g, cb := range nb {
		if _, ok := na[g]; ok {
			continue
		}
		symDiff += cb
	}

	denom := sizeA + sizeB
	if denom == 0 {
		return 1
	}
	return float64(denom-symDiff) / float64(denom)
}

func fourGramCounts(s string) map[string]int {
	counts := make(map[string]int, len(s))
	for i := 0; i+4 <= len(s); i++ {
		counts[s[i:i+4]]++
	}
	return counts
}
