package stredit

// StringReplacement is an atomic replacement of a byte range with new text.
type StringReplacement struct {
	ReplaceRange OffsetRange
	NewText      string
}

// NewStringReplacement constructs a replacement.
func NewStringReplacement(r OffsetRange, newText string) StringReplacement {
	return StringReplacement{ReplaceRange: r, NewText: newText}
}

// IsEmpty reports whether the replacement has no effect: it neither
// consumes nor inserts any text.
func (r StringReplacement) IsEmpty() bool {
	return r.ReplaceRange.IsEmpty() && r.NewText == ""
}

// Apply substitutes r.ReplaceRange in base with r.NewText.
func (r StringReplacement) Apply(base string) string {
	return base[:r.ReplaceRange.Start] + r.NewText + base[r.ReplaceRange.EndExclusive:]
}

// Delta returns a copy of r whose range has been shifted by n.
func (r StringReplacement) Delta(n int) StringReplacement {
	return StringReplacement{ReplaceRange: r.ReplaceRange.Delta(n), NewText: r.NewText}
}

// NewLength is the length of the text this replacement contributes, i.e.
// len(NewText).
func (r StringReplacement) NewLength() int {
	return len(r.NewText)
}

// LengthDelta is the net change in length this replacement introduces:
// len(NewText) - ReplaceRange.Length().
func (r StringReplacement) LengthDelta() int {
	return len(r.NewText) - r.ReplaceRange.Length()
}

// RemoveCommonSuffixAndPrefix shrinks r by the longest common prefix and
// suffix between the text it replaces (taken from base) and r.NewText.
// It does not mutate r.
func (r StringReplacement) RemoveCommonSuffixAndPrefix(base string) StringReplacement {
	s := r.ReplaceRange.Substring(base)
	t := r.NewText

	p := longestCommonPrefixLen(s, t)
	sRest := s[p:]
	tRest := t[p:]
	q := longestCommonSuffixLen(sRest, tRest)

	return StringReplacement{
		ReplaceRange: OffsetRange{
			Start:        r.ReplaceRange.Start + p,
			EndExclusive: r.ReplaceRange.EndExclusive - q,
		},
		NewText: t[p : len(t)-q],
	}
}

func longestCommonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func longestCommonSuffixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
