package stredit

import "testing"

func TestStringEditApply(t *testing.T) {
	text := "the quick brown fox"
	e := New(
		NewStringReplacement(NewOffsetRange(4, 9), "slow"),
		NewStringReplacement(NewOffsetRange(16, 19), "cat"),
	)
	if got := e.Apply(text); got != "the slow brown cat" {
		t.Fatalf("Apply() = %q", got)
	}
}

func TestStringEditEmptyApplyIsIdentity(t *testing.T) {
	if got := Empty.Apply("unchanged"); got != "unchanged" {
		t.Fatalf("Apply() on Empty = %q", got)
	}
}

func TestNewPanicsOnOverlap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on overlapping replacements")
		}
	}()
	New(
		NewStringReplacement(NewOffsetRange(0, 5), "a"),
		NewStringReplacement(NewOffsetRange(3, 8), "b"),
	)
}

func TestNewPanicsOnTouchingNonInsertions(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on touching non-insertion replacements")
		}
	}()
	New(
		NewStringReplacement(NewOffsetRange(0, 5), "a"),
		NewStringReplacement(NewOffsetRange(5, 8), "b"),
	)
}

func TestNewAllowsTouchingInsertions(t *testing.T) {
	// Two pure insertions at the same point are explicitly permitted by I2.
	New(
		NewStringReplacement(NewOffsetRange(5, 5), "a"),
		NewStringReplacement(NewOffsetRange(5, 5), "b"),
	)
}

func TestGetNewRanges(t *testing.T) {
	e := New(
		NewStringReplacement(NewOffsetRange(0, 3), "xy"),   // -1 length delta
		NewStringReplacement(NewOffsetRange(6, 6), "zzzz"), // +4 length delta, pure insertion
	)
	ranges := e.GetNewRanges()
	if len(ranges) != 2 {
		t.Fatalf("len(ranges) = %d, want 2", len(ranges))
	}
	if ranges[0] != (OffsetRange{Start: 0, EndExclusive: 2}) {
		t.Fatalf("ranges[0] = %v", ranges[0])
	}
	// original offset 6, shifted by -1 from the first replacement
	if ranges[1] != (OffsetRange{Start: 5, EndExclusive: 9}) {
		t.Fatalf("ranges[1] = %v", ranges[1])
	}
}

func TestRemoveCommonSuffixAndPrefixOnEdit(t *testing.T) {
	base := "aaa bbb ccc"
	e := New(
		NewStringReplacement(NewOffsetRange(0, 3), "aaa"),  // no-op, should drop
		NewStringReplacement(NewOffsetRange(4, 7), "xbby"), // no common prefix or suffix with "bbb", kept as is
	)
	canon := e.RemoveCommonSuffixAndPrefix(base)
	if len(canon.Replacements) != 1 {
		t.Fatalf("len(Replacements) = %d, want 1 (no-op dropped)", len(canon.Replacements))
	}
	if got := canon.Apply(base); got != e.Apply(base) {
		t.Fatalf("canonicalized edit changed semantics: got %q want %q", got, e.Apply(base))
	}
}

func TestApplyToOffsetRangeShiftsBefore(t *testing.T) {
	e := New(NewStringReplacement(NewOffsetRange(0, 3), "ab")) // -1 delta
	got, ok := e.ApplyToOffsetRange(NewOffsetRange(10, 15))
	if !ok || got != (OffsetRange{Start: 9, EndExclusive: 14}) {
		t.Fatalf("ApplyToOffsetRange() = %v, %v", got, ok)
	}
}

func TestApplyToOffsetRangeGrowsInside(t *testing.T) {
	e := New(NewStringReplacement(NewOffsetRange(5, 5), "abcdef")) // pure insertion, +6
	got, ok := e.ApplyToOffsetRange(NewOffsetRange(2, 8))
	if !ok || got != (OffsetRange{Start: 2, EndExclusive: 14}) {
		t.Fatalf("ApplyToOffsetRange() = %v, %v", got, ok)
	}
}

func TestApplyToOffsetRangeUndefinedOnBoundaryStraddle(t *testing.T) {
	e := New(NewStringReplacement(NewOffsetRange(4, 10), "z"))
	if _, ok := e.ApplyToOffsetRange(NewOffsetRange(6, 20)); ok {
		t.Fatalf("expected undefined mapping when a replacement straddles the window boundary")
	}
}

// --- Compose ---

func composeCheck(t *testing.T, text string, a, b StringEdit) {
	t.Helper()
	mid := a.Apply(text)
	want := b.Apply(mid)
	composed := a.Compose(b)
	got := composed.Apply(text)
	if got != want {
		t.Fatalf("a.Compose(b).Apply(text) = %q, want %q (mid=%q)", got, want, mid)
	}
}

func TestComposeDisjointEdits(t *testing.T) {
	text := "one two three four"
	a := New(NewStringReplacement(NewOffsetRange(0, 3), "1"))
	b := New(NewStringReplacement(NewOffsetRange(4, 7), "2")) // "o t" in a's output "1 two three four"
	composeCheck(t, text, a, b)
}

func TestComposeBFullyInsideAImage(t *testing.T) {
	text := "x = compute(a, b)"
	a := New(NewStringReplacement(NewOffsetRange(4, 17), "computeSlow(a, b, c)"))
	// b edits a substring entirely inside a's inserted text
	mid := a.Apply(text)
	idx := indexOf(mid, "Slow")
	b := New(NewStringReplacement(NewOffsetRange(idx, idx+4), "Fast"))
	composeCheck(t, text, a, b)
}

func TestComposeBStraddlesAImageAndGap(t *testing.T) {
	text := "foo(bar)"
	a := New(NewStringReplacement(NewOffsetRange(4, 7), "BAZ")) // foo(BAZ)
	mid := a.Apply(text)
	// b replaces "(BAZ" with "[BAZ" by deleting the paren and part of BAZ... use
	// a safer straddle: b replaces from just before the image through just after it.
	start := indexOf(mid, "BAZ") - 1 // the '('
	end := indexOf(mid, "BAZ") + 3 + 1 // through the ')'
	b := New(NewStringReplacement(NewOffsetRange(start, end), "[BAZ]"))
	composeCheck(t, text, a, b)
}

func TestComposeTwoBTouchesInsideOneASegment(t *testing.T) {
	text := "f(1)"
	a := New(NewStringReplacement(NewOffsetRange(2, 3), "1, 2, 3"))
	mid := a.Apply(text) // f(1, 2, 3)
	i1 := indexOf(mid, "1")
	i2 := indexOf(mid, "3")
	b := New(
		NewStringReplacement(NewOffsetRange(i1, i1+1), "10"),
		NewStringReplacement(NewOffsetRange(i2, i2+1), "30"),
	)
	composeCheck(t, text, a, b)
}

func TestComposeEmptyIsIdentity(t *testing.T) {
	a := New(NewStringReplacement(NewOffsetRange(0, 1), "X"))
	if got := a.Compose(Empty); len(got.Replacements) != len(a.Replacements) {
		t.Fatalf("Compose(Empty) changed the edit")
	}
	if got := Empty.Compose(a); len(got.Replacements) != len(a.Replacements) {
		t.Fatalf("Empty.Compose(a) changed the edit")
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
