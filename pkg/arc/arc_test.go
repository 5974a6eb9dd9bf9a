package arc

import (
	"testing"

	"github.com/alantheprice/nextedit/pkg/stredit"
)

func TestNewTracksFullInsertion(t *testing.T) {
	original := "func add(a, b int) int {\n\treturn a + b\n}\n"
	tracked := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(38, 38), " + c"))

	tr := New(original, tracked)
	if tr.Original() != 4 {
		t.Fatalf("Original() = %d, want 4", tr.Original())
	}
	if tr.Survived() != 4 {
		t.Fatalf("Survived() = %d, want 4", tr.Survived())
	}
	if tr.Fraction() != 1 {
		t.Fatalf("Fraction() = %v, want 1", tr.Fraction())
	}
}

func TestUpdateDropsOverwrittenPortion(t *testing.T) {
	original := "add(a, b)"
	tracked := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(8, 8), ", c"))
	tr := New(original, tracked)
	current := tracked.Apply(original)
	if current != "add(a, b, c)" {
		t.Fatalf("setup: current = %q", current)
	}

	// user retypes the trailing "c" of the tracked insertion
	followUp := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(10, 11), "d"))
	tr.Update(followUp)

	if tr.Survived() >= tr.Original() {
		t.Fatalf("expected survival to shrink: survived=%d original=%d", tr.Survived(), tr.Original())
	}
	if tr.Survived() != len(", ") {
		t.Fatalf("Survived() = %d, want %d", tr.Survived(), len(", "))
	}
}

func TestUpdateUnrelatedEditDoesNotReduceSurvival(t *testing.T) {
	original := "xx"
	tracked := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(1, 1), "INSERTED"))
	tr := New(original, tracked)

	// an edit entirely before the tracked text: shifts it, doesn't touch it
	followUp := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(0, 0), "prefix-"))
	tr.Update(followUp)

	if tr.Survived() != tr.Original() {
		t.Fatalf("unrelated edit reduced survival: survived=%d original=%d", tr.Survived(), tr.Original())
	}
}

// TestSurvivalIsMonotonic exercises P9: surviving count never exceeds the
// original count, and once it hits zero it cannot recover.
func TestSurvivalIsMonotonic(t *testing.T) {
	original := "0123456789"
	tracked := stredit.New(stredit.NewStringReplacement(stredit.NewOffsetRange(3, 3), "ABCDEFGHIJ"))
	tr := New(original, tracked)

	edits := []stredit.StringReplacement{
		stredit.NewStringReplacement(stredit.NewOffsetRange(3, 5), "xx"),
		stredit.NewStringReplacement(stredit.NewOffsetRange(0, 0), "prefix"),
		stredit.NewStringReplacement(stredit.NewOffsetRange(5, 13), "yyy"),
		stredit.NewStringReplacement(stredit.NewOffsetRange(0, 40), "wipe everything"),
		stredit.NewStringReplacement(stredit.NewOffsetRange(0, 0), "more"),
	}

	prev := tr.Survived()
	hitZero := false
	for _, e := range edits {
		tr.Update(stredit.New(e))
		cur := tr.Survived()
		if cur > prev {
			t.Fatalf("survival increased: prev=%d cur=%d", prev, cur)
		}
		if cur > tr.Original() {
			t.Fatalf("survival exceeded original: cur=%d original=%d", cur, tr.Original())
		}
		if hitZero && cur != 0 {
			t.Fatalf("survival recovered from zero: cur=%d", cur)
		}
		if cur == 0 {
			hitZero = true
		}
		prev = cur
	}
	if !hitZero {
		t.Fatalf("expected the wipe-everything edit to drive survival to zero")
	}
}

func TestFourGramSimilarityIdentical(t *testing.T) {
	if s := FourGramSimilarity("hello world", "hello world"); s != 1 {
		t.Fatalf("FourGramSimilarity(identical) = %v, want 1", s)
	}
}

func TestFourGramSimilarityDisjoint(t *testing.T) {
	if s := FourGramSimilarity("aaaa", "bbbb"); s != 0 {
		t.Fatalf("FourGramSimilarity(disjoint) = %v, want 0", s)
	}
}

func TestFourGramSimilarityShortStrings(t *testing.T) {
	if s := FourGramSimilarity("ab", "ab"); s != 1 {
		t.Fatalf("short equal strings: got %v, want 1", s)
	}
	if s := FourGramSimilarity("ab", "cd"); s != 0 {
		t.Fatalf("short unequal strings: got %v, want 0", s)
	}
}

func TestFourGramSimilarityPartialOverlap(t *testing.T) {
	s := FourGramSimilarity("abcdefgh", "abcdXYZh")
	if s <= 0 || s >= 1 {
		t.Fatalf("expected a partial score strictly between 0 and 1, got %v", s)
	}
}
