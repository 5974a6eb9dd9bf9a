package rebase

import (
	"testing"

	"github.com/alantheprice/nextedit/pkg/stredit"
)

func detail(r stredit.StringReplacement, idx int) []stredit.AnnotatedReplacement[stredit.EditDataWithIndex] {
	return []stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{
		{Replacement: r, Data: stredit.EditDataWithIndex{Index: idx}},
	}
}

// assertSound checks property P5: applying the rebased result to the
// current document reproduces applying the original suggestion to the
// snapshot.
func assertSound(t *testing.T, snapshot string, original []stredit.StringReplacement, currentDoc string, out Outcome) {
	t.Helper()
	if out.Kind != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v (err=%v)", out.Kind, out.Err)
	}
	reps := make([]stredit.StringReplacement, len(out.Edits))
	for i, e := range out.Edits {
		reps[i] = e.Edit
	}
	got := stredit.New(reps...).Apply(currentDoc)
	want := stredit.New(original...).Apply(snapshot)
	if got != want {
		t.Fatalf("rebase unsound:\n got=%q\nwant=%q", got, want)
	}
}

func TestRebaseAbsorptionDropsAlreadyTypedEdit(t *testing.T) {
	snapshot := "add(a, b)"
	o := stredit.NewStringReplacement(stredit.NewOffsetRange(3, 9), "(a, b, c)")
	u := stredit.NewStringReplacement(stredit.NewOffsetRange(8, 8), ", c")
	currentDoc := stredit.New(u).Apply(snapshot)

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o, 0)},
		UserEditSince: stredit.New(u),
		CurrentDoc:    currentDoc,
		Mode:          Strict,
	})

	if out.Kind != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", out.Kind)
	}
	if len(out.Edits) != 0 {
		t.Fatalf("expected the already-typed edit to canonicalize to empty, got %v", out.Edits)
	}
}

func TestRebaseTwoEditsOneAbsorbedOneSurvives(t *testing.T) {
	snapshot := "add(a, b) { return a+b; }"
	o0 := stredit.NewStringReplacement(stredit.NewOffsetRange(3, 9), "(a, b, c)")
	o1 := stredit.NewStringReplacement(stredit.NewOffsetRange(19, 22), "a + b + c")
	u0 := stredit.NewStringReplacement(stredit.NewOffsetRange(8, 8), ", c")
	currentDoc := stredit.New(u0).Apply(snapshot)

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o0, o1},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o0, 0), detail(o1, 1)},
		UserEditSince: stredit.New(u0),
		CurrentDoc:    currentDoc,
		Mode:          Strict,
	})

	assertSound(t, snapshot, []stredit.StringReplacement{o0, o1}, currentDoc, out)
	if len(out.Edits) != 1 || out.Edits[0].Index != 1 {
		t.Fatalf("expected only index 1 to survive, got %+v", out.Edits)
	}
}

func TestRebaseConflictOnPartialOverlap(t *testing.T) {
	snapshot := "helloworld123"
	o := stredit.NewStringReplacement(stredit.NewOffsetRange(0, 5), "HELLO")
	u := stredit.NewStringReplacement(stredit.NewOffsetRange(3, 8), "xyz")
	currentDoc := stredit.New(u).Apply(snapshot)

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o, 0)},
		UserEditSince: stredit.New(u),
		CurrentDoc:    currentDoc,
		Mode:          Strict,
	})

	if out.Kind != OutcomeRebaseFailed {
		t.Fatalf("expected RebaseFailed, got %v", out.Kind)
	}
}

func TestRebaseStrictRejectsTrailingUnmatchedUserEdit(t *testing.T) {
	snapshot := "abcdefghij"
	o := stredit.NewStringReplacement(stredit.NewOffsetRange(2, 3), "C")
	u := stredit.NewStringReplacement(stredit.NewOffsetRange(7, 8), "H")
	currentDoc := stredit.New(u).Apply(snapshot)

	req := Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o, 0)},
		UserEditSince: stredit.New(u),
		CurrentDoc:    currentDoc,
	}

	rb := New(DefaultOptions(), nil, nil)

	req.Mode = Strict
	if out := rb.Rebase(req); out.Kind != OutcomeRebaseFailed {
		t.Fatalf("strict: expected RebaseFailed for an unmatched trailing user edit, got %v", out.Kind)
	}

	req.Mode = Lenient
	out := rb.Rebase(req)
	if out.Kind != OutcomeOK || len(out.Edits) != 1 || out.Edits[0].Index != 0 {
		t.Fatalf("lenient: expected index 0 to survive, got %v %+v", out.Kind, out.Edits)
	}
	// Lenient mode leaves u's own, disjoint, unmatched edit in place rather
	// than reverting it, so P5's usual comparison against applying only o
	// to the pristine snapshot doesn't apply here; the sound comparison is
	// against applying both o and u together.
	got := stredit.New(out.Edits[0].Edit).Apply(currentDoc)
	want := stredit.New(o, u).Apply(snapshot)
	if got != want {
		t.Fatalf("lenient result unsound:\n got=%q\nwant=%q", got, want)
	}
}

// TestRebaseBackfillsMissingDetailedEdits exercises §4.3.3: with no
// DetailedEdits supplied at all, Rebase must invoke the refiner itself
// (cmd/rebase's JSON format never carries detailedEdits, so this is the
// path every real CLI invocation actually takes) and still produce a sound
// result. The refiner's line-then-char diff strips the common "foo_" prefix
// and "_baz" suffix, leaving a single inner replacement of "bar" with "qux"
// that the user's own partial retype absorbs.
func TestRebaseBackfillsMissingDetailedEdits(t *testing.T) {
	snapshot := "foo_bar_baz"
	o := stredit.NewStringReplacement(stredit.NewOffsetRange(0, 11), "foo_qux_baz")
	u := stredit.NewStringReplacement(stredit.NewOffsetRange(4, 5), "q")
	currentDoc := stredit.New(u).Apply(snapshot)

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o},
		UserEditSince: stredit.New(u),
		CurrentDoc:    currentDoc,
		Mode:          Strict,
	})

	assertSound(t, snapshot, []stredit.StringReplacement{o}, currentDoc, out)
	if len(out.Edits) != 1 || out.Edits[0].Index != 0 {
		t.Fatalf("expected a single surviving edit at index 0, got %+v", out.Edits)
	}
	if out.Edits[0].Edit.ReplaceRange != stredit.NewOffsetRange(5, 7) || out.Edits[0].Edit.NewText != "ux" {
		t.Fatalf("expected the refined splinter to canonicalize to [5,7)->%q, got %v", "ux", out.Edits[0].Edit)
	}
}

// TestRebaseBackfillsTruncatedDetailedEdits exercises the same §4.3.3 path
// when DetailedEdits covers only a prefix of OriginalEdits: index 0 is
// given explicitly, index 1 is missing and must be backfilled. Index 1 is a
// pure insertion the user edit never touches, so its backfilled splinter is
// the refiner's trivial case (an empty original side) and should survive
// byte-for-byte.
func TestRebaseBackfillsTruncatedDetailedEdits(t *testing.T) {
	snapshot := "foo_bar_baz() { more(); }"
	o0 := stredit.NewStringReplacement(stredit.NewOffsetRange(0, 11), "foo_qux_baz")
	o1 := stredit.NewStringReplacement(stredit.NewOffsetRange(23, 23), " extra();")
	u0 := stredit.NewStringReplacement(stredit.NewOffsetRange(4, 5), "q")
	currentDoc := stredit.New(u0).Apply(snapshot)

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o0, o1},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o0, 0)},
		UserEditSince: stredit.New(u0),
		CurrentDoc:    currentDoc,
		Mode:          Strict,
	})

	assertSound(t, snapshot, []stredit.StringReplacement{o0, o1}, currentDoc, out)
	if len(out.Edits) != 2 {
		t.Fatalf("expected both edits to survive, got %+v", out.Edits)
	}
	if out.Edits[1].Index != 1 || out.Edits[1].Edit.ReplaceRange != stredit.NewOffsetRange(23, 23) || out.Edits[1].Edit.NewText != " extra();" {
		t.Fatalf("expected the backfilled pure insertion to survive unchanged, got %+v", out.Edits[1])
	}
}

func TestRebaseOutsideEditWindow(t *testing.T) {
	snapshot := "0123456789"
	rb := New(DefaultOptions(), nil, nil)
	window := stredit.NewOffsetRange(2, 5)
	out := rb.Rebase(Request{
		Snapshot:         snapshot,
		EditWindow:       &window,
		UserEditSince:    stredit.Empty,
		CurrentDoc:       snapshot,
		CurrentSelection: []stredit.OffsetRange{stredit.NewOffsetRange(8, 8)},
		Mode:             Strict,
	})
	if out.Kind != OutcomeOutsideEditWindow {
		t.Fatalf("expected OutsideEditWindow, got %v", out.Kind)
	}
}

func TestRebaseInconsistentPrecondition(t *testing.T) {
	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      "abc",
		UserEditSince: stredit.Empty,
		CurrentDoc:    "xyz",
		Mode:          Strict,
	})
	if out.Kind != OutcomeInconsistentEdits {
		t.Fatalf("expected InconsistentEdits, got %v", out.Kind)
	}
}

// TestRebaseTiedInsertionsStack exercises P7: when O and U insert the
// identical text at the identical point, the two are compatible siblings
// (per stredit's own touching-insertions invariant), not an overlap to
// absorb away, so both survive. The strict consistency check (§4.3.6)
// compares against applying the original suggestion to the untouched
// snapshot, which by construction differs once a sibling insertion is
// folded in; this property is exercised in lenient mode instead, where no
// such check runs.
func TestRebaseTiedInsertionsStack(t *testing.T) {
	snapshot := "ab"
	o := stredit.NewStringReplacement(stredit.NewOffsetRange(1, 1), "X")
	u := stredit.NewStringReplacement(stredit.NewOffsetRange(1, 1), "X")
	currentDoc := stredit.New(u).Apply(snapshot)
	if currentDoc != "aXb" {
		t.Fatalf("setup: currentDoc = %q", currentDoc)
	}

	rb := New(DefaultOptions(), nil, nil)
	out := rb.Rebase(Request{
		Snapshot:      snapshot,
		OriginalEdits: []stredit.StringReplacement{o},
		DetailedEdits: [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{detail(o, 0)},
		UserEditSince: stredit.New(u),
		CurrentDoc:    currentDoc,
		Mode:          Lenient,
	})

	if out.Kind != OutcomeOK || len(out.Edits) != 1 {
		t.Fatalf("expected a single surviving sibling insertion, got %v %+v", out.Kind, out.Edits)
	}
	final := stredit.New(out.Edits[0].Edit).Apply(currentDoc)
	if final != "aXXb" {
		t.Fatalf("expected O stacked once on top of U, got %q", final)
	}
}
