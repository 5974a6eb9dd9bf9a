// Package rebase implements the three-way rebase of an annotated assistant
// edit across a concurrent user edit. It is the hard part of
// nextedit: given a snapshot T, an "our" edit O (the assistant's
// suggestion, possibly split into finer detailed replacements) and a
// concurrent "base" edit U (what the user typed since T), it decides
// whether O can still be applied — possibly reshaped — against T_user, or
// must be discarded as a conflict.
package rebase

import (
	"fmt"
	"strings"

	"github.com/alantheprice/nextedit/pkg/refiner"
	"github.com/alantheprice/nextedit/pkg/stredit"
	"github.com/alantheprice/nextedit/pkg/utils"
)

// Mode selects the rebaser's conflict-resolution strictness.
type Mode int

const (
	// Strict rejects on any ambiguity; used when applying suggestions.
	Strict Mode = iota
	// Lenient accepts best-effort alignments; used to suppress
	// rejected-twin suggestions.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// Options carries the rebaser's tunable thresholds.
type Options struct {
	MaxAgreementOffset         int
	MaxImperfectAgreementLength int
	RefinerOptions             refiner.Options
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxAgreementOffset:          10,
		MaxImperfectAgreementLength: 5,
		RefinerOptions:              refiner.DefaultOptions(),
	}
}

// Tracer is the outbound "tracing sink" contract: a single
// diagnostic method that never affects behavior.
type Tracer interface {
	Trace(message string)
}

// NoopTracer discards every trace message.
type NoopTracer struct{}

// Trace implements Tracer.
func (NoopTracer) Trace(string) {}

// OutcomeKind distinguishes the five outcomes a rebase call can produce
// a rebase call can produce.
type OutcomeKind int

const (
	// OutcomeOK means Edits holds the (possibly empty) rebased result.
	OutcomeOK OutcomeKind = iota
	// OutcomeOutsideEditWindow means the cursor left the suggestion's
	// edit window.
	OutcomeOutsideEditWindow
	// OutcomeRebaseFailed means a structural conflict was found.
	OutcomeRebaseFailed
	// OutcomeInconsistentEdits means userEditSince didn't reproduce the
	// current document, or the regrouped result didn't reproduce the
	// original suggestion under the strict consistency check.
	OutcomeInconsistentEdits
	// OutcomeError means an unexpected internal failure occurred; it
	// must be treated as retryable externally, never as a user-facing
	// bug.
	OutcomeError
)

// RebasedEdit pairs a rebased replacement (in current-document
// coordinates) with the index of the original coarse edit it reconstructs.
type RebasedEdit struct {
	Edit  stredit.StringReplacement
	Index int
}

// Outcome is the result of one Rebase call. Exactly one interpretation
// applies, selected by Kind.
type Outcome struct {
	Kind  OutcomeKind
	Edits []RebasedEdit
	Err   error
}

// Request is the full input to one rebase call: the rebaser carries no
// state between calls, so every call is fully described by its Request.
type Request struct {
	Snapshot          string
	EditWindow        *stredit.OffsetRange
	OriginalEdits     []stredit.StringReplacement
	DetailedEdits     [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]
	UserEditSince     stredit.StringEdit
	CurrentDoc        string
	CurrentSelection  []stredit.OffsetRange
	Mode              Mode
}

// Rebaser runs the rebase algorithm with a fixed configuration and a
// pluggable diff refiner for detailed-edit backfill.
type Rebaser struct {
	Options Options
	Refiner refiner.DiffRefiner
	Tracer  Tracer
}

// New builds a Rebaser with the given options, defaulting the refiner to
// GoDiffRefiner and the tracer to a no-op sink when not supplied.
func New(opts Options, diffRefiner refiner.DiffRefiner, tracer Tracer) *Rebaser {
	if diffRefiner == nil {
		diffRefiner = refiner.GoDiffRefiner{}
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	return &Rebaser{Options: opts, Refiner: diffRefiner, Tracer: tracer}
}

// Rebase runs the full rebase algorithm end to end: preprocessing, the edit-window
// gate, detailed-edit backfill, the core walk, regrouping, and (in strict
// mode) the consistency check.
func (rb *Rebaser) Rebase(req Request) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			rootCause, ok := r.(error)
			if !ok {
				rootCause = fmt.Errorf("%v", r)
			}
			err := utils.NewRebaseError("Rebase", rootCause)
			rb.Tracer.Trace(utils.FormatError(err))
			outcome = Outcome{Kind: OutcomeError, Err: err}
		}
	}()

	// Precondition: the document observer and the cache
	// must already agree before we try anything else.
	if req.UserEditSince.Apply(req.Snapshot) != req.CurrentDoc {
		return Outcome{Kind: OutcomeInconsistentEdits}
	}

	// §4.3.1 preprocessing.
	userEdit := req.UserEditSince.RemoveCommonSuffixAndPrefix(req.Snapshot)

	// §4.3.2 edit-window gate.
	if req.EditWindow != nil && len(req.CurrentSelection) > 0 {
		mapped, ok := userEdit.ApplyToOffsetRange(*req.EditWindow)
		if !ok || !mapped.ContainsRange(req.CurrentSelection[0]) {
			return Outcome{Kind: OutcomeOutsideEditWindow}
		}
	}

	// §4.3.3 detailed-edit backfill.
	detailed := rb.backfill(req.Snapshot, req.OriginalEdits, req.DetailedEdits)

	// Flatten into one annotated edit Ô; detailed[i]'s replacements all
	// lie within originalEdits[i]'s range, and originalEdits is sorted
	// and disjoint, so the flattened list is already in document order.
	var flat []stredit.AnnotatedReplacement[stredit.EditDataWithIndex]
	for _, group := range detailed {
		flat = append(flat, group...)
	}

	// §4.3.4 core walk.
	walked, ok := rb.walk(req.Snapshot, flat, userEdit.Replacements, req.Mode)
	if !ok {
		return Outcome{Kind: OutcomeRebaseFailed}
	}

	// Translate each surviving splinter into current-document
	// coordinates. The walk has already guaranteed no splinter straddles
	// a user-edit boundary; ApplyToOffsetRange is the pure forward
	// mapping for a range through userEdit (the same machinery the
	// edit-window gate uses above).
	mapped := make([]stredit.AnnotatedReplacement[stredit.EditDataWithIndex], 0, len(walked))
	for _, o := range walked {
		mr, ok := userEdit.ApplyToOffsetRange(o.Replacement.ReplaceRange)
		if !ok {
			err := utils.NewRebaseError("mapSplinterToCurrentDoc", fmt.Errorf("splinter %v straddled a user edit after a successful walk", o.Replacement.ReplaceRange))
			rb.Tracer.Trace(utils.FormatError(err))
			return Outcome{Kind: OutcomeError, Err: err}
		}
		mapped = append(mapped, stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{
			Replacement: stredit.NewStringReplacement(mr, o.Replacement.NewText),
			Data:        o.Data,
		})
	}

	// §4.3.5 regroup by index.
	result := rb.regroup(req.CurrentDoc, mapped, len(req.OriginalEdits))

	// §4.3.6 strict consistency check.
	if req.Mode == Strict && len(result) > 0 {
		if !rb.consistent(req, result) {
			return Outcome{Kind: OutcomeInconsistentEdits}
		}
	}

	return Outcome{Kind: OutcomeOK, Edits: result}
}

// backfill fills in any DetailedEdits entries missing relative to
// OriginalEdits by invoking the refiner against the intermediate document
// produced by applying the preceding originals, then shifting the result
// back into snapshot coordinates.
func (rb *Rebaser) backfill(snapshot string, original []stredit.StringReplacement, given [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]) [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex] {
	out := make([][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex], len(original))
	delta := 0
	intermediate := snapshot
	for i, o := range original {
		shifted := o.Delta(delta)

		if i < len(given) {
			out[i] = given[i]
			intermediate = shifted.Apply(intermediate)
			delta += o.LengthDelta()
			continue
		}

		tag := stredit.EditDataWithIndex{Index: i}
		splinters, ok := refiner.Refine[stredit.EditDataWithIndex](rb.Refiner, intermediate, shifted, tag, rb.Options.RefinerOptions)
		if !ok {
			out[i] = []stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{{Replacement: shifted.Delta(-delta), Data: tag}}
		} else {
			back := make([]stredit.AnnotatedReplacement[stredit.EditDataWithIndex], len(splinters))
			for j, s := range splinters {
				back[j] = stredit.AnnotatedReplacement[stredit.EditDataWithIndex]{
					Replacement: s.Replacement.Delta(-delta),
					Data:        s.Data,
				}
			}
			out[i] = back
		}

		intermediate = shifted.Apply(intermediate)
		delta += o.LengthDelta()
	}
	return out
}

type annRep = stredit.AnnotatedReplacement[stredit.EditDataWithIndex]

// walk implements the core rebase pass: it mutates o's (via
// shift-expansion) in place and validates that every u is either absorbed
// into some o or, in lenient mode, harmlessly skipped. It does not itself
// compute current-document coordinates; Rebase does that afterward via
// ApplyToOffsetRange, which is the correct forward mapping regardless of
// which splinters were touched here.
func (rb *Rebaser) walk(snapshot string, oReps []annRep, uReps []stredit.StringReplacement, mode Mode) ([]annRep, bool) {
	o := make([]annRep, len(oReps))
	copy(o, oReps)

	oi, ui := 0, 0
	for oi < len(o) {
		if ui >= len(uReps) {
			break
		}
		orr := o[oi].Replacement.ReplaceRange
		u := uReps[ui]
		urr := u.ReplaceRange

		// Two insertions at the exact same point are compatible
		// siblings per stredit's own I2 invariant, not an overlap to
		// resolve: both simply apply, in the order userEditSince
		// already establishes (property P7).
		if orr.IsEmpty() && urr.IsEmpty() && orr.Start == urr.Start {
			oi++
			ui++
			continue
		}

		if !orr.ContainsRange(urr) && orr.IntersectsOrTouches(urr) {
			isLast := oi == len(o)-1
			tryExpandLeft(snapshot, &o[oi], u)
			if isLast {
				tryExpandRight(snapshot, &o[oi], u)
			}
			orr = o[oi].Replacement.ReplaceRange
		}

		switch {
		case orr.ContainsRange(urr):
			if len(o[oi].Replacement.NewText) < len(u.NewText) {
				return nil, false
			}
			newUi, ok := rb.absorb(snapshot, &o[oi], uReps, ui, mode)
			if !ok {
				return nil, false
			}
			ui = newUi
			oi++
		case orr.IntersectsOrTouches(urr):
			// Overlaps but isn't contained even after shift
			// expansion: a genuine conflict.
			return nil, false
		case orr.EndExclusive <= urr.Start:
			// Disjoint, o first.
			oi++
		default:
			// Disjoint, u first.
			if mode == Strict {
				return nil, false
			}
			ui++
		}
	}

	if oi >= len(o) && ui < len(uReps) {
		if mode == Strict {
			return nil, false
		}
	}

	return o, true
}

// absorb consumes one or more consecutive u's fully contained in o[oi],
// validating the agreement-offset thresholds in strict mode. It returns
// the new u-cursor position.
func (rb *Rebaser) absorb(snapshot string, o *annRep, uReps []stredit.StringReplacement, ui int, mode Mode) (int, bool) {
	orr := o.Replacement.ReplaceRange
	searchFrom := 0
	prevEnd := -1

	for ui < len(uReps) {
		u := uReps[ui]
		if !orr.ContainsRange(u.ReplaceRange) {
			break
		}

		needle := u.NewText
		if prevEnd >= 0 && u.ReplaceRange.Start > prevEnd {
			needle = snapshot[prevEnd:u.ReplaceRange.Start] + u.NewText
		}

		idx := strings.Index(o.Replacement.NewText[searchFrom:], needle)
		if idx < 0 {
			return ui, false
		}
		j := searchFrom + idx

		if mode == Strict {
			if j > rb.Options.MaxAgreementOffset {
				return ui, false
			}
			if j > 0 && len(u.NewText) > rb.Options.MaxImperfectAgreementLength {
				return ui, false
			}
		}

		searchFrom = j + len(needle)
		prevEnd = u.ReplaceRange.EndExclusive
		ui++
	}

	return ui, true
}

// tryExpandLeft grows o leftward to swallow u when the gap text between
// them equals o's NewText prefix.
func tryExpandLeft(snapshot string, o *annRep, u stredit.StringReplacement) {
	orr := o.Replacement.ReplaceRange
	if orr.Start <= u.ReplaceRange.Start {
		return
	}
	gapLen := orr.Start - u.ReplaceRange.Start
	nt := o.Replacement.NewText
	if gapLen > len(nt) {
		return
	}
	gapText := snapshot[u.ReplaceRange.Start:orr.Start]
	if nt[:gapLen] != gapText {
		return
	}
	o.Replacement.ReplaceRange.Start = u.ReplaceRange.Start
	o.Replacement.NewText = nt[:len(nt)-gapLen]
}

// tryExpandRight grows o rightward to swallow u when the gap text between
// them equals o's NewText suffix. Only the last o is
// ever offered right-expansion; a middle o is left alone because it might
// need to merge with a following o instead (an intentionally unimplemented
// case, intentionally left unimplemented — that surfaces as rebaseFailed).
func tryExpandRight(snapshot string, o *annRep, u stredit.StringReplacement) {
	orr := o.Replacement.ReplaceRange
	if orr.EndExclusive >= u.ReplaceRange.EndExclusive {
		return
	}
	gapLen := u.ReplaceRange.EndExclusive - orr.EndExclusive
	nt := o.Replacement.NewText
	if gapLen > len(nt) {
		return
	}
	gapText := snapshot[orr.EndExclusive:u.ReplaceRange.EndExclusive]
	if nt[len(nt)-gapLen:] != gapText {
		return
	}
	o.Replacement.ReplaceRange.EndExclusive = u.ReplaceRange.EndExclusive
	o.Replacement.NewText = nt[gapLen:]
}

// regroup groups surviving splinters by their
// original index, fill gaps between adjacent splinters of the same group
// with verbatim current-document text, and drop groups that canonicalize
// to empty.
func (rb *Rebaser) regroup(currentDoc string, reps []annRep, numOriginal int) []RebasedEdit {
	groups := make(map[int][]stredit.StringReplacement, numOriginal)
	order := make([]int, 0, numOriginal)
	for _, r := range reps {
		idx := r.Data.Index
		if _, seen := groups[idx]; !seen {
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], r.Replacement)
	}

	var out []RebasedEdit
	for _, idx := range order {
		g := groups[idx]
		start := g[0].ReplaceRange.Start
		end := g[len(g)-1].ReplaceRange.EndExclusive

		var text strings.Builder
		text.WriteString(g[0].NewText)
		for k := 1; k < len(g); k++ {
			text.WriteString(currentDoc[g[k-1].ReplaceRange.EndExclusive:g[k].ReplaceRange.Start])
			text.WriteString(g[k].NewText)
		}

		candidate := stredit.NewStringReplacement(stredit.NewOffsetRange(start, end), text.String())
		canon := candidate.RemoveCommonSuffixAndPrefix(currentDoc)
		if canon.IsEmpty() {
			continue
		}
		out = append(out, RebasedEdit{Edit: canon, Index: idx})
	}
	return out
}

// consistent checks that applying the regrouped edit to the
// current document must reproduce applying the original coarse suggestion
// to the snapshot.
func (rb *Rebaser) consistent(req Request, result []RebasedEdit) bool {
	reps := make([]stredit.StringReplacement, len(result))
	for i, r := range result {
		reps[i] = r.Edit
	}
	got := stredit.New(reps...).Apply(req.CurrentDoc)

	want := stredit.New(req.OriginalEdits...).Apply(req.Snapshot)
	return got == want
}
