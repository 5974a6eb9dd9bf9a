package stredit

import "strings"

// Joiner lets a replacement's annotation be combined with a neighbor's when
// two adjacent annotated replacements are merged into one, e.g. because a
// later edit's replacement straddles both of their images during Compose.
// Join is unconditional: Compose's merge step has already decided the two
// pieces share one output replacement by the time Join runs, so there is no
// way for Join to veto the merge or ask for the pieces to stay separate.
// The only Joiner in this tree, EditDataWithIndex, never needs to refuse
// (see its own doc comment); a D whose annotations can genuinely disagree
// would need to pre-filter its inputs before calling Compose, since
// disagreement can't be surfaced from inside Join itself.
type Joiner[D any] interface {
	Join(other D) D
}

// AnnotatedReplacement pairs a StringReplacement with a payload describing
// where it came from.
type AnnotatedReplacement[D Joiner[D]] struct {
	Replacement StringReplacement
	Data        D
}

// AnnotatedStringEdit is a StringEdit whose replacements each carry a
// Joiner-capable annotation, so the annotation survives Compose.
type AnnotatedStringEdit[D Joiner[D]] struct {
	Replacements []AnnotatedReplacement[D]
}

// NewAnnotated validates and constructs an annotated edit; see New for the
// I1/I2 invariants enforced.
func NewAnnotated[D Joiner[D]](reps ...AnnotatedReplacement[D]) AnnotatedStringEdit[D] {
	plain := make([]StringReplacement, len(reps))
	for i, r := range reps {
		plain[i] = r.Replacement
	}
	New(plain...) // validates I1/I2, discarding the result
	return AnnotatedStringEdit[D]{Replacements: reps}
}

// ToStringEdit drops the annotations.
func (e AnnotatedStringEdit[D]) ToStringEdit() StringEdit {
	plain := make([]StringReplacement, len(e.Replacements))
	for i, r := range e.Replacements {
		plain[i] = r.Replacement
	}
	return StringEdit{Replacements: plain}
}

// Apply delegates to the underlying StringEdit.
func (e AnnotatedStringEdit[D]) Apply(text string) string {
	return e.ToStringEdit().Apply(text)
}

// IsEmpty reports whether the edit carries no replacements.
func (e AnnotatedStringEdit[D]) IsEmpty() bool {
	return len(e.Replacements) == 0
}

// Compose mirrors StringEdit.Compose but joins
// annotations whenever the merge folds multiple contributing pieces into
// one output replacement. Pieces are joined in left-to-right document
// order: the preserved prefix of a straddled self-replacement (if any),
// then each other-side touch's own data (with any preserved in-between
// literal span attributed to the self-replacement it came from), then the
// preserved suffix (if any). Each self-replacement's data is joined once,
// at the first piece it contributes, even when its text survives on both
// sides of a touch.
func (e AnnotatedStringEdit[D]) Compose(other AnnotatedStringEdit[D]) AnnotatedStringEdit[D] {
	if other.IsEmpty() {
		return e
	}
	if e.IsEmpty() {
		return other
	}

	segs := buildAnnotatedSegments(e)

	touches := make([]annotatedTouch[D], len(other.Replacements))
	si := 0
	for i, r := range other.Replacements {
		rr := r.Replacement.ReplaceRange
		if rr.IsEmpty() {
			si = locateAnnotatedStart(segs, si, rr.Start)
			touches[i] = annotatedTouch[D]{rep: r, startIdx: si, endIdx: si}
			continue
		}
		start := locateAnnotatedStart(segs, si, rr.Start)
		end := locateAnnotatedEnd(segs, start, rr.EndExclusive)
		touches[i] = annotatedTouch[D]{rep: r, startIdx: start, endIdx: end}
		si = end
	}

	var out []AnnotatedReplacement[D]
	i, segIdx := 0, 0
	emitUntouched := func(upTo int) {
		for ; segIdx < upTo; segIdx++ {
			if segs[segIdx].replaced {
				out = append(out, AnnotatedReplacement[D]{
					Replacement: StringReplacement{
						ReplaceRange: OffsetRange{Start: segs[segIdx].origStart, EndExclusive: segs[segIdx].origEnd},
						NewText:      segs[segIdx].text,
					},
					Data: segs[segIdx].data,
				})
			}
		}
	}
	for i < len(touches) {
		j := i
		hi := touches[i].endIdx
		for j+1 < len(touches) {
			next := touches[j+1]
			if next.startIdx > hi {
				break
			}
			sharesReplaced := false
			for k := next.startIdx; k <= hi && k < len(segs); k++ {
				if segs[k].replaced {
					sharesReplaced = true
					break
				}
			}
			if !sharesReplaced {
				break
			}
			if next.endIdx > hi {
				hi = next.endIdx
			}
			j++
		}
		lo := touches[i].startIdx
		emitUntouched(lo)
		out = append(out, composeAnnotatedGroup(segs, touches[i:j+1], lo, hi))
		segIdx = hi + 1
		i = j + 1
	}
	emitUntouched(len(segs))

	plain := make([]StringReplacement, len(out))
	for i, r := range out {
		plain[i] = r.Replacement
	}
	New(plain...)
	return AnnotatedStringEdit[D]{Replacements: out}
}

type annotatedSegment[D Joiner[D]] struct {
	image     OffsetRange
	origStart int
	origEnd   int
	replaced  bool
	text      string
	data      D
}

func (s annotatedSegment[D]) gapOffset() int {
	return s.image.Start - s.origStart
}

func buildAnnotatedSegments[D Joiner[D]](e AnnotatedStringEdit[D]) []annotatedSegment[D] {
	segs := make([]annotatedSegment[D], 0, len(e.Replacements)*2+1)
	delta := 0
	pos0 := 0
	for _, ar := range e.Replacements {
		r := ar.Replacement
		imgStart := r.ReplaceRange.Start + delta
		if r.ReplaceRange.Start > pos0 {
			segs = append(segs, annotatedSegment[D]{
				image:     OffsetRange{Start: pos0 + delta, EndExclusive: imgStart},
				origStart: pos0,
				origEnd:   r.ReplaceRange.Start,
			})
		}
		imgEnd := imgStart + len(r.NewText)
		segs = append(segs, annotatedSegment[D]{
			image:     OffsetRange{Start: imgStart, EndExclusive: imgEnd},
			origStart: r.ReplaceRange.Start,
			origEnd:   r.ReplaceRange.EndExclusive,
			replaced:  true,
			text:      r.NewText,
			data:      ar.Data,
		})
		delta += r.LengthDelta()
		pos0 = r.ReplaceRange.EndExclusive
	}
	segs = append(segs, annotatedSegment[D]{
		image:     OffsetRange{Start: pos0 + delta, EndExclusive: maxIntHalf},
		origStart: pos0,
		origEnd:   maxIntHalf,
	})
	return segs
}

// maxIntHalf stands in for the unbounded trailing gap; kept well below
// math.MaxInt so offset arithmetic on it never overflows.
const maxIntHalf = int(^uint(0)>>1) / 2

type annotatedTouch[D Joiner[D]] struct {
	rep      AnnotatedReplacement[D]
	startIdx int
	endIdx   int
}

// locateAnnotatedStart and locateAnnotatedEnd mirror locateStart/locateEnd
// over annotatedSegment[D]; they can't share code with the plain segment
// versions since Go generics don't let a function range over two
// structurally-identical but distinct types.
func locateAnnotatedStart[D Joiner[D]](segs []annotatedSegment[D], si, pos int) int {
	for si < len(segs)-1 && segs[si].image.EndExclusive <= pos {
		si++
	}
	return si
}

func locateAnnotatedEnd[D Joiner[D]](segs []annotatedSegment[D], si, pos int) int {
	for si < len(segs)-1 && segs[si].image.EndExclusive < pos {
		si++
	}
	return si
}

func composeAnnotatedGroup[D Joiner[D]](segs []annotatedSegment[D], group []annotatedTouch[D], lo, hi int) AnnotatedReplacement[D] {
	first := segs[lo]
	last := segs[hi]

	var origStart, origEnd int
	if first.replaced {
		origStart = first.origStart
	} else {
		origStart = group[0].rep.Replacement.ReplaceRange.Start - first.gapOffset()
	}
	if last.replaced {
		origEnd = last.origEnd
	} else {
		origEnd = group[len(group)-1].rep.Replacement.ReplaceRange.EndExclusive - last.gapOffset()
	}

	var text strings.Builder
	var data D
	dataSet := false
	join := func(d D) {
		if !dataSet {
			data = d
			dataSet = true
			return
		}
		data = data.Join(d)
	}
	// Segments are visited in non-decreasing index order, so remembering the
	// last joined one is enough to join each self-replacement's data once.
	joinedSeg := -1
	joinSeg := func(idx int) {
		if idx == joinedSeg {
			return
		}
		joinedSeg = idx
		join(segs[idx].data)
	}

	if first.replaced {
		localStart := group[0].rep.Replacement.ReplaceRange.Start - first.image.Start
		text.WriteString(first.text[:localStart])
		if localStart > 0 {
			joinSeg(lo)
		}
	}
	for gi, t := range group {
		if gi > 0 {
			prev := group[gi-1]
			seg := segs[prev.endIdx]
			if seg.replaced {
				from := prev.rep.Replacement.ReplaceRange.EndExclusive - seg.image.Start
				to := t.rep.Replacement.ReplaceRange.Start - seg.image.Start
				if to > from {
					text.WriteString(seg.text[from:to])
					joinSeg(prev.endIdx)
				}
			}
		}
		text.WriteString(t.rep.Replacement.NewText)
		join(t.rep.Data)
	}
	if last.replaced {
		localEnd := group[len(group)-1].rep.Replacement.ReplaceRange.EndExclusive - last.image.Start
		text.WriteString(last.text[localEnd:])
		if localEnd < len(last.text) {
			joinSeg(hi)
		}
	}

	return AnnotatedReplacement[D]{
		Replacement: StringReplacement{
			ReplaceRange: OffsetRange{Start: origStart, EndExclusive: origEnd},
			NewText:      text.String(),
		},
		Data: data,
	}
}

// EditDataWithIndex tags a detailed (refined) replacement with the index of
// the coarse replacement it was expanded from, so the rebaser can regroup
// its output back into per-coarse-edit batches after the core walk.
type EditDataWithIndex struct {
	Index int
}

// Join keeps the index of the first piece, trusting that both sides agree.
// In practice this Joiner only exercises AnnotatedStringEdit.Compose's
// generic merge path in stredit's own tests: pkg/rebase, the one package
// that produces EditDataWithIndex values, never calls Compose on them.
// Compose implements sequential composition (apply self, then other, where
// other's ranges are coordinates of self's output) — the wrong operation
// for rebase's detailed-edit backfill, which instead merges several
// disjoint per-original-index replacement groups that all already share
// one base text (the snapshot); running them through Compose would
// misread later groups' snapshot offsets as offsets into an earlier
// group's output. Rebase flattens them with a plain concatenation instead
// (see rebase.go), which is correct precisely because the groups are
// disjoint and already sorted, so Join's indices never actually need to
// disagree here.
func (d EditDataWithIndex) Join(other EditDataWithIndex) EditDataWithIndex {
	return d
}
