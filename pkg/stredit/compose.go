package stredit

import (
	"math"
	"strings"
)

// segment is one piece of the text produced by applying an edit: either a
// run that passed through unedited (replaced == false) or the image of one
// of the edit's own replacements (replaced == true, text holds its NewText).
// Segments are built once per Compose call and used to translate the
// second edit's ranges back into the first edit's input coordinates.
type segment struct {
	image     OffsetRange
	origStart int
	origEnd   int
	replaced  bool
	text      string
}

func (s segment) gapOffset() int {
	return s.image.Start - s.origStart
}

func buildSegments(e StringEdit) []segment {
	segs := make([]segment, 0, len(e.Replacements)*2+1)
	delta := 0
	pos0 := 0
	for _, r := range e.Replacements {
		imgStart := r.ReplaceRange.Start + delta
		if r.ReplaceRange.Start > pos0 {
			segs = append(segs, segment{
				image:     OffsetRange{Start: pos0 + delta, EndExclusive: imgStart},
				origStart: pos0,
				origEnd:   r.ReplaceRange.Start,
			})
		}
		imgEnd := imgStart + len(r.NewText)
		segs = append(segs, segment{
			image:     OffsetRange{Start: imgStart, EndExclusive: imgEnd},
			origStart: r.ReplaceRange.Start,
			origEnd:   r.ReplaceRange.EndExclusive,
			replaced:  true,
			text:      r.NewText,
		})
		delta += r.LengthDelta()
		pos0 = r.ReplaceRange.EndExclusive
	}
	segs = append(segs, segment{
		image:     OffsetRange{Start: pos0 + delta, EndExclusive: math.MaxInt / 2},
		origStart: pos0,
		origEnd:   math.MaxInt / 2,
	})
	return segs
}

// locateStart advances si to the segment containing pos, preferring the
// following segment when pos sits exactly on a boundary (so a pure
// insertion at a boundary attaches to whatever starts there).
func locateStart(segs []segment, si, pos int) int {
	for si < len(segs)-1 && segs[si].image.EndExclusive <= pos {
		si++
	}
	return si
}

// locateEnd advances si to the segment containing the point just before
// pos (pos is an exclusive end), preferring the preceding segment at a
// boundary.
func locateEnd(segs []segment, si, pos int) int {
	for si < len(segs)-1 && segs[si].image.EndExclusive < pos {
		si++
	}
	return si
}

type touch struct {
	rep      StringReplacement
	startIdx int
	endIdx   int
}

// Compose returns the edit equivalent to applying e and then other, i.e.
// other.Apply(e.Apply(text)) == e.Compose(other).Apply(text) for any text
// e and other are valid over.
//
// other's ranges are given in the coordinates of e's output text. Where
// other overlaps the image of one of e's replacements, the overlapping
// part is folded into that replacement's NewText; where it falls in
// untouched text it becomes its own standalone replacement translated back
// to e's input coordinates.
func (e StringEdit) Compose(other StringEdit) StringEdit {
	if other.IsEmpty() {
		return e
	}
	if e.IsEmpty() {
		return other
	}

	segs := buildSegments(e)

	touches := make([]touch, len(other.Replacements))
	si := 0
	for i, r := range other.Replacements {
		if r.ReplaceRange.IsEmpty() {
			si = locateStart(segs, si, r.ReplaceRange.Start)
			touches[i] = touch{rep: r, startIdx: si, endIdx: si}
			continue
		}
		start := locateStart(segs, si, r.ReplaceRange.Start)
		end := locateEnd(segs, start, r.ReplaceRange.EndExclusive)
		touches[i] = touch{rep: r, startIdx: start, endIdx: end}
		si = end
	}

	var out []StringReplacement
	i, segIdx := 0, 0
	emitUntouched := func(upTo int) {
		for ; segIdx < upTo; segIdx++ {
			if segs[segIdx].replaced {
				out = append(out, StringReplacement{
					ReplaceRange: OffsetRange{Start: segs[segIdx].origStart, EndExclusive: segs[segIdx].origEnd},
					NewText:      segs[segIdx].text,
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
		out = append(out, composeGroup(segs, touches[i:j+1], lo, hi))
		segIdx = hi + 1
		i = j + 1
	}
	emitUntouched(len(segs))

	return New(out...)
}

func composeGroup(segs []segment, group []touch, lo, hi int) StringReplacement {
	first := segs[lo]
	last := segs[hi]

	var origStart, origEnd int
	if first.replaced {
		origStart = first.origStart
	} else {
		origStart = group[0].rep.ReplaceRange.Start - first.gapOffset()
	}
	if last.replaced {
		origEnd = last.origEnd
	} else {
		origEnd = group[len(group)-1].rep.ReplaceRange.EndExclusive - last.gapOffset()
	}

	var text strings.Builder
	if first.replaced {
		localStart := group[0].rep.ReplaceRange.Start - first.image.Start
		text.WriteString(first.text[:localStart])
	}
	for gi, t := range group {
		if gi > 0 {
			prev := group[gi-1]
			seg := segs[prev.endIdx]
			if seg.replaced {
				from := prev.rep.ReplaceRange.EndExclusive - seg.image.Start
				to := t.rep.ReplaceRange.Start - seg.image.Start
				text.WriteString(seg.text[from:to])
			}
		}
		text.WriteString(t.rep.NewText)
	}
	if last.replaced {
		localEnd := group[len(group)-1].rep.ReplaceRange.EndExclusive - last.image.Start
		text.WriteString(last.text[localEnd:])
	}

	return StringReplacement{
		ReplaceRange: OffsetRange{Start: origStart, EndExclusive: origEnd},
		NewText:      text.String(),
	}
}
