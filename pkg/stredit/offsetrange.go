// Package stredit implements the byte-string edit algebra: half-open offset
// ranges, atomic replacements, ordered non-overlapping edits, and an
// annotated variant whose replacements carry a join-capable payload.
package stredit

import (
	"fmt"

	"github.com/alantheprice/nextedit/pkg/utils"
)

// OffsetRange is a half-open interval [Start, EndExclusive) over byte
// offsets of some base string.
type OffsetRange struct {
	Start        int
	EndExclusive int
}

// NewOffsetRange constructs a range, panicking if start > end since that is
// always a programming error in this package.
func NewOffsetRange(start, endExclusive int) OffsetRange {
	if start > endExclusive {
		panic(utils.NewValidationError("OffsetRange", fmt.Sprintf("invalid range [%d, %d)", start, endExclusive)))
	}
	return OffsetRange{Start: start, EndExclusive: endExclusive}
}

// Length returns EndExclusive - Start.
func (r OffsetRange) Length() int {
	return r.EndExclusive - r.Start
}

// IsEmpty reports whether the range has zero length.
func (r OffsetRange) IsEmpty() bool {
	return r.Length() == 0
}

// ContainsRange reports whether r fully contains other.
func (r OffsetRange) ContainsRange(other OffsetRange) bool {
	return r.Start <= other.Start && other.EndExclusive <= r.EndExclusive
}

// ContainsOffset reports whether offset falls within [Start, EndExclusive).
func (r OffsetRange) ContainsOffset(offset int) bool {
	return r.Start <= offset && offset < r.EndExclusive
}

// Intersect returns the overlapping sub-range of r and other, and whether
// one exists. Touching ranges (sharing only a boundary point) do not
// intersect.
func (r OffsetRange) Intersect(other OffsetRange) (OffsetRange, bool) {
	start := max(r.Start, other.Start)
	end := min(r.EndExclusive, other.EndExclusive)
	if start >= end {
		return OffsetRange{}, false
	}
	return OffsetRange{Start: start, EndExclusive: end}, true
}

// IntersectsOrTouches reports whether r and other overlap or share a
// boundary point.
func (r OffsetRange) IntersectsOrTouches(other OffsetRange) bool {
	return r.Start <= other.EndExclusive && other.Start <= r.EndExclusive
}

// Delta returns r shifted by n on both endpoints.
func (r OffsetRange) Delta(n int) OffsetRange {
	return OffsetRange{Start: r.Start + n, EndExclusive: r.EndExclusive + n}
}

// DeltaEnd returns r with only EndExclusive shifted by n.
func (r OffsetRange) DeltaEnd(n int) OffsetRange {
	return OffsetRange{Start: r.Start, EndExclusive: r.EndExclusive + n}
}

// Substring returns base[r.Start:r.EndExclusive].
func (r OffsetRange) Substring(base string) string {
	return base[r.Start:r.EndExclusive]
}

func (r OffsetRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.EndExclusive)
}
