package stredit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetRangeBasics(t *testing.T) {
	r := NewOffsetRange(3, 7)
	assert.Equal(t, 4, r.Length())
	assert.False(t, r.IsEmpty())
	assert.True(t, NewOffsetRange(5, 5).IsEmpty())
}

func TestOffsetRangeContains(t *testing.T) {
	r := NewOffsetRange(10, 20)
	assert.True(t, r.ContainsRange(NewOffsetRange(12, 18)))
	assert.False(t, r.ContainsRange(NewOffsetRange(5, 15)))
	assert.True(t, r.ContainsOffset(10))
	assert.False(t, r.ContainsOffset(20))
}

func TestOffsetRangeIntersect(t *testing.T) {
	a := NewOffsetRange(0, 10)
	b := NewOffsetRange(5, 15)
	got, ok := a.Intersect(b)
	assert.True(t, ok)
	assert.Equal(t, OffsetRange{Start: 5, EndExclusive: 10}, got)

	c := NewOffsetRange(10, 20)
	_, ok = a.Intersect(c)
	assert.False(t, ok, "touching ranges should not intersect")
	assert.True(t, a.IntersectsOrTouches(c), "touching ranges should report IntersectsOrTouches")
}

func TestOffsetRangeDelta(t *testing.T) {
	r := NewOffsetRange(5, 10)
	assert.Equal(t, OffsetRange{Start: 8, EndExclusive: 13}, r.Delta(3))
	assert.Equal(t, OffsetRange{Start: 5, EndExclusive: 13}, r.DeltaEnd(3))
}

func TestOffsetRangeSubstring(t *testing.T) {
	assert.Equal(t, "ell", NewOffsetRange(1, 4).Substring("hello"))
}
