// Package refiner turns a single coarse (range, newText) replacement into a
// finer-grained sequence of replacements covering the same span, using a
// line-level diff followed by a character-level diff inside each changed
// line run. Composing the finer replacements reproduces the
// coarse one bytewise; the rebaser (pkg/rebase) uses the finer grain to
// track which part of a user's concurrent edit still agrees with an
// assistant suggestion.
package refiner

import (
	"strings"
	"time"

	"github.com/alantheprice/nextedit/pkg/stredit"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Options controls the diff run. Defaults match
// {ignoreTrimWhitespace=false, computeMoves=false, extendToSubwords=true,
// maxComputationTimeMs=500}.
type Options struct {
	IgnoreTrimWhitespace bool
	ComputeMoves         bool // not supported; retained for interface parity, always false
	ExtendToSubwords      bool
	MaxComputationTime   time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		IgnoreTrimWhitespace: false,
		ComputeMoves:         false,
		ExtendToSubwords:     true,
		MaxComputationTime:   500 * time.Millisecond,
	}
}

// LineRange is a half-open, 1-based line interval, per the diff
// refiner contract.
type LineRange struct {
	StartLineNumber      int
	EndLineNumberExclusive int
}

// Range is a half-open, 1-based line+column interval within a single diff
// block.
type Range struct {
	StartLineNumber int
	StartColumn     int
	EndLineNumber   int
	EndColumn       int
}

// InnerChange is a character-granular change nested inside a line Change.
type InnerChange struct {
	OriginalRange Range
	ModifiedRange Range
}

// Change is one line-granular diff hunk, optionally refined into
// InnerChanges.
type Change struct {
	OriginalRange LineRange
	ModifiedRange LineRange
	InnerChanges  []InnerChange
}

// Result is the outbound "diff refiner" contract.
type Result struct {
	Changes    []Change
	HitTimeout bool
}

// DiffRefiner is the pluggable capability this package describes: "any
// competitive implementation of Myers/Histogram diff with line-then-inner
// char ranges satisfies the contract; determinism and a timeout signal are
// required."
type DiffRefiner interface {
	Diff(originalLines, modifiedLines []string, opts Options) (Result, error)
}

// GoDiffRefiner implements DiffRefiner on top of sergi/go-diff, the same
// diffing library ledit's editor package uses for its three-way merge
// (pkg/editor reference, now absorbed here and in pkg/rebase).
type GoDiffRefiner struct{}

// Diff runs a line-level Myers diff (via diffmatchpatch's line-hashing
// mode) and then, for every contiguous run of changed lines, a
// character-level diff to produce InnerChanges. It respects
// opts.MaxComputationTime as a wall-clock budget shared across both passes;
// exceeding it reports HitTimeout instead of a partial result.
func (GoDiffRefiner) Diff(originalLines, modifiedLines []string, opts Options) (Result, error) {
	deadline := time.Now().Add(budgetOrDefault(opts.MaxComputationTime))

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = time.Until(deadline)
	if dmp.DiffTimeout <= 0 {
		return Result{HitTimeout: true}, nil
	}

	origJoined := strings.Join(originalLines, "\n")
	modJoined := strings.Join(modifiedLines, "\n")

	chars1, chars2, lineArray := dmp.DiffLinesToChars(origJoined, modJoined)
	lineDiffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs = dmp.DiffCharsToLines(lineDiffs, lineArray)

	if time.Now().After(deadline) {
		return Result{HitTimeout: true}, nil
	}

	changes := groupLineDiffs(lineDiffs)

	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if time.Now().After(deadline) {
			return Result{HitTimeout: true}, nil
		}
		if c.OriginalRange.StartLineNumber == c.OriginalRange.EndLineNumberExclusive ||
			c.ModifiedRange.StartLineNumber == c.ModifiedRange.EndLineNumberExclusive {
			// A pure whole-line insertion or deletion: one side has no
			// lines to refine against, and diffing the bare line content
			// would drop the newline separating it from its neighbors.
			// Leave InnerChanges empty so Refine falls back to the
			// whole-line-range boundaries, which still carry it.
			out = append(out, c)
			continue
		}
		origBlock := strings.Join(originalLines[c.OriginalRange.StartLineNumber-1:c.OriginalRange.EndLineNumberExclusive-1], "\n")
		modBlock := strings.Join(modifiedLines[c.ModifiedRange.StartLineNumber-1:c.ModifiedRange.EndLineNumberExclusive-1], "\n")

		inner := dmp.DiffMain(origBlock, modBlock, true)
		if opts.ExtendToSubwords {
			inner = dmp.DiffCleanupSemantic(inner)
		}
		c.InnerChanges = innerChangesFromCharDiff(inner, c.OriginalRange.StartLineNumber, c.ModifiedRange.StartLineNumber)
		out = append(out, c)
	}

	return Result{Changes: out}, nil
}

// budgetOrDefault treats an unset (zero) budget as "use the documented default";
// a negative budget is a deliberate request to treat the deadline as
// already passed (used by callers/tests to force an immediate timeout).
func budgetOrDefault(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultOptions().MaxComputationTime
	}
	return d
}

// lineCount returns how many "\n"-joined lines t spans, given t is itself a
// concatenation of whole lines from DiffCharsToLines (each terminated by
// "\n" except possibly the very last line of the whole document).
func lineCount(t string) int {
	if t == "" {
		return 0
	}
	parts := strings.Split(t, "\n")
	if parts[len(parts)-1] == "" {
		return len(parts) - 1
	}
	return len(parts)
}

func groupLineDiffs(diffs []diffmatchpatch.Diff) []Change {
	var changes []Change
	origLine, modLine := 1, 1

	i := 0
	for i < len(diffs) {
		d := diffs[i]
		if d.Type == diffmatchpatch.DiffEqual {
			n := lineCount(d.Text)
			origLine += n
			modLine += n
			i++
			continue
		}

		origStart, modStart := origLine, modLine
		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			n := lineCount(diffs[i].Text)
			switch diffs[i].Type {
			case diffmatchpatch.DiffDelete:
				origLine += n
			case diffmatchpatch.DiffInsert:
				modLine += n
			}
			i++
		}

		changes = append(changes, Change{
			OriginalRange: LineRange{StartLineNumber: origStart, EndLineNumberExclusive: origLine},
			ModifiedRange: LineRange{StartLineNumber: modStart, EndLineNumberExclusive: modLine},
		})
	}

	return changes
}

// innerChangesFromCharDiff walks a character-level diff of two line blocks
// and emits one InnerChange per contiguous non-equal run, pairing a
// Delete+Insert run into a single replace rather than two separate ones.
func innerChangesFromCharDiff(diffs []diffmatchpatch.Diff, origBlockStartLine, modBlockStartLine int) []InnerChange {
	tracker := newPosTracker(origBlockStartLine)
	modTracker := newPosTracker(modBlockStartLine)

	var out []InnerChange
	i := 0
	for i < len(diffs) {
		d := diffs[i]
		if d.Type == diffmatchpatch.DiffEqual {
			tracker.advance(d.Text)
			modTracker.advance(d.Text)
			i++
			continue
		}

		origStartLine, origStartCol := tracker.line, tracker.col
		modStartLine, modStartCol := modTracker.line, modTracker.col

		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			switch diffs[i].Type {
			case diffmatchpatch.DiffDelete:
				tracker.advance(diffs[i].Text)
			case diffmatchpatch.DiffInsert:
				modTracker.advance(diffs[i].Text)
			}
			i++
		}

		out = append(out, InnerChange{
			OriginalRange: Range{StartLineNumber: origStartLine, StartColumn: origStartCol, EndLineNumber: tracker.line, EndColumn: tracker.col},
			ModifiedRange: Range{StartLineNumber: modStartLine, StartColumn: modStartCol, EndLineNumber: modTracker.line, EndColumn: modTracker.col},
		})
	}
	return out
}

// posTracker walks forward through a block of text tracking a 1-based
// line/column position, advancing across embedded newlines.
type posTracker struct {
	line int
	col  int
}

func newPosTracker(startLine int) *posTracker {
	return &posTracker{line: startLine, col: 1}
}

// advance walks text byte by byte (not rune by rune) since every offset in
// this package is a byte offset, per this engine's "purely byte-oriented"
// requirement.
func (p *posTracker) advance(text string) {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
	}
}

// splitLines splits s on any of \r\n|\r|\n,
// returning the line contents (terminators stripped) plus, for each line,
// the byte offset within s where it begins.
func splitLines(s string) (lines []string, starts []int) {
	start := 0
	i := 0
	for i < len(s) {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			starts = append(starts, start)
			i++
			start = i
		case '\r':
			lines = append(lines, s[start:i])
			starts = append(starts, start)
			if i+1 < len(s) && s[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			start = i
		default:
			i++
		}
	}
	lines = append(lines, s[start:])
	starts = append(starts, start)
	return lines, starts
}

// Refine expands coarse into a finer-grained, annotation-tagged sequence of
// replacements over base. It returns (nil, false) on
// timeout so the caller (pkg/rebase's backfill, §4.3.3) falls back to the
// single coarse replacement.
func Refine[D stredit.Joiner[D]](r DiffRefiner, base string, coarse stredit.StringReplacement, annotation D, opts Options) ([]stredit.AnnotatedReplacement[D], bool) {
	original := coarse.ReplaceRange.Substring(base)
	newText := coarse.NewText

	origLines, origStarts := splitLines(original)
	modLines, modStarts := splitLines(newText)

	result, err := r.Diff(origLines, modLines, opts)
	if err != nil || result.HitTimeout {
		return nil, false
	}

	var out []stredit.AnnotatedReplacement[D]
	for _, change := range result.Changes {
		if len(change.InnerChanges) == 0 {
			origFrom := origStarts[change.OriginalRange.StartLineNumber-1]
			origTo := len(original)
			if change.OriginalRange.EndLineNumberExclusive-1 < len(origStarts) {
				origTo = origStarts[change.OriginalRange.EndLineNumberExclusive-1]
			}
			modFrom := modStarts[change.ModifiedRange.StartLineNumber-1]
			modTo := len(newText)
			if change.ModifiedRange.EndLineNumberExclusive-1 < len(modStarts) {
				modTo = modStarts[change.ModifiedRange.EndLineNumberExclusive-1]
			}
			out = append(out, stredit.AnnotatedReplacement[D]{
				Replacement: stredit.NewStringReplacement(
					stredit.NewOffsetRange(coarse.ReplaceRange.Start+origFrom, coarse.ReplaceRange.Start+origTo),
					newText[modFrom:modTo],
				),
				Data: annotation,
			})
			continue
		}
		for _, ic := range change.InnerChanges {
			origFrom := origStarts[ic.OriginalRange.StartLineNumber-1] + (ic.OriginalRange.StartColumn - 1)
			origTo := origStarts[ic.OriginalRange.EndLineNumber-1] + (ic.OriginalRange.EndColumn - 1)
			modFrom := modStarts[ic.ModifiedRange.StartLineNumber-1] + (ic.ModifiedRange.StartColumn - 1)
			modTo := modStarts[ic.ModifiedRange.EndLineNumber-1] + (ic.ModifiedRange.EndColumn - 1)
			out = append(out, stredit.AnnotatedReplacement[D]{
				Replacement: stredit.NewStringReplacement(
					stredit.NewOffsetRange(coarse.ReplaceRange.Start+origFrom, coarse.ReplaceRange.Start+origTo),
					newText[modFrom:modTo],
				),
				Data: annotation,
			})
		}
	}

	return out, true
}
