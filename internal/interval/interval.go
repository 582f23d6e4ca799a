// Package interval implements the algebra of half-open [start, end)
// integer intervals used for outage and unknown-coverage accounting.
// All functions operate on unix seconds and never mutate their inputs.
package interval

import "sort"

// Interval is a half-open range [Start, End).
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Width returns the length of the interval, never negative.
func (iv Interval) Width() int64 {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// Merge coalesces a set of intervals into a sorted, strictly
// non-overlapping sequence. Empty and inverted intervals are dropped.
func Merge(in []Interval) []Interval {
	ivs := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.End > iv.Start {
			ivs = append(ivs, iv)
		}
	}
	if len(ivs) == 0 {
		return nil
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })

	out := ivs[:1]
	for _, next := range ivs[1:] {
		last := &out[len(out)-1]
		if next.Start <= last.End {
			if next.End > last.End {
				last.End = next.End
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

// Sum returns the total width of the intervals. The input does not need
// to be merged; overlapping regions are counted once per interval, so
// callers wanting deduplicated coverage should Merge first.
func Sum(in []Interval) int64 {
	var total int64
	for _, iv := range in {
		total += iv.Width()
	}
	return total
}

// Overlap returns the total width shared by two merged, sorted interval
// sets. It is symmetric and bounded by min(Sum(a), Sum(b)).
func Overlap(a, b []Interval) int64 {
	var total int64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := a[i].Start
		if b[j].Start > lo {
			lo = b[j].Start
		}
		hi := a[i].End
		if b[j].End < hi {
			hi = b[j].End
		}
		if hi > lo {
			total += hi - lo
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return total
}

// Clip restricts iv to bounds. The second return is false when the
// clipped interval has no width.
func Clip(iv, bounds Interval) (Interval, bool) {
	out := Interval{Start: iv.Start, End: iv.End}
	if bounds.Start > out.Start {
		out.Start = bounds.Start
	}
	if bounds.End < out.End {
		out.End = bounds.End
	}
	if out.End <= out.Start {
		return Interval{}, false
	}
	return out, true
}

// Check is a single observation used by BuildUnknown. Unknown marks
// checks whose recorded status was literally "unknown"; their coverage
// does not count as known.
type Check struct {
	At      int64
	Unknown bool
}

// BuildUnknown returns the sub-intervals of [rangeStart, rangeEnd) that
// lack known check coverage. A check at time t covers [t, t+2*intervalSec);
// the doubled window absorbs scheduling jitter and matches the staleness
// threshold used by the public status builder. Checks before rangeStart
// may be included so their coverage can extend into the range. The input
// must be ordered chronologically.
func BuildUnknown(rangeStart, rangeEnd, intervalSec int64, checks []Check) []Interval {
	if rangeEnd <= rangeStart {
		return nil
	}
	window := 2 * intervalSec

	known := make([]Interval, 0, len(checks))
	for _, c := range checks {
		if c.Unknown {
			continue
		}
		known = append(known, Interval{Start: c.At, End: c.At + window})
	}
	known = Merge(known)

	var out []Interval
	cursor := rangeStart
	for _, iv := range known {
		if iv.End <= cursor {
			continue
		}
		if iv.Start >= rangeEnd {
			break
		}
		if iv.Start > cursor {
			out = append(out, Interval{Start: cursor, End: min64(iv.Start, rangeEnd)})
		}
		cursor = iv.End
		if cursor >= rangeEnd {
			break
		}
	}
	if cursor < rangeEnd {
		out = append(out, Interval{Start: cursor, End: rangeEnd})
	}
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
