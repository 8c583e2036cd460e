// Package domain holds the pure, value-typed constraint-satisfaction
// model for weekly lesson scheduling: time intervals, constraints,
// and the CSP variable/domain representation consumed by the search
// layer in internal/scheduling/application.
package domain

import "sort"

// MinutesPerDay is the number of minute-of-day values in [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// DaysPerWeek is the fixed number of days in a canonical scheduling week.
const DaysPerWeek = 7

// TimeBlock is a minute-precision half-open interval [Start, Start+Duration)
// within a single day. All arithmetic is integer minutes; there is no
// floating point and no calendar semantics anywhere in this package.
type TimeBlock struct {
	Start    int // minute-of-day, [0, MinutesPerDay)
	Duration int // minutes, > 0
}

// End returns the exclusive end minute of the block.
func (b TimeBlock) End() int {
	return b.Start + b.Duration
}

// Valid reports whether the block is in canonical form: non-negative
// start, positive duration, and contained within a single day.
func (b TimeBlock) Valid() bool {
	return b.Start >= 0 && b.Duration > 0 && b.End() <= MinutesPerDay
}

// Overlaps reports whether two blocks share any minute.
func Overlaps(a, b TimeBlock) bool {
	return a.Start < b.End() && b.Start < a.End()
}

// Contains reports whether the interval is fully contained within the block.
func Contains(block, interval TimeBlock) bool {
	return interval.Start >= block.Start && interval.End() <= block.End()
}

// ContainsAny reports whether any block in blocks fully contains interval.
func ContainsAny(blocks []TimeBlock, interval TimeBlock) bool {
	for _, b := range blocks {
		if Contains(b, interval) {
			return true
		}
	}
	return false
}

// SortAndMerge returns blocks sorted by Start with overlapping or
// touching blocks merged into a single block.
func SortAndMerge(blocks []TimeBlock) []TimeBlock {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]TimeBlock, 0, len(sorted))
	cur := sorted[0]
	for _, b := range sorted[1:] {
		if b.Start <= cur.End() {
			if b.End() > cur.End() {
				cur.Duration = b.End() - cur.Start
			}
			continue
		}
		merged = append(merged, cur)
		cur = b
	}
	merged = append(merged, cur)
	return merged
}

// IntersectDay returns the list of maximal windows that lie within both
// a and b, i.e. the mutual-availability windows for a single day.
func IntersectDay(a, b []TimeBlock) []TimeBlock {
	as := SortAndMerge(a)
	bs := SortAndMerge(b)

	var out []TimeBlock
	i, j := 0, 0
	for i < len(as) && j < len(bs) {
		start := max(as[i].Start, bs[j].Start)
		end := min(as[i].End(), bs[j].End())
		if start < end {
			out = append(out, TimeBlock{Start: start, Duration: end - start})
		}
		if as[i].End() < bs[j].End() {
			i++
		} else {
			j++
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DaySchedule is the set of available blocks for a single day of week.
type DaySchedule struct {
	DayOfWeek int // [0,6], Sunday = 0
	Blocks    []TimeBlock
}

// Normalize sorts and merges the day's blocks in place, returning the
// receiver for chaining.
func (d *DaySchedule) Normalize() *DaySchedule {
	d.Blocks = SortAndMerge(d.Blocks)
	return d
}

// TotalAvailableMinutes returns the sum of block durations for the day.
func (d DaySchedule) TotalAvailableMinutes() int {
	total := 0
	for _, b := range d.Blocks {
		total += b.Duration
	}
	return total
}

// LargestBlock returns the longest block in the day, or the zero value
// with ok=false when the day has no blocks.
func (d DaySchedule) LargestBlock() (block TimeBlock, ok bool) {
	for _, b := range d.Blocks {
		if !ok || b.Duration > block.Duration {
			block, ok = b, true
		}
	}
	return block, ok
}

// FragmentationCount returns the number of disjoint blocks in the day.
func (d DaySchedule) FragmentationCount() int {
	return len(d.Blocks)
}

// WeekSchedule is a fixed seven-day week of availability carrying an
// opaque, uninterpreted time-zone tag.
type WeekSchedule struct {
	Days     [DaysPerWeek]DaySchedule
	Timezone string
}

// NewWeekSchedule builds a week schedule with each day's DayOfWeek set
// to its index and no blocks.
func NewWeekSchedule(timezone string) WeekSchedule {
	var w WeekSchedule
	w.Timezone = timezone
	for i := range w.Days {
		w.Days[i] = DaySchedule{DayOfWeek: i}
	}
	return w
}

// Day returns the schedule for the given day of week, or the zero
// DaySchedule if out of range.
func (w WeekSchedule) Day(dayOfWeek int) DaySchedule {
	if dayOfWeek < 0 || dayOfWeek >= DaysPerWeek {
		return DaySchedule{}
	}
	return w.Days[dayOfWeek]
}

// IsEmpty reports whether every day in the week has zero blocks.
func (w WeekSchedule) IsEmpty() bool {
	for _, d := range w.Days {
		if len(d.Blocks) > 0 {
			return false
		}
	}
	return true
}

// TotalAvailableMinutes sums available minutes across all seven days.
func (w WeekSchedule) TotalAvailableMinutes() int {
	total := 0
	for _, d := range w.Days {
		total += d.TotalAvailableMinutes()
	}
	return total
}
