package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps is the single authoritative overlap predicate. Two half-open
// intervals [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1. Every call
// site, including the SQL guards in storage, must agree with this definition;
// a boundary touch (e1 == s2) is not an overlap, and zero-duration intervals
// never overlap anything.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func OverlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(iv, b) {
			return true
		}
	}
	return false
}

// Slot is a candidate appointment of fixed duration within open hours.
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Slots enumerates candidate starts from windowStart stepping by step, in
// order. A candidate whose end would pass windowEnd is dropped entirely; it
// does not exist, not even as unavailable. All times are expected to share a
// location.
func Slots(windowStart, windowEnd time.Time, duration, step time.Duration) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []Slot
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		slots = append(slots, Slot{Start: t, End: t.Add(duration)})
	}
	return slots
}

// Classify partitions candidates into available and booked. A slot is booked
// when its start is already in the past or it overlaps any busy interval.
// Every candidate lands in exactly one of the two lists.
func Classify(candidates []Slot, busy []Interval, now time.Time) (available, booked []Slot) {
	for _, s := range candidates {
		if s.Start.Before(now) || OverlapsAny(s.Interval(), busy) {
			booked = append(booked, s)
			continue
		}
		available = append(available, s)
	}
	return available, booked
}
