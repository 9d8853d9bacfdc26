package availability

import (
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	d := day(t)
	a := Interval{Start: d.Add(9 * time.Hour), End: d.Add(10 * time.Hour)}

	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"identical", a, true},
		{"contained", Interval{Start: d.Add(9*time.Hour + 15*time.Minute), End: d.Add(9*time.Hour + 45*time.Minute)}, true},
		{"partial tail", Interval{Start: d.Add(9*time.Hour + 30*time.Minute), End: d.Add(10*time.Hour + 30*time.Minute)}, true},
		{"boundary touch after", Interval{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)}, false},
		{"boundary touch before", Interval{Start: d.Add(8 * time.Hour), End: d.Add(9 * time.Hour)}, false},
		{"disjoint", Interval{Start: d.Add(12 * time.Hour), End: d.Add(13 * time.Hour)}, false},
		{"zero duration at midpoint", Interval{Start: d.Add(9*time.Hour + 30*time.Minute), End: d.Add(9*time.Hour + 30*time.Minute)}, false},
	}
	for _, tc := range cases {
		if got := Overlaps(a, tc.b); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		if got := Overlaps(tc.b, a); got != tc.want {
			t.Errorf("%s: Overlaps not symmetric: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSlots_DropsOverrunningCandidates(t *testing.T) {
	d := day(t)
	open := d.Add(9 * time.Hour)
	closeAt := d.Add(17 * time.Hour)

	slots := Slots(open, closeAt, time.Hour, 30*time.Minute)

	// 09:00 through 16:00 inclusive at 30m steps; 16:30 would end 17:30.
	if len(slots) != 15 {
		t.Fatalf("expected 15 candidates, got %d", len(slots))
	}
	if !slots[0].Start.Equal(open) {
		t.Errorf("first slot = %s, want 09:00", slots[0].Start.Format("15:04"))
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(d.Add(16 * time.Hour)) {
		t.Errorf("last slot = %s, want 16:00", last.Start.Format("15:04"))
	}
	if !last.End.Equal(closeAt) {
		t.Errorf("last slot end = %s, want 17:00", last.End.Format("15:04"))
	}
}

func TestSlots_UnalignedDuration(t *testing.T) {
	d := day(t)
	// 45m duration on a 30m grid: only the end is checked against closing.
	slots := Slots(d.Add(9*time.Hour), d.Add(10*time.Hour+30*time.Minute), 45*time.Minute, 30*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("expected 2 candidates (09:00, 09:30), got %d", len(slots))
	}
	if !slots[1].End.Equal(d.Add(10*time.Hour + 15*time.Minute)) {
		t.Errorf("second slot end = %s, want 10:15", slots[1].End.Format("15:04"))
	}
}

func TestSlots_DegenerateInputs(t *testing.T) {
	d := day(t)
	if got := Slots(d, d, time.Hour, 30*time.Minute); got != nil {
		t.Errorf("empty window: got %d slots", len(got))
	}
	if got := Slots(d, d.Add(8*time.Hour), 0, 30*time.Minute); got != nil {
		t.Errorf("zero duration: got %d slots", len(got))
	}
	if got := Slots(d, d.Add(8*time.Hour), time.Hour, 0); got != nil {
		t.Errorf("zero step: got %d slots", len(got))
	}
	// Window shorter than the duration produces nothing.
	if got := Slots(d.Add(9*time.Hour), d.Add(9*time.Hour+30*time.Minute), time.Hour, 30*time.Minute); got != nil {
		t.Errorf("short window: got %d slots", len(got))
	}
}

func TestClassify_Partition(t *testing.T) {
	d := day(t)
	candidates := Slots(d.Add(9*time.Hour), d.Add(17*time.Hour), time.Hour, 30*time.Minute)
	busy := []Interval{
		{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)},
	}
	now := d // midnight: nothing is past

	available, booked := Classify(candidates, busy, now)

	if len(available)+len(booked) != len(candidates) {
		t.Fatalf("partition lost candidates: %d + %d != %d", len(available), len(booked), len(candidates))
	}
	seen := map[time.Time]bool{}
	for _, s := range available {
		seen[s.Start] = true
	}
	for _, s := range booked {
		if seen[s.Start] {
			t.Fatalf("slot %s in both lists", s.Start.Format("15:04"))
		}
	}

	// 09:30, 10:00 and 10:30 starts collide with the 10:00-11:00 booking.
	wantBooked := map[string]bool{"09:30": true, "10:00": true, "10:30": true}
	if len(booked) != len(wantBooked) {
		t.Fatalf("expected %d booked slots, got %d", len(wantBooked), len(booked))
	}
	for _, s := range booked {
		if !wantBooked[s.Start.Format("15:04")] {
			t.Errorf("unexpected booked slot %s", s.Start.Format("15:04"))
		}
	}
	if available[0].Start.Format("15:04") != "09:00" {
		t.Errorf("09:00 should be available, first available = %s", available[0].Start.Format("15:04"))
	}
}

func TestClassify_PastSlotsNeverAvailable(t *testing.T) {
	d := day(t)
	candidates := Slots(d.Add(9*time.Hour), d.Add(17*time.Hour), time.Hour, 30*time.Minute)
	now := d.Add(12*time.Hour + 1*time.Minute)

	available, booked := Classify(candidates, nil, now)

	for _, s := range available {
		if s.Start.Before(now) {
			t.Errorf("past slot %s returned as available", s.Start.Format("15:04"))
		}
	}
	// 09:00 through 12:00 are past; 12:30 onward are not.
	if len(booked) != 7 {
		t.Errorf("expected 7 past slots marked booked, got %d", len(booked))
	}
}
