package schedule

import (
	"fmt"
	"time"
)

// DaySchedule holds a provider's hours for one weekday as minutes since
// midnight. A closed day has Open=false and zeroed minutes.
type DaySchedule struct {
	Open        bool
	OpenMinute  int
	CloseMinute int
}

func (d DaySchedule) Validate() error {
	if !d.Open {
		return nil
	}
	if d.OpenMinute < 0 || d.CloseMinute > 24*60 {
		return fmt.Errorf("minutes out of range: open=%d close=%d", d.OpenMinute, d.CloseMinute)
	}
	if d.OpenMinute >= d.CloseMinute {
		return fmt.Errorf("open minute %d must be before close minute %d", d.OpenMinute, d.CloseMinute)
	}
	return nil
}

// Window maps the day's hours onto a concrete calendar date in the date's
// location. Returns zero times when the day is closed.
func (d DaySchedule) Window(date time.Time) (time.Time, time.Time) {
	if !d.Open {
		return time.Time{}, time.Time{}
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return day.Add(time.Duration(d.OpenMinute) * time.Minute),
		day.Add(time.Duration(d.CloseMinute) * time.Minute)
}

// WeeklySchedule is a full 7-day schedule indexed by time.Weekday
// (Sunday == 0). Every weekday is always present.
type WeeklySchedule [7]DaySchedule

func (w WeeklySchedule) Day(wd time.Weekday) DaySchedule {
	return w[int(wd)]
}

func (w WeeklySchedule) Validate() error {
	for wd, d := range w {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", time.Weekday(wd), err)
		}
	}
	return nil
}

// Default is the schedule used when a provider has configured nothing:
// Mon-Fri 09:00-17:00 open, Sat/Sun closed.
func Default() WeeklySchedule {
	var w WeeklySchedule
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd >= time.Monday && wd <= time.Friday {
			w[int(wd)] = DaySchedule{Open: true, OpenMinute: 9 * 60, CloseMinute: 17 * 60}
		}
	}
	return w
}

// ParseMinute converts an "HH:MM" clock string to minutes since midnight.
func ParseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinute renders minutes since midnight as "HH:MM".
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
