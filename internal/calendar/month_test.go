package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestMonth_PrevRollsYear(t *testing.T) {
	m := Month{Year: 2026, Month: time.January}
	prev := m.Prev()
	if prev != (Month{Year: 2025, Month: time.December}) {
		t.Fatalf("unexpected prev month: %s", prev)
	}
	if next := prev.Next(); next != m {
		t.Fatalf("next of prev mismatch: %s", next)
	}
}

func TestMonth_LastDay(t *testing.T) {
	cases := []struct {
		month Month
		day   int
	}{
		{Month{Year: 2024, Month: time.February}, 29},
		{Month{Year: 2025, Month: time.February}, 28},
		{Month{Year: 2026, Month: time.April}, 30},
		{Month{Year: 2026, Month: time.December}, 31},
	}
	for _, tc := range cases {
		got := tc.month.LastDay(time.UTC)
		if got.Day() != tc.day || got.Month() != tc.month.Month {
			t.Fatalf("%s: last day = %s, want day %d", tc.month, got.Format("2006-01-02"), tc.day)
		}
		if tc.month.DaysIn() != tc.day {
			t.Fatalf("%s: days in = %d, want %d", tc.month, tc.month.DaysIn(), tc.day)
		}
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-03")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	if m.Year != 2026 || m.Month != time.March {
		t.Fatalf("unexpected month: %+v", m)
	}
	if m.String() != "2026-03" {
		t.Fatalf("unexpected string form: %s", m)
	}
	if _, err := ParseMonth("2026/03"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMonthOf_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:00 UTC on Jan 31 is already Feb 1 at UTC+3.
	at := time.Date(2026, time.January, 31, 22, 0, 0, 0, time.UTC)
	feb := Month{Year: 2026, Month: time.February}
	if MonthOf(at.In(loc)) != feb {
		t.Fatalf("expected %s to contain %s in %s", feb, at, loc)
	}
	if MonthOf(at) == feb {
		t.Fatalf("expected %s not to contain %s in UTC", feb, at)
	}
}

func TestMonth_TextRoundTrip(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2025-12")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data, _ := m.MarshalText()
	if string(data) != "2025-12" {
		t.Fatalf("unexpected text: %s", data)
	}
	if !m.Before(m.Next()) || m.Next().Before(m) {
		t.Fatalf("ordering broken")
	}
}
