package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNextRun_TimezoneBoundary(t *testing.T) {
	t.Parallel()

	// 08:00 in Shanghai is 00:00 UTC; a reference time exactly on the
	// boundary must match that same instant, not the next day.
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := NextRun("0 8 * * *", "Asia/Shanghai", from)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRun_StrictlyIncreasingSequence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		tz   string
	}{
		{"*/5 * * * *", "UTC"},
		{"0 8 * * *", "Asia/Shanghai"},
		{"30 9 * * 1-5", "America/New_York"},
		{"0 0 8 * * *", "Europe/Paris"}, // leading seconds
	}

	for _, tc := range cases {
		from := time.Date(2024, 3, 1, 12, 34, 56, 0, time.UTC)
		prev := from

		for range 10 {
			next, err := NextRun(tc.expr, tc.tz, prev.Add(time.Second))
			if err != nil {
				t.Fatalf("NextRun(%q, %q) failed: %v", tc.expr, tc.tz, err)
			}
			if !next.After(prev) {
				t.Fatalf("NextRun(%q, %q): %v is not after %v", tc.expr, tc.tz, next, prev)
			}
			if next.Location() != time.UTC {
				t.Fatalf("NextRun(%q, %q): result not in UTC", tc.expr, tc.tz)
			}
			prev = next
		}
	}
}

func TestNextRun_TrailingSecondsField(t *testing.T) {
	t.Parallel()

	// croniter-style: seconds as the sixth (last) field.
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	got, err := NextRun("30 10 * * * 15", "UTC", from)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}

	want := time.Date(2024, 1, 1, 10, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRun_LeadingSecondsField(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	got, err := NextRun("15 30 10 * * *", "UTC", from)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}

	want := time.Date(2024, 1, 1, 10, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRun_DSTTransition(t *testing.T) {
	t.Parallel()

	// US Eastern springs forward on 2024-03-10: 02:30 local does not
	// exist that day. The occurrence must land on a real instant after
	// the reference time, not loop or go backwards.
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := NextRun("30 2 * * *", "America/New_York", from)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	if !got.After(from) {
		t.Errorf("NextRun = %v, want after %v", got, from)
	}
}

func TestNextRun_InvalidExpression(t *testing.T) {
	t.Parallel()

	cases := []string{
		"x y z",            // wrong field count
		"",                 // empty
		"* * * *",          // 4 fields
		"* * * * * * *",    // 7 fields
		"99 99 * * *",      // out-of-range values
		"not a cron at all",   // garbage, 5 fields
		"not a cron at all no", // garbage, 6 fields
	}

	for _, expr := range cases {
		if _, err := NextRun(expr, "UTC", time.Now()); !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("NextRun(%q) error = %v, want ErrInvalidSchedule", expr, err)
		}
	}
}

func TestNextRun_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NextRun("0 8 * * *", "Mars/Olympus_Mons", time.Now())
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate("0 8 * * *", "Asia/Shanghai"); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
	if err := Validate("x y z", "UTC"); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
	if err := Validate("0 8 * * *", "Nowhere/Nope"); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("error = %v, want ErrInvalidSchedule", err)
	}
}

func TestNextRun_Deterministic(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 6, 15, 3, 7, 0, 0, time.UTC)

	first, err := NextRun("*/15 * * * *", "Europe/Berlin", from)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	for range 5 {
		again, err := NextRun("*/15 * * * *", "Europe/Berlin", from)
		if err != nil {
			t.Fatalf("NextRun failed: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("NextRun not deterministic: %v vs %v", again, first)
		}
	}
}
