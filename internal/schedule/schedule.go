// Package schedule computes occurrence times for recurring tasks from
// cron expressions interpreted in a task's IANA timezone.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule reports a malformed cron expression or an
// unrecognized timezone name.
var ErrInvalidSchedule = errors.New("schedule: invalid schedule")

// standardParser accepts the classic 5-field form (minute hour dom month dow).
var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// secondsParser accepts the 6-field form with a leading seconds field.
var secondsParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// parse parses a 5- or 6-field cron expression. Six-field expressions are
// tried with a leading seconds field first; if that fails, the last field
// is treated as the seconds field (croniter-style trailing seconds).
func parse(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 5:
		sched, err := standardParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
		}
		return sched, nil
	case 6:
		sched, err := secondsParser.Parse(expr)
		if err == nil {
			return sched, nil
		}
		// Trailing seconds: rotate the last field to the front and retry.
		rotated := append([]string{fields[5]}, fields[:5]...)
		sched, rerr := secondsParser.Parse(strings.Join(rotated, " "))
		if rerr != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("%w: %q: expected 5 or 6 fields, got %d",
			ErrInvalidSchedule, expr, len(fields))
	}
}

// Validate checks that expr is a parseable 5- or 6-field cron expression
// and that tz names a known IANA timezone. It performs no I/O beyond the
// timezone database lookup and is safe for concurrent use.
func Validate(expr, tz string) error {
	if _, err := parse(expr); err != nil {
		return err
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, tz)
	}
	return nil
}

// NextRun returns the next instant matching expr, interpreted in tz, that
// is greater than or equal to from. The result is in UTC. NextRun is pure
// and deterministic: the same inputs always yield the same output.
//
// Sub-second precision is not supported; from is truncated to whole
// seconds before matching.
func NextRun(expr, tz string, from time.Time) (time.Time, error) {
	sched, err := parse(expr)
	if err != nil {
		return time.Time{}, err
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, tz)
	}

	// cron.Schedule.Next is strictly-after; stepping back one second makes
	// an exactly-matching from its own next occurrence.
	local := from.Truncate(time.Second).In(loc)
	return sched.Next(local.Add(-time.Second)).UTC(), nil
}
