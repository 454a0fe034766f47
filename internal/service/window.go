package service

import (
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// ResolveWindow turns a window intent into concrete inclusive dates.
// now is the wall clock of the run; only its calendar date is used.
func ResolveWindow(intent domain.WindowIntent, now time.Time) (domain.DateWindow, error) {
	if intent.Start != nil && intent.End != nil {
		w := domain.DateWindow{Start: dateOf(*intent.Start), End: dateOf(*intent.End)}
		if w.Start.After(w.End) {
			return domain.DateWindow{}, &domain.ErrConfiguration{
				Field:   "start_date",
				Message: "start date " + w.Start.Format(domain.DateLayout) + " is after end date " + w.End.Format(domain.DateLayout),
			}
		}
		return w, nil
	}

	today := dateOf(now)

	switch intent.Period {
	case domain.PeriodLastMonth:
		end := today.AddDate(0, 0, -today.Day())
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		return domain.DateWindow{Start: start, End: end}, nil

	case domain.PeriodLastWeek:
		// Yesterday, so a Monday run still sees all of Sunday.
		shifted := today.AddDate(0, 0, -1)
		end := shifted.AddDate(0, 0, -int(shifted.Weekday()))
		return domain.DateWindow{Start: end.AddDate(0, 0, -6), End: end}, nil
	}

	return domain.DateWindow{}, &domain.ErrConfiguration{
		Field:   "period",
		Message: "no start/end dates and no valid period (last_month, last_week) configured",
	}
}

// ParsePeriod validates a configured period name. Empty is allowed.
func ParsePeriod(s string) (domain.Period, error) {
	switch p := domain.Period(s); p {
	case "", domain.PeriodLastMonth, domain.PeriodLastWeek:
		return p, nil
	}
	return "", &domain.ErrConfiguration{Field: "period", Message: "unknown period '" + s + "'"}
}

// dateOf drops the clock and zone, keeping the calendar date as seen in t's location.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
