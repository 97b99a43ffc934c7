/*
dates.go - Payment date series generation

PURPOSE:
  Produces the dated sequence for a schedule: first row on the configured
  first-draft date, subsequent rows every 7 days (weekly) or one calendar
  month (monthly), optionally snapped to a preferred weekday.

  Recurrence is delegated to rrule (RFC 5545 semantics) rather than
  hand-rolled date loops. For weekly series with a preferred weekday the
  BYDAY rule does the snapping; monthly series snap each occurrence forward
  since BYDAY would change the recurrence shape.
*/
package plan

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// PaymentDates generates count payment dates starting at first.
func PaymentDates(first TimePoint, freq PaymentFrequency, count int, preferred *time.Weekday) ([]TimePoint, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: schedule needs at least one payment", ErrValidation)
	}
	if first.IsZero() {
		return nil, fmt.Errorf("%w: first payment date is required", ErrValidation)
	}

	opt := rrule.ROption{
		Count:   count,
		Dtstart: first.Time,
	}

	switch freq {
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		if preferred != nil {
			opt.Byweekday = []rrule.Weekday{rruleWeekdays[*preferred]}
		}
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("%w: unknown payment frequency %q", ErrValidation, freq)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	occurrences := rule.All()
	dates := make([]TimePoint, 0, len(occurrences))
	for _, occ := range occurrences {
		tp := DateOf(occ)
		if freq == FrequencyMonthly && preferred != nil {
			tp = tp.SnapToWeekday(*preferred)
		}
		dates = append(dates, tp)
	}
	return dates, nil
}
