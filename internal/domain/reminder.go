package domain

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RecurrenceFrequency follows the caller-facing numbering 0..3.
type RecurrenceFrequency int

const (
	RecurDaily RecurrenceFrequency = iota
	RecurWeekly
	RecurMonthly
	RecurYearly
)

func (f RecurrenceFrequency) Valid() bool {
	return f >= RecurDaily && f <= RecurYearly
}

func (f RecurrenceFrequency) rrule() rrule.Frequency {
	switch f {
	case RecurWeekly:
		return rrule.WEEKLY
	case RecurMonthly:
		return rrule.MONTHLY
	case RecurYearly:
		return rrule.YEARLY
	default:
		return rrule.DAILY
	}
}

type Recurrence struct {
	Frequency RecurrenceFrequency
	Interval  int
	End       *time.Time
}

// Rule builds the recurrence rule anchored at dtstart.
func (r Recurrence) Rule(dtstart time.Time) (*rrule.RRule, error) {
	if !r.Frequency.Valid() {
		return nil, fmt.Errorf("unknown recurrence frequency %d", r.Frequency)
	}
	if r.Interval <= 0 {
		return nil, fmt.Errorf("recurrence interval must be positive, got %d", r.Interval)
	}
	opt := rrule.ROption{
		Freq:     r.Frequency.rrule(),
		Interval: r.Interval,
		Dtstart:  dtstart,
	}
	if r.End != nil {
		opt.Until = *r.End
	}
	return rrule.NewRRule(opt)
}

// RRule renders the rule body (without DTSTART), e.g. "FREQ=WEEKLY;INTERVAL=2".
func (r Recurrence) RRule() (string, error) {
	rule, err := r.Rule(time.Time{})
	if err != nil {
		return "", err
	}
	return rule.OrigOptions.RRuleString(), nil
}

// NextOccurrence parses a stored rule and returns the first occurrence after t.
// The zero time means the rule is exhausted.
func NextOccurrence(rule string, dtstart, after time.Time) (time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = dtstart
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("build rrule: %w", err)
	}
	return r.After(after, false), nil
}

// Reminder is a reminder item as held by a store.
type Reminder struct {
	ID             string
	ListID         string
	Title          string
	Priority       int
	IsCompleted    bool
	Start          *time.Time
	Due            *time.Time
	CompletionDate *time.Time
	Notes          string
	URL            string
	Location       string
	Recurrence     *Recurrence
}

// ClampPriority keeps priority in the 0 (none) .. 9 range.
func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 9 {
		return 9
	}
	return p
}
