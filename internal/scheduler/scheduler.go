// Package scheduler delivers event alarms and due reminders of the local store.
package scheduler

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/storage"
)

// Store is the part of the local store the scheduler works on.
type Store interface {
	ListDueAlarms(ctx context.Context, now time.Time) ([]storage.DueAlarm, error)
	MarkAlarmFired(ctx context.Context, id int64, at time.Time) error
	ListDueReminders(ctx context.Context, now time.Time) ([]*storage.StoredReminder, error)
	AdvanceReminder(ctx context.Context, id string, nextDue time.Time) error
	MarkReminderNotified(ctx context.Context, id string) error
}

// AlarmGrace is how late an alarm may still be delivered once its event has
// started. Older alarms of started events are dropped.
const AlarmGrace = 30 * time.Minute

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Scheduler struct {
	cron     *cron.Cron
	store    Store
	notifier Notifier
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func New(store Store, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		store:  store,
		loc:    loc,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Alarms and reminders are checked every minute
	if _, err := s.cron.AddFunc("* * * * *", func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("add alarm check: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "tz", s.loc.String())

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Tick delivers everything due now.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	now := s.now()
	s.checkAlarms(ctx, now)
	s.checkReminders(ctx, now)
}

func (s *Scheduler) checkAlarms(ctx context.Context, now time.Time) {
	due, err := s.store.ListDueAlarms(ctx, now)
	if err != nil {
		s.logger.Error("list due alarms", "error", err)
		return
	}
	for _, a := range due {
		if stale(a, now) {
			s.logger.Debug("dropping stale alarm", "event", a.Event.ID, "fire_at", a.FireAt)
			if err := s.store.MarkAlarmFired(ctx, a.ID, now); err != nil {
				s.logger.Error("mark alarm fired", "alarm", a.ID, "error", err)
			}
			continue
		}
		if err := s.notifier.Notify(ctx, s.formatAlarm(a)); err != nil {
			// Left unfired so the next tick retries.
			s.logger.Warn("send alarm", "event", a.Event.ID, "error", err)
			continue
		}
		if err := s.store.MarkAlarmFired(ctx, a.ID, now); err != nil {
			s.logger.Error("mark alarm fired", "alarm", a.ID, "error", err)
		}
	}
}

// stale reports an alarm of an event already under way whose fire time is
// past the grace window, such as one left behind by downtime or set on an
// event created in the past.
func stale(a storage.DueAlarm, now time.Time) bool {
	return now.Sub(a.FireAt) > AlarmGrace && !a.Event.Start.After(now)
}

func (s *Scheduler) checkReminders(ctx context.Context, now time.Time) {
	due, err := s.store.ListDueReminders(ctx, now)
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		return
	}
	for _, r := range due {
		if err := s.notifier.Notify(ctx, s.formatReminder(&r.Reminder)); err != nil {
			s.logger.Warn("send reminder", "reminder", r.ID, "error", err)
			continue
		}
		if err := s.rearm(ctx, r, now); err != nil {
			s.logger.Error("update reminder", "reminder", r.ID, "error", err)
		}
	}
}

// rearm moves a recurring reminder to its next occurrence after now, or
// marks it notified when it does not recur or the rule is exhausted.
func (s *Scheduler) rearm(ctx context.Context, r *storage.StoredReminder, now time.Time) error {
	if r.RRule != "" && r.Due != nil {
		next, err := domain.NextOccurrence(r.RRule, *r.Due, now)
		if err != nil {
			s.logger.Warn("bad recurrence rule", "reminder", r.ID, "rrule", r.RRule, "error", err)
		} else if !next.IsZero() {
			return s.store.AdvanceReminder(ctx, r.ID, next)
		}
	}
	return s.store.MarkReminderNotified(ctx, r.ID)
}

func (s *Scheduler) formatAlarm(a storage.DueAlarm) string {
	e := a.Event
	text := "⏰ <b>" + html.EscapeString(e.Title) + "</b>\n"
	if e.AllDay {
		text += e.Start.In(s.loc).Format("Mon 2 Jan") + ", all day"
	} else {
		text += e.Start.In(s.loc).Format("Mon 2 Jan 15:04")
		if lead := e.Start.Sub(a.FireAt); lead > 0 {
			text += fmt.Sprintf(" (in %s)", formatLead(lead))
		}
	}
	if e.Location != "" {
		text += "\n📍 " + html.EscapeString(e.Location)
	}
	return text
}

func (s *Scheduler) formatReminder(r *domain.Reminder) string {
	text := "🔔 <b>" + html.EscapeString(r.Title) + "</b>"
	if r.Due != nil {
		text += "\nDue " + r.Due.In(s.loc).Format("Mon 2 Jan 15:04")
	}
	if r.Notes != "" {
		text += "\n" + html.EscapeString(r.Notes)
	}
	return text
}

func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", d/time.Hour, (d%time.Hour)/time.Minute)
	default:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
}
