package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tazhate/calbridge/internal/domain"
)

// ReminderService performs reminder list and item operations against a ReminderStore.
type ReminderService struct {
	store  ReminderStore
	logger *slog.Logger
}

func NewReminderService(store ReminderStore, logger *slog.Logger) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{store: store, logger: logger}
}

func (s *ReminderService) Lists(ctx context.Context) ([]domain.RemindersList, error) {
	lists, err := s.store.ReminderLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminder lists: %w", err)
	}
	if lists == nil {
		lists = []domain.RemindersList{}
	}
	return lists, nil
}

// DefaultList returns the default reminders list, or nil.
func (s *ReminderService) DefaultList(ctx context.Context) (*domain.RemindersList, error) {
	l, err := s.store.DefaultReminderList(ctx)
	if err != nil {
		return nil, fmt.Errorf("get default reminder list: %w", err)
	}
	return l, nil
}

func (s *ReminderService) CreateList(ctx context.Context, list domain.NewCalendar) (string, error) {
	id, err := s.store.CreateReminderList(ctx, list)
	if err != nil {
		return "", fmt.Errorf("create reminder list: %w", err)
	}
	return id, nil
}

func (s *ReminderService) DeleteList(ctx context.Context, id string) error {
	l, err := s.store.ReminderList(ctx, id)
	if err != nil {
		return fmt.Errorf("get reminder list %s: %w", id, err)
	}
	if !l.Writable {
		return &AccessError{Requirement: writeReminders, CalendarID: id}
	}
	if err := s.store.DeleteReminderList(ctx, id); err != nil {
		return fmt.Errorf("delete reminder list %s: %w", id, err)
	}
	return nil
}

// Create inserts a reminder. An unknown list id falls back to the default list.
func (s *ReminderService) Create(ctx context.Context, r domain.Reminder) (string, error) {
	list, err := s.destination(ctx, r.ListID)
	if err != nil {
		return "", err
	}
	r.ListID = list.ID
	r.Priority = domain.ClampPriority(r.Priority)
	if r.Recurrence != nil {
		anchor := r.Due
		if anchor == nil {
			anchor = r.Start
		}
		if anchor != nil {
			if _, err := r.Recurrence.Rule(*anchor); err != nil {
				return "", fmt.Errorf("build recurrence: %w", err)
			}
		}
	}

	id, err := s.store.InsertReminder(ctx, r)
	if err != nil {
		return "", fmt.Errorf("insert reminder: %w", err)
	}
	s.logger.Debug("reminder created", "id", id, "list", list.ID)
	return id, nil
}

func (s *ReminderService) destination(ctx context.Context, id string) (*domain.RemindersList, error) {
	if id != "" {
		l, err := s.store.ReminderList(ctx, id)
		switch {
		case err == nil:
			if !l.Writable {
				return nil, &AccessError{Requirement: writeReminders, CalendarID: id}
			}
			return l, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("get reminder list %s: %w", id, err)
		}
	}
	l, err := s.store.DefaultReminderList(ctx)
	if err != nil {
		return nil, fmt.Errorf("get default reminder list: %w", err)
	}
	if l == nil {
		return nil, ErrNoDefaultCalendar
	}
	if !l.Writable {
		return nil, &AccessError{Requirement: writeReminders, CalendarID: l.ID}
	}
	return l, nil
}
