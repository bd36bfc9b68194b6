package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/service"
)

// spyStore is an in-memory store that counts every call made to it.
type spyStore struct {
	calls atomic.Int64

	mu        sync.Mutex
	calendars []domain.Calendar
	events    map[string]domain.Event
	lists     []domain.RemindersList
	reminders map[string]domain.Reminder
	seq       int
}

func newSpyStore() *spyStore {
	return &spyStore{
		calendars: []domain.Calendar{{ID: "CAL_1", Title: "Personal", Writable: true, Default: true}},
		events:    map[string]domain.Event{},
		lists:     []domain.RemindersList{{ID: "LIST_1", Title: "Reminders", Writable: true, Default: true}},
		reminders: map[string]domain.Reminder{},
	}
}

func (s *spyStore) hit() func() {
	s.calls.Add(1)
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *spyStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *spyStore) Calendars(context.Context) ([]domain.Calendar, error) {
	defer s.hit()()
	return append([]domain.Calendar(nil), s.calendars...), nil
}

func (s *spyStore) Calendar(_ context.Context, id string) (*domain.Calendar, error) {
	defer s.hit()()
	for _, c := range s.calendars {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *spyStore) DefaultCalendar(context.Context) (*domain.Calendar, error) {
	defer s.hit()()
	for _, c := range s.calendars {
		if c.Default {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *spyStore) CreateCalendar(_ context.Context, nc domain.NewCalendar) (string, error) {
	defer s.hit()()
	id := s.nextID("CAL")
	s.calendars = append(s.calendars, domain.Calendar{ID: id, Title: nc.Title, Color: nc.Color, Writable: true})
	return id, nil
}

func (s *spyStore) DeleteCalendar(_ context.Context, id string) error {
	defer s.hit()()
	for i, c := range s.calendars {
		if c.ID == id {
			s.calendars = append(s.calendars[:i], s.calendars[i+1:]...)
			return nil
		}
	}
	return service.ErrNotFound
}

func (s *spyStore) EventsInRange(_ context.Context, from, to time.Time) ([]domain.Event, error) {
	defer s.hit()()
	out := []domain.Event{}
	for _, e := range s.events {
		if !e.End.Before(from) && !e.Start.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *spyStore) Event(_ context.Context, id string) (*domain.Event, error) {
	defer s.hit()()
	e, ok := s.events[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &e, nil
}

func (s *spyStore) InsertEvent(_ context.Context, e domain.Event) (string, error) {
	defer s.hit()()
	if e.ID == "" {
		e.ID = s.nextID("EV")
	}
	s.events[e.ID] = e
	return e.ID, nil
}

func (s *spyStore) BeginDelete(context.Context) (service.EventBatch, error) {
	defer s.hit()()
	return &spyBatch{store: s}, nil
}

type spyBatch struct {
	store   *spyStore
	pending []string
}

func (b *spyBatch) Remove(_ context.Context, id string) error {
	defer b.store.hit()()
	if _, ok := b.store.events[id]; !ok {
		return service.ErrNotFound
	}
	b.pending = append(b.pending, id)
	return nil
}

func (b *spyBatch) Commit(context.Context) error {
	defer b.store.hit()()
	for _, id := range b.pending {
		delete(b.store.events, id)
	}
	return nil
}

func (s *spyStore) ReminderLists(context.Context) ([]domain.RemindersList, error) {
	defer s.hit()()
	return append([]domain.RemindersList(nil), s.lists...), nil
}

func (s *spyStore) ReminderList(_ context.Context, id string) (*domain.RemindersList, error) {
	defer s.hit()()
	for _, l := range s.lists {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *spyStore) DefaultReminderList(context.Context) (*domain.RemindersList, error) {
	defer s.hit()()
	for _, l := range s.lists {
		if l.Default {
			return &l, nil
		}
	}
	return nil, nil
}

func (s *spyStore) CreateReminderList(_ context.Context, nc domain.NewCalendar) (string, error) {
	defer s.hit()()
	id := s.nextID("LIST")
	s.lists = append(s.lists, domain.RemindersList{ID: id, Title: nc.Title, Writable: true})
	return id, nil
}

func (s *spyStore) DeleteReminderList(_ context.Context, id string) error {
	defer s.hit()()
	for i, l := range s.lists {
		if l.ID == id {
			s.lists = append(s.lists[:i], s.lists[i+1:]...)
			return nil
		}
	}
	return service.ErrNotFound
}

func (s *spyStore) InsertReminder(_ context.Context, r domain.Reminder) (string, error) {
	defer s.hit()()
	r.ID = s.nextID("REM")
	s.reminders[r.ID] = r
	return r.ID, nil
}

// memPermissions is an in-memory permission.StateStore.
type memPermissions struct {
	mu     sync.Mutex
	states map[domain.PermissionAlias]domain.PermissionState
}

func (m *memPermissions) PermissionState(_ context.Context, a domain.PermissionAlias) (domain.PermissionState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[a]
	return st, ok, nil
}

func (m *memPermissions) SetPermissionState(_ context.Context, a domain.PermissionAlias, st domain.PermissionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = map[domain.PermissionAlias]domain.PermissionState{}
	}
	m.states[a] = st
	return nil
}
