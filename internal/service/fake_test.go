package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
)

// memStore is an in-memory CalendarStore and ReminderStore.
type memStore struct {
	mu         sync.Mutex
	calendars  []domain.Calendar
	events     map[string]domain.Event
	lists      []domain.RemindersList
	reminders  map[string]domain.Reminder
	commitErr  error
	removeErr  map[string]error
	nextID     int
	calls      int
	lastBatch  *memBatch
	noDefault  bool
	defaultCal string
}

func newMemStore() *memStore {
	return &memStore{
		events:    map[string]domain.Event{},
		reminders: map[string]domain.Reminder{},
		removeErr: map[string]error{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s_%d", prefix, m.nextID)
}

func (m *memStore) Calendars(context.Context) ([]domain.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return append([]domain.Calendar(nil), m.calendars...), nil
}

func (m *memStore) Calendar(_ context.Context, id string) (*domain.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range m.calendars {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) DefaultCalendar(context.Context) (*domain.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range m.calendars {
		if c.Default {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCalendar(_ context.Context, cal domain.NewCalendar) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	id := m.id("CAL")
	m.calendars = append(m.calendars, domain.Calendar{ID: id, Title: cal.Title, Color: cal.Color, Writable: true})
	return id, nil
}

func (m *memStore) DeleteCalendar(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i, c := range m.calendars {
		if c.ID == id {
			m.calendars = append(m.calendars[:i], m.calendars[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) EventsInRange(_ context.Context, from, to time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var out []domain.Event
	for _, e := range m.events {
		if !e.End.Before(from) && !e.Start.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Event(_ context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memStore) InsertEvent(_ context.Context, e domain.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if e.ID == "" {
		e.ID = m.id("EV")
	}
	m.events[e.ID] = e
	return e.ID, nil
}

func (m *memStore) BeginDelete(context.Context) (EventBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastBatch = &memBatch{store: m}
	return m.lastBatch, nil
}

type memBatch struct {
	store   *memStore
	removed []string
}

func (b *memBatch) Remove(_ context.Context, id string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if err := b.store.removeErr[id]; err != nil {
		return err
	}
	if _, ok := b.store.events[id]; !ok {
		return ErrNotFound
	}
	b.removed = append(b.removed, id)
	return nil
}

func (b *memBatch) Commit(context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.commitErr != nil {
		return b.store.commitErr
	}
	for _, id := range b.removed {
		delete(b.store.events, id)
	}
	return nil
}

func (m *memStore) ReminderLists(context.Context) ([]domain.RemindersList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RemindersList(nil), m.lists...), nil
}

func (m *memStore) ReminderList(_ context.Context, id string) (*domain.RemindersList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lists {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) DefaultReminderList(context.Context) (*domain.RemindersList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lists {
		if l.Default {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateReminderList(_ context.Context, l domain.NewCalendar) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id("LIST")
	m.lists = append(m.lists, domain.RemindersList{ID: id, Title: l.Title, Writable: true})
	return id, nil
}

func (m *memStore) DeleteReminderList(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.lists {
		if l.ID == id {
			m.lists = append(m.lists[:i], m.lists[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) InsertReminder(_ context.Context, r domain.Reminder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id("REM")
	m.reminders[r.ID] = r
	return r.ID, nil
}

var errDisk = errors.New("disk I/O error")
