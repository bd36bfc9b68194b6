package service

import (
	"context"
	"testing"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

func TestCreateReminderListFallback(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.lists = []domain.RemindersList{
		{ID: "inbox", Title: "Inbox", Writable: true, Default: true},
		{ID: "shared", Title: "Shared", Writable: false},
	}
	svc := NewReminderService(store, nil)

	id, err := svc.Create(ctx, domain.Reminder{Title: "Milk", ListID: "gone", Priority: 42})
	if err != nil {
		t.Fatal(err)
	}
	r := store.reminders[id]
	if r.ListID != "inbox" {
		t.Errorf("list = %s, want inbox", r.ListID)
	}
	if r.Priority != 9 {
		t.Errorf("priority = %d, want clamped 9", r.Priority)
	}

	_, err = svc.Create(ctx, domain.Reminder{Title: "x", ListID: "shared"})
	if k := Classify(err, "createReminder").Kind; k != pluginerr.NoAccess {
		t.Fatalf("read-only list: %s", k)
	}

	store.lists[0].Default = false
	_, err = svc.Create(ctx, domain.Reminder{Title: "x"})
	if k := Classify(err, "createReminder").Kind; k != pluginerr.NoDefaultCalendar {
		t.Fatalf("no default list: %s", k)
	}
}

func TestCreateReminderRejectsBadRecurrence(t *testing.T) {
	store := newMemStore()
	store.lists = []domain.RemindersList{{ID: "inbox", Writable: true, Default: true}}
	due := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := NewReminderService(store, nil).Create(context.Background(), domain.Reminder{
		Title:      "x",
		Due:        &due,
		Recurrence: &domain.Recurrence{Frequency: domain.RecurWeekly, Interval: 0},
	})
	if err == nil {
		t.Fatal("zero interval accepted")
	}
	if len(store.reminders) != 0 {
		t.Fatal("reminder stored despite invalid recurrence")
	}
}

func TestReminderLists(t *testing.T) {
	ctx := context.Background()
	svc := NewReminderService(newMemStore(), nil)

	lists, err := svc.Lists(ctx)
	if err != nil || lists == nil || len(lists) != 0 {
		t.Fatalf("empty store: %v %v", lists, err)
	}
	def, err := svc.DefaultList(ctx)
	if err != nil || def != nil {
		t.Fatalf("default on empty store: %v %v", def, err)
	}

	id, err := svc.CreateList(ctx, domain.NewCalendar{Title: "Groceries"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteList(ctx, id); err != nil {
		t.Fatal(err)
	}
	if k := Classify(svc.DeleteList(ctx, id), "deleteRemindersList").Kind; k != pluginerr.CalendarNotFound {
		t.Fatalf("second delete: %s", k)
	}
}
