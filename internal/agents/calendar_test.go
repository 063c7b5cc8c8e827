package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/engram-os/engram-os/internal/memory"
)

type fakePendingStore struct {
	pending   []memory.Record
	processed []string
}

func (s *fakePendingStore) ListPending(ctx context.Context, userID string, limit int) ([]memory.Record, error) {
	var out []memory.Record
	for _, r := range s.pending {
		if !contains(s.processed, r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakePendingStore) MarkProcessed(ctx context.Context, id string) error {
	s.processed = append(s.processed, id)
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

type fakeCalendar struct {
	created []Event
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, ev Event) (string, error) {
	c.created = append(c.created, ev)
	return "https://calendar.example/event/1", nil
}

const memID = "7f3e9a2b-1c4d-4e5f-8a6b-9c0d1e2f3a4b"

func TestCalendarAgentSchedulesAndMarksProcessed(t *testing.T) {
	store := &fakePendingStore{pending: []memory.Record{
		{ID: memID, UserID: "u1", Memory: "Dentist appointment tomorrow at 2pm"},
	}}
	chat := &scriptedChatter{responses: map[string]string{
		"Dentist": `{"action": "schedule", "title": "Dentist", "time": "tomorrow at 2pm", "description": "Dentist appointment", "memory_id": "` + memID + `"}`,
	}}
	cal := &fakeCalendar{}
	_, activity := newTestLedger(t)

	agent := NewCalendarAgent("u1", store, chat, cal, activity)
	agent.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

	if err := agent.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(cal.created) != 1 {
		t.Fatalf("events created = %d, want 1", len(cal.created))
	}
	ev := cal.created[0]
	if ev.Title != "Dentist" {
		t.Fatalf("title = %q", ev.Title)
	}
	if !strings.Contains(ev.Description, "(Context: tomorrow at 2pm)") {
		t.Fatalf("description missing context: %q", ev.Description)
	}
	want := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	if !ev.Time.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", ev.Time.Start, want)
	}
	if !contains(store.processed, memID) {
		t.Fatal("memory not marked processed")
	}
}

func TestCalendarAgentRecoversMangledMemoryID(t *testing.T) {
	store := &fakePendingStore{pending: []memory.Record{
		{ID: memID, UserID: "u1", Memory: "Call with Sam next monday 10am"},
	}}
	// The model wraps the id in prose and uppercases it.
	chat := &scriptedChatter{responses: map[string]string{
		"Sam": `{"action": "schedule", "title": "Call with Sam", "time": "monday 10am", "description": "Call", "memory_id": "the note with ID ` + strings.ToUpper(memID) + ` please"}`,
	}}
	cal := &fakeCalendar{}
	_, activity := newTestLedger(t)

	agent := NewCalendarAgent("u1", store, chat, cal, activity)

	if err := agent.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !contains(store.processed, memID) {
		t.Fatal("uppercased id inside prose should still resolve")
	}
}

func TestCalendarAgentUnmappedIDLeavesMemoryPending(t *testing.T) {
	store := &fakePendingStore{pending: []memory.Record{
		{ID: memID, UserID: "u1", Memory: "Gym session friday 6pm"},
	}}
	chat := &scriptedChatter{responses: map[string]string{
		"Gym": `{"action": "schedule", "title": "Gym", "time": "friday 6pm", "description": "Gym", "memory_id": "memory-one"}`,
	}}
	cal := &fakeCalendar{}
	_, activity := newTestLedger(t)

	agent := NewCalendarAgent("u1", store, chat, cal, activity)

	if err := agent.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(cal.created) != 1 {
		t.Fatalf("events created = %d, want 1", len(cal.created))
	}
	if len(store.processed) != 0 {
		t.Fatal("unresolvable id must leave the memory pending for retry")
	}
}

func TestCalendarAgentNoDecisionIsNoOp(t *testing.T) {
	store := &fakePendingStore{pending: []memory.Record{
		{ID: memID, UserID: "u1", Memory: "Random musing about the weather"},
	}}
	chat := &scriptedChatter{} // falls through to {"action": "ignore"}
	cal := &fakeCalendar{}
	_, activity := newTestLedger(t)

	agent := NewCalendarAgent("u1", store, chat, cal, activity)

	if err := agent.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(cal.created) != 0 {
		t.Fatal("no schedule decision should create no events")
	}
	if len(store.processed) != 0 {
		t.Fatal("memories stay pending without a schedule decision")
	}
}
