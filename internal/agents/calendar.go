package agents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/engram-os/engram-os/internal/llm"
	"github.com/engram-os/engram-os/internal/memory"
)

// Event is what the scheduling agent asks the calendar to create.
type Event struct {
	Title       string
	Description string
	Time        EventTime
}

// CalendarService abstracts the calendar backend.
type CalendarService interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
}

// PendingSource yields memories awaiting scheduling review and lets
// the agent retire them once handled.
type PendingSource interface {
	ListPending(ctx context.Context, userID string, limit int) ([]memory.Record, error)
	MarkProcessed(ctx context.Context, id string) error
}

const calendarAgentPrompt = `You are a scheduling assistant. You will be shown a batch of saved notes,
each prefixed with its identifier like "[ID: <uuid>]".
If exactly one note describes a concrete commitment that belongs on a calendar,
respond with a single JSON object and nothing else:
{"action": "schedule", "title": "<short event title>", "time": "<the time expression from the note>", "description": "<one line summary>", "memory_id": "<the ID of that note>"}
If nothing needs scheduling, respond with {"action": "none"}.`

var uuidPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// CalendarAgent reviews pending memories and turns commitments into
// calendar events. A memory is only marked processed after its event
// exists, so a failure leaves it to be retried on the next pass.
type CalendarAgent struct {
	userID   string
	store    PendingSource
	llm      Chatter
	cal      CalendarService
	activity *ActivityLog
	now      func() time.Time
}

func NewCalendarAgent(userID string, store PendingSource, chatter Chatter, cal CalendarService, activity *ActivityLog) *CalendarAgent {
	return &CalendarAgent{
		userID:   userID,
		store:    store,
		llm:      chatter,
		cal:      cal,
		activity: activity,
		now:      time.Now,
	}
}

// Run executes one scheduling pass over the pending memories.
func (a *CalendarAgent) Run(ctx context.Context) error {
	a.activity.Log("calendar", "WAKE_UP", "reviewing pending memories")

	pending, err := a.store.ListPending(ctx, a.userID, 20)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		slog.Debug("calendar agent: nothing pending")
		return nil
	}

	block, idMap := buildPendingBlock(pending)

	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: calendarAgentPrompt},
			{Role: "user", Content: block},
		},
		JSONMode: true,
	})
	if err != nil {
		return fmt.Errorf("scheduling decision: %w", err)
	}

	dec, ok := ExtractDecision(resp.Content)
	if !ok || dec.Action != ActionSchedule {
		slog.Debug("calendar agent: nothing to schedule")
		return nil
	}
	return a.schedule(ctx, dec, idMap)
}

func (a *CalendarAgent) schedule(ctx context.Context, dec Decision, idMap map[string]string) error {
	when := ParseEventTime(dec.Time, a.now())

	desc := dec.Description
	if desc != "" {
		desc = fmt.Sprintf("%s (Context: %s)", desc, dec.Time)
	} else {
		desc = fmt.Sprintf("(Context: %s)", dec.Time)
	}

	link, err := a.cal.CreateEvent(ctx, Event{Title: dec.Title, Description: desc, Time: when})
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	a.activity.Log("calendar", "EVENT_CREATED", fmt.Sprintf("%s -> %s", dec.Title, link))

	// Models routinely mangle the identifier they were shown. Pull
	// any UUID-shaped substring back out and map it to a real id
	// before retiring the memory.
	memID := resolveMemoryID(dec.MemoryID, idMap)
	if memID == "" {
		slog.Warn("calendar agent: could not map memory id, will retry next pass",
			"raw_id", dec.MemoryID)
		return nil
	}
	if err := a.store.MarkProcessed(ctx, memID); err != nil {
		slog.Warn("calendar agent: mark-processed failed", "memory_id", memID, "error", err)
	}
	return nil
}

func buildPendingBlock(pending []memory.Record) (string, map[string]string) {
	var b strings.Builder
	idMap := make(map[string]string, len(pending))
	for _, r := range pending {
		fmt.Fprintf(&b, "[ID: %s] %s\n", r.ID, r.Memory)
		idMap[strings.ToLower(r.ID)] = r.ID
	}
	return b.String(), idMap
}

func resolveMemoryID(raw string, idMap map[string]string) string {
	m := uuidPattern.FindString(raw)
	if m == "" {
		return ""
	}
	return idMap[strings.ToLower(m)]
}
