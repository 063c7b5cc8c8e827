package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/engram-os/engram-os/internal/agents"
)

// CalendarClient adapts the Google Calendar API to the event surface
// the scheduling agent needs.
type CalendarClient struct {
	svc        *calendar.Service
	calendarID string
}

func NewCalendarClient(ctx context.Context, client *http.Client) (*CalendarClient, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &CalendarClient{svc: svc, calendarID: "primary"}, nil
}

// CreateEvent inserts the event on the primary calendar and returns
// its web link.
func (c *CalendarClient) CreateEvent(ctx context.Context, ev agents.Event) (string, error) {
	item := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
	}
	if ev.Time.AllDay {
		item.Start = &calendar.EventDateTime{Date: ev.Time.Start.Format("2006-01-02")}
		item.End = &calendar.EventDateTime{Date: ev.Time.End.Format("2006-01-02")}
	} else {
		item.Start = &calendar.EventDateTime{DateTime: ev.Time.Start.UTC().Format(time.RFC3339)}
		item.End = &calendar.EventDateTime{DateTime: ev.Time.End.UTC().Format(time.RFC3339)}
	}

	created, err := c.svc.Events.Insert(c.calendarID, item).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event %q: %w", ev.Title, err)
	}
	return created.HtmlLink, nil
}
