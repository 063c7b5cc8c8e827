package agents

import (
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// EventTime is a resolved event window: either a precise one-hour slot
// or an all-day date.
type EventTime struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

var (
	parserOnce sync.Once
	parser     *when.Parser
)

func timeParser() *when.Parser {
	parserOnce.Do(func() {
		parser = when.New(nil)
		parser.Add(en.All...)
		parser.Add(common.All...)
	})
	return parser
}

// ParseEventTime resolves a natural-language time expression
// ("next Thursday 2pm", "tomorrow morning") relative to now.
//
// Fallback rules:
//   - unparseable expression → tomorrow, all-day
//   - parsed moment already in the past → advance exactly 7 days,
//     assuming the next weekly occurrence was meant
//   - a detected time-of-day yields a one-hour event; otherwise the
//     event is all-day
//
// Whether a time-of-day was "detected" is judged by the parsed clock:
// a midnight result is treated as date-only.
func ParseEventTime(expr string, now time.Time) EventTime {
	r, err := timeParser().Parse(expr, now)
	if err != nil || r == nil {
		tomorrow := midnight(now.AddDate(0, 0, 1))
		return EventTime{Start: tomorrow, End: tomorrow.AddDate(0, 0, 1), AllDay: true}
	}

	t := r.Time
	if t.Before(now) {
		t = t.AddDate(0, 0, 7)
	}

	if t.Hour() == 0 && t.Minute() == 0 {
		day := midnight(t)
		return EventTime{Start: day, End: day.AddDate(0, 0, 1), AllDay: true}
	}
	return EventTime{Start: t, End: t.Add(time.Hour)}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
