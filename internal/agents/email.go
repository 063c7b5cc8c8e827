package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/engram-os/engram-os/internal/llm"
)

// Email is the slice of a mailbox message the triage agent looks at.
type Email struct {
	ID      string
	Sender  string
	Subject string
	Body    string
}

// MailService abstracts the mailbox so the agent can be tested
// without a live account.
type MailService interface {
	FetchUnread(ctx context.Context, limit int) ([]Email, error)
	CreateDraftReply(ctx context.Context, emailID, body string) (string, error)
	MarkRead(ctx context.Context, emailID string) error
}

// Chatter is the LLM surface the agents need.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

const emailAgentPrompt = `You are an email triage assistant. You will be shown one email.
Decide whether it deserves a drafted reply or should be ignored.
Respond with a single JSON object and nothing else:
{"action": "draft_reply", "reply_text": "<the full reply body>"}
or
{"action": "ignore"}
Only draft a reply when the email is personal and clearly expects a response.`

// EmailAgent triages unread mail: bulk senders are skipped, already
// handled messages are skipped, and the rest are either ignored or
// answered with a draft.
type EmailAgent struct {
	mail     MailService
	llm      Chatter
	ledger   *Ledger
	activity *ActivityLog
	limit    int
}

func NewEmailAgent(mail MailService, chatter Chatter, ledger *Ledger, activity *ActivityLog, batchLimit int) *EmailAgent {
	if batchLimit <= 0 {
		batchLimit = 5
	}
	return &EmailAgent{mail: mail, llm: chatter, ledger: ledger, activity: activity, limit: batchLimit}
}

// Run executes one triage pass. A failure on one email never stops
// the rest of the batch.
func (a *EmailAgent) Run(ctx context.Context) error {
	a.activity.Log("email", "WAKE_UP", "checking inbox")

	emails, err := a.mail.FetchUnread(ctx, a.limit)
	if err != nil {
		return fmt.Errorf("fetch unread: %w", err)
	}
	if len(emails) == 0 {
		slog.Debug("email agent: inbox clear")
		return nil
	}

	for _, em := range emails {
		if err := a.handle(ctx, em); err != nil {
			slog.Error("email agent: message failed", "email_id", em.ID, "error", err)
		}
	}
	return nil
}

func (a *EmailAgent) handle(ctx context.Context, em Email) error {
	if isBulkSender(em.Sender) {
		slog.Debug("email agent: skipping bulk sender", "sender", em.Sender)
		return nil
	}
	if a.ledger.IsProcessed(ctx, em.ID) {
		slog.Debug("email agent: already handled", "email_id", em.ID)
		return nil
	}

	dec, err := a.decide(ctx, em)
	if err != nil {
		return err
	}

	switch dec.Action {
	case ActionDraftReply:
		if strings.TrimSpace(dec.ReplyText) == "" {
			a.activity.Log("email", "IGNORED", fmt.Sprintf("empty reply for %q", em.Subject))
			return nil
		}
		draftID, err := a.mail.CreateDraftReply(ctx, em.ID, dec.ReplyText)
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		// Ledger first. If the mark-read below fails and this email
		// shows up unread again, the ledger check prevents a second
		// draft for the same thread.
		a.ledger.Record(ctx, em.ID, draftID)
		a.activity.Log("email", "DRAFT_CREATED", fmt.Sprintf("re: %s", em.Subject))
		if err := a.mail.MarkRead(ctx, em.ID); err != nil {
			slog.Warn("email agent: mark-read failed, draft already recorded",
				"email_id", em.ID, "error", err)
		}
	case ActionIgnore:
		a.activity.Log("email", "IGNORED", em.Subject)
	default:
		slog.Debug("email agent: no actionable decision", "email_id", em.ID)
	}
	return nil
}

func (a *EmailAgent) decide(ctx context.Context, em Email) (Decision, error) {
	user := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", em.Sender, em.Subject, em.Body)
	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: emailAgentPrompt},
			{Role: "user", Content: user},
		},
		JSONMode: true,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("triage decision: %w", err)
	}
	dec, ok := ExtractDecision(resp.Content)
	if !ok {
		return Decision{Action: ActionNone}, nil
	}
	return dec, nil
}
