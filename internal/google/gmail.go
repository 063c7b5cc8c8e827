package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/engram-os/engram-os/internal/agents"
)

const gmailUser = "me"

// GmailService adapts the Gmail API to the mailbox surface the email
// agent needs.
type GmailService struct {
	svc *gmail.Service
}

func NewGmailService(ctx context.Context, client *http.Client) (*GmailService, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &GmailService{svc: svc}, nil
}

// FetchUnread returns up to limit unread inbox messages. Bodies are
// the Gmail snippet, which is enough for a triage decision.
func (g *GmailService) FetchUnread(ctx context.Context, limit int) ([]agents.Email, error) {
	if limit <= 0 {
		limit = 5
	}
	list, err := g.svc.Users.Messages.List(gmailUser).
		LabelIds("INBOX", "UNREAD").
		MaxResults(int64(limit)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	var out []agents.Email
	for _, m := range list.Messages {
		msg, err := g.svc.Users.Messages.Get(gmailUser, m.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Message-ID").
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", m.Id, err)
		}
		out = append(out, agents.Email{
			ID:      msg.Id,
			Sender:  headerValue(msg.Payload.Headers, "From", "Unknown Sender"),
			Subject: headerValue(msg.Payload.Headers, "Subject", "(No Subject)"),
			Body:    msg.Snippet,
		})
	}
	return out, nil
}

// CreateDraftReply drafts a reply on the original message's thread.
// Threading headers are only attached when the original carries a
// Message-ID, so a headerless message still gets a plain draft.
func (g *GmailService) CreateDraftReply(ctx context.Context, emailID, body string) (string, error) {
	orig, err := g.svc.Users.Messages.Get(gmailUser, emailID).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Message-ID").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get original %s: %w", emailID, err)
	}

	to := headerValue(orig.Payload.Headers, "From", "")
	subject := headerValue(orig.Payload.Headers, "Subject", "(No Subject)")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	messageID := headerValue(orig.Payload.Headers, "Message-ID", "")

	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	if messageID != "" {
		fmt.Fprintf(&raw, "In-Reply-To: %s\r\n", messageID)
		fmt.Fprintf(&raw, "References: %s\r\n", messageID)
	}
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(body)

	draft, err := g.svc.Users.Drafts.Create(gmailUser, &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.RawURLEncoding.EncodeToString([]byte(raw.String())),
			ThreadId: orig.ThreadId,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	return draft.Id, nil
}

func (g *GmailService) MarkRead(ctx context.Context, emailID string) error {
	_, err := g.svc.Users.Messages.Modify(gmailUser, emailID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark read %s: %w", emailID, err)
	}
	return nil
}

// headerValue finds a header by name, case-insensitively. Missing
// headers yield the fallback rather than an error because real inbox
// traffic includes messages with no Subject at all.
func headerValue(headers []*gmail.MessagePartHeader, name, fallback string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return fallback
}
