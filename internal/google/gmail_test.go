package google

import (
	"testing"

	"google.golang.org/api/gmail/v1"
)

func TestHeaderValue(t *testing.T) {
	headers := []*gmail.MessagePartHeader{
		{Name: "From", Value: "alice@example.com"},
		{Name: "subject", Value: "Hello"},
	}

	if got := headerValue(headers, "From", "?"); got != "alice@example.com" {
		t.Fatalf("From = %q", got)
	}
	// Header name lookup is case-insensitive.
	if got := headerValue(headers, "Subject", "(No Subject)"); got != "Hello" {
		t.Fatalf("Subject = %q", got)
	}
	if got := headerValue(headers, "Message-ID", ""); got != "" {
		t.Fatalf("missing header = %q, want fallback", got)
	}
}

func TestHeaderValueEmptyList(t *testing.T) {
	if got := headerValue(nil, "Subject", "(No Subject)"); got != "(No Subject)" {
		t.Fatalf("empty headers = %q, want fallback", got)
	}
}
