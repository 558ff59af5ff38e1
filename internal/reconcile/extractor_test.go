package reconcile

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailfeed/backend/internal/domain"
)

func encodeBody(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtract_FullMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:       "msg-1",
		ThreadId: "thread-1",
		Snippet:  "preview text",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Hello"},
				{Name: "From", Value: "alice@example.com"},
				{Name: "To", Value: "bob@example.com"},
				{Name: "Date", Value: "Mon, 13 Jan 2025 10:00:00 +0000"},
			},
			Body: &gmailapi.MessagePartBody{Data: encodeBody("plain body")},
		},
	}

	record := Extract(msg)
	assert.Equal(t, "msg-1", record.ID)
	assert.Equal(t, "thread-1", record.ThreadID)
	assert.Equal(t, "Hello", record.Subject)
	assert.Equal(t, "alice@example.com", record.From)
	assert.Equal(t, "bob@example.com", record.To)
	assert.Equal(t, "Mon, 13 Jan 2025 10:00:00 +0000", record.Date)
	assert.Equal(t, "preview text", record.Snippet)
	assert.Equal(t, "plain body", record.Body)
}

func TestExtract_CaseInsensitiveHeaders(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "msg-1",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "subject", Value: "lower"},
				{Name: "FROM", Value: "upper@example.com"},
			},
		},
	}

	record := Extract(msg)
	assert.Equal(t, "lower", record.Subject)
	assert.Equal(t, "upper@example.com", record.From)
}

func TestExtract_PlainTextPart(t *testing.T) {
	// No flat body: the first text/plain part wins, found depth-first
	msg := &gmailapi.Message{
		Id: "msg-1",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "multipart/related",
					Parts: []*gmailapi.MessagePart{
						{
							MimeType: "text/plain; charset=utf-8",
							Body:     &gmailapi.MessagePartBody{Data: encodeBody("nested plain")},
						},
					},
				},
				{
					MimeType: "text/html",
					Body:     &gmailapi.MessagePartBody{Data: encodeBody("<p>html</p>")},
				},
			},
		},
	}

	record := Extract(msg)
	assert.Equal(t, "nested plain", record.Body)
}

func TestExtract_MissingFields(t *testing.T) {
	record := Extract(&gmailapi.Message{Id: "msg-1"})
	assert.Equal(t, "msg-1", record.ID)
	assert.Empty(t, record.Subject)
	assert.Empty(t, record.From)
	assert.Empty(t, record.Body)
}

func TestExtract_CorruptBodyData(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "msg-1",
		Payload: &gmailapi.MessagePart{
			Body: &gmailapi.MessagePartBody{Data: "%%%not-base64%%%"},
		},
	}

	record := Extract(msg)
	assert.Empty(t, record.Body)
}

func TestExtract_BodyTruncation(t *testing.T) {
	long := strings.Repeat("x", 5000)
	msg := &gmailapi.Message{
		Id: "msg-1",
		Payload: &gmailapi.MessagePart{
			Body: &gmailapi.MessagePartBody{Data: encodeBody(long)},
		},
	}

	record := Extract(msg)
	assert.Len(t, record.Body, domain.BodyLimit)
	assert.True(t, strings.HasPrefix(long, record.Body))
}

func TestExtract_UnpaddedBodyData(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "msg-1",
		Payload: &gmailapi.MessagePart{
			Body: &gmailapi.MessagePartBody{
				Data: base64.RawURLEncoding.EncodeToString([]byte("no padding")),
			},
		},
	}

	record := Extract(msg)
	assert.Equal(t, "no padding", record.Body)
}
