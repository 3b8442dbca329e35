// Package provider declares the engine's external collaborator
// interfaces: mail, calendar, web search, and document-text extraction.
// The engine never talks to Gmail, Google Calendar, or a search API
// directly — it depends on these interfaces so a test can swap in stubs
// and a production binary can wire concrete adapters (see
// internal/provider/google and internal/provider/websearch).
package provider

import (
	"context"
	"time"

	"mailrelay.app/engine/internal/model"
)

// BusyRange is one interval during which the calendar owner is unavailable.
type BusyRange struct {
	Start time.Time
	End   time.Time
}

// EventRef is enough information about a calendar event for the scheduler
// to report it back to the model and to cancel/reschedule it later.
type EventRef struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	Link    string
}

// Message is one fetched mail message, decoded to text/plain where possible.
type Message struct {
	ID            string
	ThreadID      string
	Subject       string
	SenderDisplay string
	SenderAddress string
	Body          string
	Snippet       string
	ReceivedAt    time.Time
}

// MailProvider is the engine's view of a mailbox: reading unread and sent
// mail, thread history, sending a composed reply, and marking messages read.
type MailProvider interface {
	// ListUnread returns unread messages received since since.
	ListUnread(ctx context.Context, accessToken string, since time.Time) ([]Message, error)
	// FetchThread returns every message in the thread containing messageID,
	// oldest first, used to build ConversationMessage history.
	FetchThread(ctx context.Context, accessToken, messageID string) ([]Message, error)
	// ListSent returns SENT-labeled messages from the last `days` days.
	ListSent(ctx context.Context, accessToken string, days int) ([]Message, error)
	// Send delivers a MIME message with an optional single binary
	// attachment, in reply to inReplyToMessageID (empty for a fresh send).
	Send(ctx context.Context, accessToken string, msg OutgoingMessage) error
	// MarkRead marks messageID as read.
	MarkRead(ctx context.Context, accessToken, messageID string) error
}

// OutgoingMessage is a reply ready to send.
type OutgoingMessage struct {
	InReplyToMessageID string
	To                 string
	Subject            string
	Body               string
	Attachment         *model.Attachment
}

// CalendarProvider is the engine's view of a calendar: free/busy, and
// create/list/update/delete of events.
type CalendarProvider interface {
	// FreeBusy returns busy ranges for the calendar owner between from and to.
	FreeBusy(ctx context.Context, accessToken string, from, to time.Time) ([]BusyRange, error)
	// Insert creates an event and returns its reference, notifying attendees.
	Insert(ctx context.Context, accessToken string, event NewEvent) (EventRef, error)
	// ListUpcoming returns up to limit upcoming events ordered by start time.
	ListUpcoming(ctx context.Context, accessToken string, limit int) ([]EventRef, error)
	// Update moves an existing event to a new start/end.
	Update(ctx context.Context, accessToken, eventID string, start, end time.Time) (EventRef, error)
	// Delete removes an event.
	Delete(ctx context.Context, accessToken, eventID string) error
}

// NewEvent describes an event to create.
type NewEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// WebResult is one web search hit.
type WebResult struct {
	Title   string
	Snippet string
	Link    string
}

// WebSearchProvider answers free-text queries with ranked results.
type WebSearchProvider interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}

// DocumentExtractor extracts plain text from a file's bytes given its
// filename (used for the extension). The engine treats PDF/DOCX parsing
// as an external collaborator's concern; callers handle .txt/.md inline
// since that needs no library.
type DocumentExtractor interface {
	// Extract returns the concatenated text content of the file, or an
	// error if the format is unsupported or unparseable.
	Extract(filename string, data []byte) (string, error)
}
