// Package google adapts Gmail and Google Calendar to the engine's
// MailProvider and CalendarProvider interfaces. Token handling (refresh,
// storage) belongs to the caller; this package only spends an
// already-valid OAuth2 access token on each call.
package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailrelay.app/engine/internal/provider"
)

const gmailUser = "me"

// MailAdapter implements provider.MailProvider over the Gmail API.
type MailAdapter struct {
	timeout time.Duration
}

// NewMailAdapter returns a Gmail-backed MailProvider. timeout bounds each
// Gmail API call; zero means no client-side bound.
func NewMailAdapter(timeout time.Duration) *MailAdapter {
	return &MailAdapter{timeout: timeout}
}

func (a *MailAdapter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *MailAdapter) service(ctx context.Context, accessToken string) (*gmailv1.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("gmail: build service: %w", err)
	}
	return svc, nil
}

func (a *MailAdapter) ListUnread(ctx context.Context, accessToken string, since time.Time) ([]provider.Message, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("is:unread after:%d", since.Unix())
	list, err := svc.Users.Messages.List(gmailUser).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: list unread: %w", err)
	}

	messages := make([]provider.Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := fetchFullMessage(ctx, svc, m.Id)
		if err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (a *MailAdapter) FetchThread(ctx context.Context, accessToken, messageID string) ([]provider.Message, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	head, err := svc.Users.Messages.Get(gmailUser, messageID).Format("metadata").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: get message: %w", err)
	}

	thread, err := svc.Users.Threads.Get(gmailUser, head.ThreadId).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: get thread: %w", err)
	}

	messages := make([]provider.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, toMessage(m))
	}
	return messages, nil
}

func (a *MailAdapter) ListSent(ctx context.Context, accessToken string, days int) ([]provider.Message, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	query := fmt.Sprintf("label:sent after:%d", since.Unix())
	list, err := svc.Users.Messages.List(gmailUser).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: list sent: %w", err)
	}

	messages := make([]provider.Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := fetchFullMessage(ctx, svc, m.Id)
		if err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (a *MailAdapter) Send(ctx context.Context, accessToken string, out provider.OutgoingMessage) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	raw := buildMIME(out)
	msg := &gmailv1.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if out.InReplyToMessageID != "" {
		if head, err := svc.Users.Messages.Get(gmailUser, out.InReplyToMessageID).Format("metadata").Context(ctx).Do(); err == nil {
			msg.ThreadId = head.ThreadId
		}
	}

	if _, err := svc.Users.Messages.Send(gmailUser, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: send: %w", err)
	}
	return nil
}

func (a *MailAdapter) MarkRead(ctx context.Context, accessToken, messageID string) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	svc, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}
	_, err = svc.Users.Messages.Modify(gmailUser, messageID, &gmailv1.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: mark read: %w", err)
	}
	return nil
}

func fetchFullMessage(ctx context.Context, svc *gmailv1.Service, id string) (provider.Message, error) {
	msg, err := svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return provider.Message{}, fmt.Errorf("gmail: get message: %w", err)
	}
	return toMessage(msg), nil
}

func toMessage(msg *gmailv1.Message) provider.Message {
	out := provider.Message{ID: msg.Id, ThreadID: msg.ThreadId, Snippet: msg.Snippet}
	if msg.InternalDate > 0 {
		out.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			out.Subject = h.Value
		case "from":
			out.SenderDisplay, out.SenderAddress = splitFromHeader(h.Value)
		}
	}
	out.Body = extractPlainText(msg.Payload)
	return out
}

func splitFromHeader(from string) (display, address string) {
	if idx := strings.Index(from, "<"); idx >= 0 {
		display = strings.Trim(strings.TrimSpace(from[:idx]), `"`)
		address = strings.TrimSuffix(strings.TrimSpace(from[idx+1:]), ">")
		return display, address
	}
	return from, from
}

func extractPlainText(part *gmailv1.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(decoded)
		}
	}
	for _, p := range part.Parts {
		if text := extractPlainText(p); text != "" {
			return text
		}
	}
	return ""
}

func buildMIME(out provider.OutgoingMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", out.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", out.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if out.Attachment == nil {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(out.Body)
		return []byte(b.String())
	}

	boundary := "mailrelay-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(out.Body)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", out.Attachment.Filename)
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", out.Attachment.Filename)
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString(out.Attachment.Bytes))
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
