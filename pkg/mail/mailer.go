package mail

import (
	"context"
	"fmt"
	"io"
	"sync"

	gomail "gopkg.in/gomail.v2"
)

// Attachment is a file included with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
}

// Sender delivers email. Failures must never block the API path; callers
// log and continue, or push the send through the task queue.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds an SMTP-backed sender.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers one message, honoring context cancellation before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)
	for _, att := range msg.Attachments {
		data := att.Data
		m.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Recorder captures messages instead of sending them. Used in tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned from every Send.
	Err error
}

// NewRecorder builds an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records the message or fails with the configured error.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
