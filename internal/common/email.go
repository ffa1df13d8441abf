package common

import (
	"context"
	"sync"
)

// EmailSender delivers transactional mail (order confirmations, coupon
// assignment notices). Production wiring is out of band; the engine only
// needs the seam.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NopEmailSender discards all mail.
type NopEmailSender struct{}

func (NopEmailSender) Send(context.Context, string, string, string) error { return nil }

// SentEmail is a captured message.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// InMemoryEmailSender records messages for tests.
type InMemoryEmailSender struct {
	mu   sync.Mutex
	sent []SentEmail
}

func (s *InMemoryEmailSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (s *InMemoryEmailSender) Sent() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentEmail, len(s.sent))
	copy(out, s.sent)
	return out
}
