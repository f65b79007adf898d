package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
)

// --- mock implementations ---

type memoryLedger struct {
	mu      sync.Mutex
	status  map[string]string
	failing bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{status: map[string]string{}}
}

func (l *memoryLedger) Claim(ctx context.Context, key, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return false, errors.New("dynamodb unavailable")
	}
	if _, ok := l.status[key]; ok {
		return false, nil
	}
	l.status[key] = idempotency.StatusInProgress
	return true, nil
}

func (l *memoryLedger) MarkDone(ctx context.Context, key, body string, status int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status[key] = idempotency.StatusDone
	return nil
}

func (l *memoryLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status[key] != idempotency.StatusDone {
		delete(l.status, key)
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func sqsMessage(t *testing.T, id string, msg notify.Message) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func paidMessage() notify.Message {
	return notify.Message{
		Kind:         notify.KindOrderPaid,
		To:           "rahim@example.com",
		Name:         "Rahim",
		OrderID:      "o-1",
		ReferenceNo:  "AB12CD34EF",
		ProductTitle: "Learning Go",
		TrxID:        "TRX1",
		DownloadURL:  "https://shop.example/api/orders/o-1/download",
	}
}

// --- test cases ---

func TestProcessor_SendsMail(t *testing.T) {
	ledger := newMemoryLedger()
	mailer := &fakeMailer{}
	p := NewProcessor(ledger, mailer, log.NewStdLogger(io.Discard))

	resp, err := p.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsMessage(t, "m1", paidMessage())},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %v", resp.BatchItemFailures)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "rahim@example.com" {
		t.Fatalf("expected one mail, got %+v", mailer.sent)
	}
	if ledger.status[idempotency.MailKey("m1")] != idempotency.StatusDone {
		t.Fatalf("expected ledger entry DONE, got %q", ledger.status[idempotency.MailKey("m1")])
	}
}

func TestProcessor_RedeliveredMessageSentOnce(t *testing.T) {
	ledger := newMemoryLedger()
	mailer := &fakeMailer{}
	p := NewProcessor(ledger, mailer, log.NewStdLogger(io.Discard))
	rec := sqsMessage(t, "m1", paidMessage())

	for i := 0; i < 3; i++ {
		if _, err := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{rec}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one mail, got %d", len(mailer.sent))
	}
}

func TestProcessor_InvalidMessageDropped(t *testing.T) {
	mailer := &fakeMailer{}
	p := NewProcessor(newMemoryLedger(), mailer, log.NewStdLogger(io.Discard))

	resp, err := p.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			{MessageId: "bad-json", Body: "{not json"},
			sqsMessage(t, "bad-kind", notify.Message{Kind: "unknown", To: "a@b.com"}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("malformed messages must not be retried: %v", resp.BatchItemFailures)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(mailer.sent))
	}
}

func TestProcessor_SendFailureRetriesOnlyThatMessage(t *testing.T) {
	ledger := newMemoryLedger()
	mailer := &fakeMailer{err: errors.New("smtp: 421 try later")}
	p := NewProcessor(ledger, mailer, log.NewStdLogger(io.Discard))

	resp, _ := p.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsMessage(t, "m1", paidMessage())},
	})
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m1" {
		t.Fatalf("expected m1 reported as failed, got %v", resp.BatchItemFailures)
	}
	if _, ok := ledger.status[idempotency.MailKey("m1")]; ok {
		t.Fatal("claim must be released so the retry can send")
	}

	mailer.err = nil
	resp, _ = p.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsMessage(t, "m1", paidMessage())},
	})
	if len(resp.BatchItemFailures) != 0 || len(mailer.sent) != 1 {
		t.Fatalf("expected retry to send, failures=%v sent=%d", resp.BatchItemFailures, len(mailer.sent))
	}
}

func TestProcessor_LedgerUnavailable(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.failing = true
	mailer := &fakeMailer{}
	p := NewProcessor(ledger, mailer, log.NewStdLogger(io.Discard))

	resp, _ := p.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsMessage(t, "m1", paidMessage())},
	})
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected retry, got %v", resp.BatchItemFailures)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("mail must not be sent without a claim")
	}
}
