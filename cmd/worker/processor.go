package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
)

// Ledger is the part of *idempotency.Store the worker uses.
type Ledger interface {
	Claim(ctx context.Context, key, orderID string) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	Release(ctx context.Context, key string) error
}

// Processor turns queued notifications into emails.
type Processor struct {
	ledger Ledger
	mailer notify.Mailer
	log    *log.Helper
}

func NewProcessor(ledger Ledger, mailer notify.Mailer, logger log.Logger) *Processor {
	return &Processor{
		ledger: ledger,
		mailer: mailer,
		log:    log.NewHelper(log.With(logger, "module", "worker")),
	}
}

// Handle processes an SQS batch. Messages that fail transiently are reported
// back so only they are redelivered; malformed messages are dropped.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		err := p.processMessage(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, notify.ErrInvalidMessage):
			p.log.Errorw("msg", "dropping message", "message_id", rec.MessageId, "error", err.Error())
		default:
			p.log.Warnw("msg", "message will be retried", "message_id", rec.MessageId, "error", err.Error())
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg notify.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("%w: %v", notify.ErrInvalidMessage, err)
	}
	subject, body, err := notify.Render(msg)
	if err != nil {
		return err
	}

	// SQS delivers at least once; the ledger makes sending at most once.
	key := idempotency.MailKey(rec.MessageId)
	claimed, err := p.ledger.Claim(ctx, key, msg.OrderID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		p.log.Infow("msg", "duplicate delivery skipped", "message_id", rec.MessageId, "kind", msg.Kind)
		return nil
	}

	if err := p.mailer.Send(ctx, msg.To, subject, body); err != nil {
		if errors.Is(err, notify.ErrInvalidMessage) {
			return err
		}
		if rErr := p.ledger.Release(ctx, key); rErr != nil {
			p.log.Warnf("release %s: %v", key, rErr)
		}
		return err
	}

	if err := p.ledger.MarkDone(ctx, key, msg.Kind, 0); err != nil {
		// mail is out; a failed bookkeeping write must not resend it
		p.log.Warnf("mark %s done: %v", key, err)
	}
	p.log.Infow("msg", "mail sent", "message_id", rec.MessageId, "kind", msg.Kind, "order_id", msg.OrderID)
	return nil
}
