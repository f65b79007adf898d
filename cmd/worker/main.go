package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/aws"
	"github.com/imrishuroy/go-ebook-store/internal/config"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/logging"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(os.Stdout, "ebook-store-worker", cfg.LogLevel)
	h := log.NewHelper(logger)

	if cfg.IdempotencyTable == "" {
		h.Fatal("idempotency_table is required")
	}
	if cfg.SMTPAddr == "" {
		h.Fatal("smtp_addr is required")
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		h.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(
		idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		notify.NewSMTPMailer(cfg.SMTPAddr, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword),
		logger,
	)

	// RUN_LOCAL=true processes one message from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			h.Fatal("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := p.Handle(context.Background(), ev)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			h.Fatalf("local run failed: %v %v", err, resp.BatchItemFailures)
		}
		return
	}

	lambda.Start(p.Handle)
}
