package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	_ "go.uber.org/automaxprocs"

	"github.com/imrishuroy/go-ebook-store/internal/app"
	"github.com/imrishuroy/go-ebook-store/internal/config"
	"github.com/imrishuroy/go-ebook-store/internal/database"
	"github.com/imrishuroy/go-ebook-store/internal/handlers"
	"github.com/imrishuroy/go-ebook-store/internal/logging"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(cfg.Logger))
	handlers.RegisterRoutes(r, cfg)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(os.Stdout, "ebook-store-api", cfg.LogLevel)
	h := log.NewHelper(logger)

	if err := cfg.Validate(); err != nil {
		h.Fatalf("invalid config: %v", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		h.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		h.Fatalf("failed to init app: %v", err)
	}
	defer a.Close()

	applied, err := database.Migrate(ctx, a.Pool)
	if err != nil {
		h.Fatalf("failed to migrate: %v", err)
	}
	if len(applied) > 0 {
		h.Infow("msg", "migrations applied", "versions", applied)
	}

	var operators gin.Accounts
	if cfg.OperatorUsername != "" {
		operators = gin.Accounts{cfg.OperatorUsername: cfg.OperatorPassword}
	}
	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	r := setupRouter(handlers.HandlerConfig{
		Catalog:     a.Catalog,
		Orders:      a.Orders,
		Reviews:     a.Reviews,
		Idempotency: a.Ledger,
		WebURL:      cfg.WebURL,
		Operators:   operators,
		Logger:      logger,
	})

	// RUN_LOCAL=true serves plain HTTP for development.
	if cfg.RunLocal {
		h.Infof("running local server on %s", cfg.HTTPAddr)
		if err := r.Run(cfg.HTTPAddr); err != nil {
			h.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
