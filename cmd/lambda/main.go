// Command lambda serves gatekeeper from AWS Lambda behind API Gateway
// (REST payload v1 or HTTP API payload v2). Configuration comes from
// GATEKEEPER_* environment variables and an optional GATEKEEPER_CONFIG_FILE.
package main

import (
	"context"
	"log/slog"
	"os"

	"gatekeeper/internal/app"
	"gatekeeper/internal/config"
	"gatekeeper/internal/lambdaproxy"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/version"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ver := version.GetInfo()

	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// No metrics server runs inside Lambda; traces still export.
	provider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}

	// Windows live in the configured store, so they survive across
	// invocations only with a shared backend such as DynamoDB or Redis.
	gatekeeper, err := app.New(context.Background(), cfg, ver)
	if err != nil {
		slog.Error("Failed to initialize gatekeeper", "error", err)
		os.Exit(1)
	}

	adapter := lambdaproxy.NewAdapter(gatekeeper.Handler, cfg.Lambda.LogEvent)

	slog.Info("Lambda handler ready",
		"storage", cfg.Storage.Type,
		"limit", cfg.RateLimit.Limit,
		"window", cfg.RateLimit.Window,
	)

	lambda.StartWithOptions(adapter.Handle,
		lambda.WithEnableSIGTERM(func() {
			slog.Info("Lambda shutting down")
			if err := gatekeeper.Close(); err != nil {
				slog.Error("Failed to release resources", "error", err)
			}
			if err := provider.Shutdown(context.Background()); err != nil {
				slog.Error("Failed to shutdown observability", "error", err)
			}
		}),
	)
}
