package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// Run with STORAGE_DRIVER=s3; the Lambda filesystem is read-only outside /tmp.

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"dsr-backend/internal/bootstrap"
	"dsr-backend/internal/shared/config"
	"dsr-backend/internal/shared/server/respond"
	"dsr-backend/internal/shared/telemetry"
)

var (
	coldStart sync.Once
	proxy     *ginadapter.GinLambdaV2
	startErr  error
)

func start() {
	began := time.Now()
	cfg, err := config.Load()
	if err != nil {
		startErr = err
		return
	}
	if cfg.StorageDriver != "s3" {
		telemetry.Warn("lambda.local_storage", map[string]any{"uploads_path": cfg.UploadsPath})
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		startErr = err
		return
	}
	proxy = ginadapter.NewV2(app.Router)
	telemetry.Info("lambda.cold_start", map[string]any{
		"duration_ms": time.Since(began).Milliseconds(),
		"storage":     app.Store.Provider(),
	})
}

func failure(message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{
		Error: respond.ErrorBody{Code: respond.CodeInternal, Message: message},
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	coldStart.Do(start)
	if startErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": startErr})
		return failure("bootstrap failed"), startErr
	}
	if proxy == nil {
		return failure("router not initialized"), nil
	}
	return proxy.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
