package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ajbarea/aws-image-translate/internal/app"
	"github.com/ajbarea/aws-image-translate/internal/config"
	"github.com/ajbarea/aws-image-translate/internal/logger"
)

// Request is the structured invocation event for one pipeline run.
type Request struct {
	SourceKey         string `json:"source_key"`
	ObjectStoreTarget string `json:"object_store_target"` // S3 bucket
	StateStoreTarget  string `json:"state_store_target"`  // DynamoDB checkpoint table
	FetchLimit        int    `json:"fetch_limit"`
	TargetLanguage    string `json:"target_language"`
}

// Response mirrors an HTTP result: a status code plus a JSON body carrying
// the run summary (or an error message).
type Response struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

func handler(ctx context.Context, req Request) (Response, error) {
	cfg, err := config.Load()
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("load config: %w", err)), nil
	}
	applyRequest(cfg, req)

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("init logger: %w", err)), nil
	}
	defer logger.Close()

	if strings.TrimSpace(req.SourceKey) == "" {
		return errorResponse(http.StatusBadRequest, fmt.Errorf("source_key is required")), nil
	}

	pipeline, err := app.NewPipeline(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize pipeline", "error", err)
		return errorResponse(http.StatusInternalServerError, err), nil
	}
	defer pipeline.Close()

	summary, err := pipeline.RunSource(ctx, req.SourceKey)
	if err != nil {
		logger.ErrorObj("pipeline run failed", "error", err)
		return errorResponse(http.StatusBadGateway, err), nil
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("marshal summary: %w", err)), nil
	}
	return Response{StatusCode: http.StatusOK, Body: string(body)}, nil
}

// applyRequest overlays the event parameters onto the base configuration.
func applyRequest(cfg *config.Config, req Request) {
	if bucket := strings.TrimSpace(req.ObjectStoreTarget); bucket != "" {
		cfg.ObjectStoreType = "s3"
		cfg.S3Bucket = bucket
	}
	if table := strings.TrimSpace(req.StateStoreTarget); table != "" {
		cfg.StateStoreType = "dynamodb"
		cfg.CheckpointTable = table
	}
	if req.FetchLimit > 0 {
		cfg.FetchLimit = req.FetchLimit
	}
	if lang := strings.TrimSpace(req.TargetLanguage); lang != "" {
		cfg.TargetLanguage = lang
	}
	// Hosted invocations always run a single pass.
	cfg.RunOnce = true
}

func errorResponse(status int, err error) Response {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Response{StatusCode: status, Body: string(body)}
}

func main() {
	lambda.Start(handler)
}
