//go:build lambda

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	eng, _, err := newEngine(context.Background(), logger)
	if err != nil {
		logger.Error("failed to initialise engine", "error", err)
		os.Exit(1)
	}

	h := &handler{engine: eng}
	lambda.Start(h.handle)
}
