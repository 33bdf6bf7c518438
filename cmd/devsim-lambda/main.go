//go:build !lambda

// Local runner for the Lambda handler: reads one request body from stdin
// and prints the response.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	eng, closeDB, err := newEngine(ctx, logger)
	if err != nil {
		logger.Error("failed to initialise engine", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeDB() }()

	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		logger.Error("failed to read request", "error", err)
		os.Exit(1)
	}

	h := &handler{engine: eng}
	resp, _ := h.handle(ctx, events.LambdaFunctionURLRequest{Body: string(body)})
	fmt.Println(resp.Body)
	if resp.StatusCode != 200 {
		os.Exit(1)
	}
}
