package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/rsned/kc-development-server/internal/develop/config"
	"github.com/rsned/kc-development-server/internal/develop/db"
	"github.com/rsned/kc-development-server/internal/develop/engine"
	"github.com/rsned/kc-development-server/internal/develop/sync"
	"github.com/rsned/kc-development-server/pkg/develop"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// Operations accepted in the "op" field.
const (
	opDevelop = "develop"
	opRecipes = "recipes"
)

// opEnvelope reads the operation; the rest of the body is the request of
// that operation.
type opEnvelope struct {
	Op string `json:"op"`
}

type handler struct {
	engine *engine.Engine
}

// newEngine opens the configured database, seeds it when empty and loads
// an engine over it. The item catalog must already be in the database.
func newEngine(ctx context.Context, logger *slog.Logger) (*engine.Engine, func() error, error) {
	cfg, err := config.Load("", nil)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.OpenAndInit(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sync.NewSyncer(database).Seed(ctx, false); err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("seeding database: %w", err)
	}

	eng, err := engine.New(ctx, db.NewSource(database), engine.Options{
		CacheSize:       cfg.Engine.CacheSize,
		SearchWorkers:   cfg.Engine.SearchWorkers,
		MaxResource:     cfg.Engine.MaxResource,
		DefaultLanguage: cfg.Engine.DefaultLanguage,
		Logger:          logger,
	})
	if err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return eng, database.Close, nil
}

func (h *handler) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}

	var env opEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return errResp(400, "invalid JSON: "+err.Error())
	}

	var (
		result any
		err    error
	)
	switch env.Op {
	case opDevelop:
		var req develop.DevelopRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errResp(400, "invalid JSON: "+err.Error())
		}
		if err := req.Validate(); err != nil {
			return errResp(400, err.Error())
		}
		result, err = h.engine.Develop(ctx, req)
	case opRecipes:
		var req develop.RecipeSearchRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errResp(400, "invalid JSON: "+err.Error())
		}
		if err := req.Validate(); err != nil {
			return errResp(400, err.Error())
		}
		result, err = h.engine.SearchRecipes(ctx, req)
	case "":
		return errResp(400, "missing op")
	default:
		return errResp(400, fmt.Sprintf("unknown op %q", env.Op))
	}

	if err != nil {
		if errors.Is(err, develop.ErrItemNotFound) {
			return errResp(404, err.Error())
		}
		return errResp(500, err.Error())
	}

	respJSON, err := json.Marshal(result)
	if err != nil {
		return errResp(500, "encoding response: "+err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}
