// Package api serves the development engine over HTTP and pushes reference
// data changes to websocket clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rsned/kc-development-server/internal/develop/db"
	"github.com/rsned/kc-development-server/internal/develop/engine"
	"github.com/rsned/kc-development-server/pkg/develop"
)

const maxBodyBytes = 1 << 20

// RuleStore persists special secretary rules. *db.SecretaryStore
// satisfies it.
type RuleStore interface {
	ListSecretaryRules(ctx context.Context) ([]develop.SecretaryRule, error)
	CreateSecretaryRule(ctx context.Context, r develop.SecretaryRule) (develop.SecretaryRule, error)
	UpdateSecretaryRule(ctx context.Context, r develop.SecretaryRule) error
	DeleteSecretaryRule(ctx context.Context, id int) error
	ReorderSecretaryRules(ctx context.Context, ids []int) error
}

// Handler holds the HTTP endpoints.
type Handler struct {
	engine *engine.Engine
	rules  RuleStore
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates a Handler. rules may be nil for a read-only server;
// the rule editing endpoints then answer 501.
func NewHandler(eng *engine.Engine, rules RuleStore, hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: eng, rules: rules, hub: hub, logger: logger}
}

// ReorderRequest is the body of PUT /api/secretary-bonus/order.
type ReorderRequest struct {
	IDs []int `json:"ids"`
}

// Routes returns the API mux wrapped in the CORS middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pool-type", h.handlePoolType)
	mux.HandleFunc("POST /api/develop", h.handleDevelop)
	mux.HandleFunc("POST /api/recipes", h.handleRecipes)
	mux.HandleFunc("GET /api/table", h.handleTable)
	mux.HandleFunc("GET /api/items", h.handleItems)

	mux.HandleFunc("GET /api/secretary-bonus", h.handleListRules)
	mux.HandleFunc("POST /api/secretary-bonus", h.handleCreateRule)
	mux.HandleFunc("PUT /api/secretary-bonus", h.handleUpdateRule)
	mux.HandleFunc("PUT /api/secretary-bonus/order", h.handleReorderRules)
	mux.HandleFunc("DELETE /api/secretary-bonus/{id}", h.handleDeleteRule)

	if h.hub != nil {
		mux.HandleFunc("GET /ws", h.hub.ServeWs)
	}

	return corsMiddleware(mux)
}

func (h *Handler) handlePoolType(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var res develop.Resources
	for i := 0; i < develop.NumResources; i++ {
		name := develop.ResourceName(i)
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: %s must be an integer", develop.ErrInvalidInput, name))
			return
		}
		res = res.Set(i, v)
	}
	if err := res.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ClassifyPool(r.Context(), res))
}

func (h *Handler) handleDevelop(w http.ResponseWriter, r *http.Request) {
	var req develop.DevelopRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Language == "" {
		req.Language = requestLanguage(r)
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.engine.Develop(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecipes(w http.ResponseWriter, r *http.Request) {
	var req develop.RecipeSearchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Language == "" {
		req.Language = requestLanguage(r)
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.engine.SearchRecipes(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	resp, err := h.engine.ProbabilityTable(r.Context(), develop.ProbabilityTableRequest{
		ShipType: develop.ShipType(r.URL.Query().Get("ship_type")),
		Language: requestLanguage(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := develop.ItemListRequest{Language: requestLanguage(r)}
	if v := q.Get("craftable"); v != "" {
		craftable, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: craftable must be a boolean", develop.ErrInvalidInput))
			return
		}
		req.CraftableOnly = craftable
	}
	if v := q.Get("type"); v != "" {
		typ, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: type must be an integer", develop.ErrInvalidInput))
			return
		}
		req.Type = typ
	}

	resp, err := h.engine.ListItems(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w) {
		return
	}
	rules, err := h.rules.ListSecretaryRules(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rules == nil {
		rules = []develop.SecretaryRule{}
	}
	writeJSON(w, http.StatusOK, develop.SecretaryListResponse{Secretaries: rules})
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w) {
		return
	}
	var rule develop.SecretaryRule
	if !h.decode(w, r, &rule) {
		return
	}

	created, err := h.rules.CreateSecretaryRule(r.Context(), rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.reload(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w) {
		return
	}
	var rule develop.SecretaryRule
	if !h.decode(w, r, &rule) {
		return
	}

	if err := h.rules.UpdateSecretaryRule(r.Context(), rule); err != nil {
		h.writeError(w, err)
		return
	}
	if !h.reload(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleReorderRules(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w) {
		return
	}
	var req ReorderRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.rules.ReorderSecretaryRules(r.Context(), req.IDs); err != nil {
		h.writeError(w, err)
		return
	}
	if !h.reload(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w) {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: id must be an integer", develop.ErrInvalidInput))
		return
	}

	if err := h.rules.DeleteSecretaryRule(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	if !h.reload(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editable answers 501 when the server has no rule store.
func (h *Handler) editable(w http.ResponseWriter) bool {
	if h.rules == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "secretary rules are read-only on this server"})
		return false
	}
	return true
}

// reload swaps in the edited rules and notifies websocket clients.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) bool {
	version, err := h.engine.Reload(r.Context())
	if err != nil {
		h.writeError(w, err)
		return false
	}
	if h.hub != nil {
		h.hub.Publish(Message{Type: EventRulesReloaded, Payload: map[string]uint64{"version": version}})
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, fmt.Errorf("%w: decoding body: %v", develop.ErrInvalidInput, err))
		return false
	}
	return true
}

// requestLanguage reads ?lang=, falling back to Accept-Language.
func requestLanguage(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return r.Header.Get("Accept-Language")
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, develop.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, develop.ErrItemNotFound), errors.Is(err, db.ErrSecretaryNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Language")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
