// Package engine contains the equipment development business logic: pool
// classification, bonus resolution, probability computation and recipe search.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rsned/kc-development-server/internal/develop/i18n"
	"github.com/rsned/kc-development-server/internal/develop/refdata"
	"github.com/rsned/kc-development-server/pkg/develop"
)

const tracerName = "github.com/rsned/kc-development-server/internal/develop/engine"

// Options tunes an Engine. Zero values pick defaults.
type Options struct {
	CacheSize       int
	SearchWorkers   int
	MaxResource     int
	DefaultLanguage string
	Logger          *slog.Logger
}

type cacheKey struct {
	version uint64
	query   Query
}

// Engine is the main query engine for development operations. It serves
// every call from the snapshot current at the time of the call.
type Engine struct {
	source refdata.Source
	snap   atomic.Pointer[refdata.Snapshot]
	cache  *lru.Cache[cacheKey, Outcome]

	workers     int
	maxResource int
	language    string

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an Engine and loads its first snapshot from src.
func New(ctx context.Context, src refdata.Source, opts Options) (*Engine, error) {
	e, err := newEngine(src, opts)
	if err != nil {
		return nil, err
	}
	if _, err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewFromSnapshot creates an Engine over a fixed snapshot. Reload fails on
// such an engine.
func NewFromSnapshot(snap *refdata.Snapshot, opts Options) (*Engine, error) {
	e, err := newEngine(nil, opts)
	if err != nil {
		return nil, err
	}
	e.snap.Store(snap)
	return e, nil
}

func newEngine(src refdata.Source, opts Options) (*Engine, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 1024
	}
	if opts.MaxResource == 0 {
		opts.MaxResource = develop.MaxResource
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		source:      src,
		workers:     opts.SearchWorkers,
		maxResource: opts.MaxResource,
		language:    opts.DefaultLanguage,
		logger:      opts.Logger,
		tracer:      otel.Tracer(tracerName),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[cacheKey, Outcome](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating outcome cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Snapshot returns the reference data currently served.
func (e *Engine) Snapshot() *refdata.Snapshot {
	return e.snap.Load()
}

// Reload replaces the snapshot with fresh data from the source. In-flight
// calls finish on the snapshot they started with.
func (e *Engine) Reload(ctx context.Context) (uint64, error) {
	if e.source == nil {
		return 0, errors.New("engine has no reference data source")
	}

	ctx, span := e.tracer.Start(ctx, "engine.Reload")
	defer span.End()

	snap, err := refdata.Load(ctx, e.source)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("reloading reference data: %w", err)
	}
	e.snap.Store(snap)
	if e.cache != nil {
		e.cache.Purge()
	}

	e.logger.Info("reference data loaded",
		"version", snap.Version(),
		"items", len(snap.Items()),
		"table_rows", len(snap.TableItemIDs()),
		"secretaries", len(snap.Rules()),
	)
	return snap.Version(), nil
}

// ClassifyPool executes the classify_pool tool logic.
func (e *Engine) ClassifyPool(ctx context.Context, r develop.Resources) develop.PoolTypeResponse {
	_, span := e.tracer.Start(ctx, "engine.ClassifyPool")
	defer span.End()
	return develop.PoolTypeResponse{Pool: ClassifyPool(r)}
}

// compute evaluates q against snap, through the cache when enabled.
func (e *Engine) compute(snap *refdata.Snapshot, q Query) Outcome {
	if e.cache == nil {
		return Compute(snap, q)
	}
	key := cacheKey{version: snap.Version(), query: q}
	if out, ok := e.cache.Get(key); ok {
		return out
	}
	out := Compute(snap, q)
	e.cache.Add(key, out)
	return out
}

func (e *Engine) locale(lang string) string {
	if lang == "" {
		lang = e.language
	}
	return i18n.Locale(lang)
}

// Develop executes the develop_probabilities tool logic.
func (e *Engine) Develop(ctx context.Context, req develop.DevelopRequest) (*develop.DevelopResponse, error) {
	_, span := e.tracer.Start(ctx, "engine.Develop", trace.WithAttributes(
		attribute.String("ship_type", string(req.ShipType)),
		attribute.Int("secretary_id", req.SecretaryID),
	))
	defer span.End()

	// Apply defaults
	if req.HQLevel <= 0 {
		req.HQLevel = develop.MaxHQLevel
	}

	snap := e.snap.Load()
	out := e.compute(snap, Query{
		Resources:     req.Resources,
		ShipType:      req.ShipType,
		HQLevel:       req.HQLevel,
		SecretaryID:   req.SecretaryID,
		LandBasedFlag: req.LandBased,
		ForcePool:     req.ForcePool,
		Locale:        e.locale(req.Language),
	})

	resp := &develop.DevelopResponse{
		Pool:        out.Pool,
		PoolLabel:   out.PoolLabel,
		Status:      out.Status,
		Results:     slices.Clone(out.Results),
		Failures:    slices.Clone(out.Failures),
		FailureRate: out.FailureRate,
	}
	if rule, ok := snap.Rule(req.SecretaryID); ok && rule.ShipType == req.ShipType {
		info := rule.Info()
		resp.Secretary = &info
	}

	span.SetAttributes(attribute.String("status", string(out.Status)))
	return resp, nil
}

// SearchRecipes executes the recipe_search tool logic.
func (e *Engine) SearchRecipes(ctx context.Context, req develop.RecipeSearchRequest) (*develop.RecipeSearchResponse, error) {
	startTime := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.SearchRecipes", trace.WithAttributes(
		attribute.IntSlice("target_ids", req.TargetIDs),
		attribute.Bool("include_secretaries", req.IncludeSecretaries),
	))
	defer span.End()

	// Apply defaults
	if req.HQLevel <= 0 {
		req.HQLevel = develop.MaxHQLevel
	}
	if req.MaxResource == 0 {
		req.MaxResource = e.maxResource
	}

	snap := e.snap.Load()
	recipes, checked, err := search(ctx, snap, SearchRequest{
		TargetIDs:          req.TargetIDs,
		HQLevel:            req.HQLevel,
		IncludeSecretaries: req.IncludeSecretaries,
		MaxResource:        req.MaxResource,
		Limit:              req.Limit,
		Workers:            e.workers,
		Locale:             e.locale(req.Language),
	}, func(q Query) Outcome { return e.compute(snap, q) })
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	elapsed := time.Since(startTime).Milliseconds()
	e.logger.Debug("recipe search finished",
		"targets", req.TargetIDs,
		"candidates", checked,
		"recipes", len(recipes),
		"elapsed_ms", elapsed,
	)

	return &develop.RecipeSearchResponse{
		Recipes: recipes,
		QueryStats: develop.QueryStats{
			CandidatesChecked: checked,
			CandidatesMatched: len(recipes),
			ProcessingTimeMs:  elapsed,
		},
	}, nil
}

// ProbabilityTable executes the probability_table tool logic.
func (e *Engine) ProbabilityTable(ctx context.Context, req develop.ProbabilityTableRequest) (*develop.ProbabilityTableResponse, error) {
	_, span := e.tracer.Start(ctx, "engine.ProbabilityTable")
	defer span.End()

	if req.ShipType != "" && !req.ShipType.IsValid() {
		return nil, fmt.Errorf("%w: unknown ship_type %q", develop.ErrInvalidInput, req.ShipType)
	}

	snap := e.snap.Load()
	locale := e.locale(req.Language)

	var keys []develop.PartitionKey
	for _, key := range develop.PartitionKeys() {
		if req.ShipType == "" || key.ShipType == req.ShipType {
			keys = append(keys, key)
		}
	}

	resp := &develop.ProbabilityTableResponse{
		Columns: make([]string, 0, len(keys)),
		Rows:    make([]develop.ProbabilityTableRow, 0, len(snap.TableItemIDs())),
	}
	for _, key := range keys {
		resp.Columns = append(resp.Columns, key.Label())
	}

	for _, row := range snap.TableRows() {
		rates := make(map[string]int)
		for _, key := range keys {
			if v, ok := row.Rate(key); ok && v > 0 {
				rates[key.Label()] = v
			}
		}
		if req.ShipType != "" && len(rates) == 0 {
			continue
		}

		var names map[string]string
		if item, ok := snap.Item(row.ItemID); ok {
			names = item.Names
		}
		name := i18n.ItemName(names, row.ItemID, locale)
		if names == nil && row.Name != "" {
			name = row.Name
		}

		resp.Rows = append(resp.Rows, develop.ProbabilityTableRow{
			ItemID:   row.ItemID,
			ItemName: name,
			Rates:    rates,
		})
	}
	return resp, nil
}

// ListItems executes the item_list tool logic.
func (e *Engine) ListItems(ctx context.Context, req develop.ItemListRequest) (*develop.ItemListResponse, error) {
	_, span := e.tracer.Start(ctx, "engine.ListItems")
	defer span.End()

	snap := e.snap.Load()
	locale := e.locale(req.Language)

	items := make([]develop.ItemSummary, 0, len(snap.Items()))
	for _, it := range snap.Items() {
		if req.CraftableOnly && !it.Craftable {
			continue
		}
		if req.Type != 0 && it.Type != req.Type {
			continue
		}
		items = append(items, develop.ItemSummary{
			ID:                it.ID,
			Name:              i18n.ItemName(it.Names, it.ID, locale),
			Rarity:            it.Rarity,
			Type:              it.Type,
			RequiredLevel:     it.RequiredLevel(),
			RequiredResources: it.RequiredResources(),
		})
	}

	// Rarity first, then id
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rarity != items[j].Rarity {
			return items[i].Rarity < items[j].Rarity
		}
		return items[i].ID < items[j].ID
	})

	return &develop.ItemListResponse{Items: items}, nil
}

// ListSecretaries executes the secretary_list tool logic. Only selectable
// rules are listed; the land-based rule applies on its own.
func (e *Engine) ListSecretaries(ctx context.Context) (*develop.SecretaryListResponse, error) {
	_, span := e.tracer.Start(ctx, "engine.ListSecretaries")
	defer span.End()

	return &develop.SecretaryListResponse{Secretaries: e.snap.Load().Rules()}, nil
}
