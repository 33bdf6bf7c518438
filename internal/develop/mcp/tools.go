package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rsned/kc-development-server/pkg/develop"
)

// ClassifyPoolInput is the classify_pool tool input.
type ClassifyPoolInput struct {
	Resources develop.Resources `json:"resources" jsonschema:"fuel, ammo, steel and bauxite spent on the development"`
}

// DevelopInput is the develop_probabilities tool input.
type DevelopInput struct {
	Resources   develop.Resources `json:"resources" jsonschema:"fuel, ammo, steel and bauxite, each 10..300"`
	ShipType    string            `json:"ship_type" jsonschema:"secretary ship category: gun, torp, air or sub"`
	HQLevel     int               `json:"hq_level,omitempty" jsonschema:"headquarters level 1..120, defaults to 120"`
	SecretaryID int               `json:"secretary_id,omitempty" jsonschema:"special secretary rule id from secretary_list"`
	LandBased   bool              `json:"land_based,omitempty" jsonschema:"force the land-based aircraft condition"`
	ForcePool   string            `json:"force_pool,omitempty" jsonschema:"override the classified pool: fs, am or bx"`
	Language    string            `json:"language,omitempty" jsonschema:"BCP 47 language for item names, e.g. ja-JP"`
}

// RecipeSearchInput is the recipe_search tool input.
type RecipeSearchInput struct {
	TargetIDs          []int  `json:"target_ids" jsonschema:"equipment ids that every recipe must be able to produce"`
	HQLevel            int    `json:"hq_level,omitempty" jsonschema:"headquarters level 1..120, defaults to 120"`
	IncludeSecretaries bool   `json:"include_secretaries,omitempty" jsonschema:"also try every special secretary rule"`
	MaxResource        int    `json:"max_resource,omitempty" jsonschema:"upper bound for any single resource"`
	Limit              int    `json:"limit,omitempty" jsonschema:"maximum number of recipes to return"`
	Language           string `json:"language,omitempty" jsonschema:"BCP 47 language for item names"`
}

// ProbabilityTableInput is the probability_table tool input.
type ProbabilityTableInput struct {
	ShipType string `json:"ship_type,omitempty" jsonschema:"restrict columns to one ship category"`
	Language string `json:"language,omitempty" jsonschema:"BCP 47 language for item names"`
}

// ItemListInput is the item_list tool input.
type ItemListInput struct {
	CraftableOnly bool   `json:"craftable_only,omitempty" jsonschema:"only items flagged as developable"`
	Type          int    `json:"type,omitempty" jsonschema:"equipment category id"`
	Language      string `json:"language,omitempty" jsonschema:"BCP 47 language for item names"`
}

// SecretaryListInput is the secretary_list tool input.
type SecretaryListInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_pool",
		Description: "Classify a resource input into its development pool (fs, am or bx)",
	}, s.classifyPool)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "develop_probabilities",
		Description: "Compute per-item development probabilities for a resource input, secretary and HQ level. Lists blocked candidates with the reason and the failure rate.",
	}, s.developProbabilities)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recipe_search",
		Description: "Find resource allocations that can produce every target item, best aggregate probability first",
	}, s.recipeSearch)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "probability_table",
		Description: "Return the base probability table, one column per ship type and pool",
	}, s.probabilityTable)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "item_list",
		Description: "List catalog items with their required HQ level and minimum resources",
	}, s.itemList)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "secretary_list",
		Description: "List the special secretary rules and their per-pool adjustments",
	}, s.secretaryList)
}

func (s *Server) classifyPool(ctx context.Context, _ *mcp.CallToolRequest, input ClassifyPoolInput) (*mcp.CallToolResult, develop.PoolTypeResponse, error) {
	if err := input.Resources.Validate(); err != nil {
		return nil, develop.PoolTypeResponse{}, err
	}
	return nil, s.engine.ClassifyPool(ctx, input.Resources), nil
}

func (s *Server) developProbabilities(ctx context.Context, _ *mcp.CallToolRequest, input DevelopInput) (*mcp.CallToolResult, develop.DevelopResponse, error) {
	req := develop.DevelopRequest{
		Resources:   input.Resources,
		ShipType:    develop.ShipType(input.ShipType),
		HQLevel:     input.HQLevel,
		SecretaryID: input.SecretaryID,
		LandBased:   input.LandBased,
		ForcePool:   develop.Pool(input.ForcePool),
		Language:    input.Language,
	}
	if err := req.Validate(); err != nil {
		return nil, develop.DevelopResponse{}, err
	}

	s.logger.Debug("calling tool", "name", "develop_probabilities", "ship_type", req.ShipType)
	resp, err := s.engine.Develop(ctx, req)
	if err != nil {
		return nil, develop.DevelopResponse{}, fmt.Errorf("develop probabilities: %w", err)
	}
	return nil, *resp, nil
}

func (s *Server) recipeSearch(ctx context.Context, _ *mcp.CallToolRequest, input RecipeSearchInput) (*mcp.CallToolResult, develop.RecipeSearchResponse, error) {
	req := develop.RecipeSearchRequest{
		TargetIDs:          input.TargetIDs,
		HQLevel:            input.HQLevel,
		IncludeSecretaries: input.IncludeSecretaries,
		MaxResource:        input.MaxResource,
		Limit:              input.Limit,
		Language:           input.Language,
	}
	if err := req.Validate(); err != nil {
		return nil, develop.RecipeSearchResponse{}, err
	}

	s.logger.Debug("calling tool", "name", "recipe_search", "targets", req.TargetIDs)
	resp, err := s.engine.SearchRecipes(ctx, req)
	if err != nil {
		return nil, develop.RecipeSearchResponse{}, fmt.Errorf("recipe search: %w", err)
	}
	return nil, *resp, nil
}

func (s *Server) probabilityTable(ctx context.Context, _ *mcp.CallToolRequest, input ProbabilityTableInput) (*mcp.CallToolResult, develop.ProbabilityTableResponse, error) {
	resp, err := s.engine.ProbabilityTable(ctx, develop.ProbabilityTableRequest{
		ShipType: develop.ShipType(input.ShipType),
		Language: input.Language,
	})
	if err != nil {
		return nil, develop.ProbabilityTableResponse{}, err
	}
	return nil, *resp, nil
}

func (s *Server) itemList(ctx context.Context, _ *mcp.CallToolRequest, input ItemListInput) (*mcp.CallToolResult, develop.ItemListResponse, error) {
	resp, err := s.engine.ListItems(ctx, develop.ItemListRequest{
		CraftableOnly: input.CraftableOnly,
		Type:          input.Type,
		Language:      input.Language,
	})
	if err != nil {
		return nil, develop.ItemListResponse{}, err
	}
	return nil, *resp, nil
}

func (s *Server) secretaryList(ctx context.Context, _ *mcp.CallToolRequest, _ SecretaryListInput) (*mcp.CallToolResult, develop.SecretaryListResponse, error) {
	resp, err := s.engine.ListSecretaries(ctx)
	if err != nil {
		return nil, develop.SecretaryListResponse{}, err
	}
	if resp.Secretaries == nil {
		resp.Secretaries = []develop.SecretaryRule{}
	}
	return nil, *resp, nil
}
