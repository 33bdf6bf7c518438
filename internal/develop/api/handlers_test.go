package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/kc-development-server/internal/develop/db"
	"github.com/rsned/kc-development-server/internal/develop/engine"
	"github.com/rsned/kc-development-server/pkg/develop"
)

func pct(v int) *int { return &v }

type testServer struct {
	server *httptest.Server
	engine *engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	database, err := db.OpenAndInit(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	src := db.NewSource(database)
	gunFs := develop.PartitionKey{ShipType: develop.ShipGun, Pool: develop.PoolFS}
	require.NoError(t, src.Items.BulkInsertItems(ctx, []develop.Item{
		{ID: 1, Rarity: 1, Craftable: true, Dismantle: [4]int{0, 1, 1, 0},
			Names: map[string]string{"zh_cn": "12cm单装炮", "en_us": "12cm Single Gun Mount"}},
		{ID: 2, Rarity: 2, Dismantle: [4]int{5, 0, 0, 0}},
	}))
	require.NoError(t, src.Pool.ReplacePoolTable(ctx, []develop.TableRow{
		{ItemID: 1, Rates: map[develop.PartitionKey]*int{gunFs: pct(10)}},
		{ItemID: 2, Rates: map[develop.PartitionKey]*int{gunFs: pct(6)}},
	}))
	require.NoError(t, src.Secretaries.ReplaceSecretaryRules(ctx, []develop.SecretaryRule{
		{ID: 100, Name: "Akashi", ShipType: develop.ShipGun, Bonuses: []develop.PoolBonus{
			{Pool: develop.PoolFS, Adjustments: []develop.Adjustment{{ItemID: 2, Delta: 4}}},
		}},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(ctx, src, engine.Options{Logger: logger})
	require.NoError(t, err)

	hub := NewHub(logger)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(eng, src.Secretaries, hub, logger).Routes())
	t.Cleanup(srv.Close)
	return &testServer{server: srv, engine: eng}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPoolType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/pool-type?fuel=10&ammo=10&steel=10&bauxite=250", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out develop.PoolTypeResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, develop.PoolBX, out.Pool)

	tests := []struct {
		name  string
		query string
	}{
		{"missing", "fuel=10&ammo=10&steel=10"},
		{"not a number", "fuel=x&ammo=10&steel=10&bauxite=10"},
		{"out of range", "fuel=301&ammo=10&steel=10&bauxite=10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/pool-type?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDevelop(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/develop?lang=en", develop.DevelopRequest{
		Resources:   develop.Resources{Fuel: 100, Ammo: 20, Steel: 100, Bauxite: 10},
		ShipType:    develop.ShipGun,
		SecretaryID: 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out develop.DevelopResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, develop.StatusOK, out.Status)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "12cm Single Gun Mount", out.Results[0].ItemName)
	assert.Equal(t, 10, out.Results[1].Probability)
	assert.Equal(t, 80, out.FailureRate)

	resp = ts.do(t, http.MethodPost, "/api/develop", develop.DevelopRequest{
		Resources: develop.Resources{Fuel: 5, Ammo: 20, Steel: 100, Bauxite: 10},
		ShipType:  develop.ShipGun,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/develop", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = raw.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestRecipes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/recipes", develop.RecipeSearchRequest{TargetIDs: []int{1, 2}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out develop.RecipeSearchResponse
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Recipes)
	assert.Equal(t, develop.Resources{Fuel: 50, Ammo: 10, Steel: 10, Bauxite: 10}, out.Recipes[0].Resources)

	resp = ts.do(t, http.MethodPost, "/api/recipes", develop.RecipeSearchRequest{TargetIDs: []int{404}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/recipes", develop.RecipeSearchRequest{TargetIDs: []int{1}, Limit: -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTableAndItems(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/table?ship_type=gun", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var table develop.ProbabilityTableResponse
	decodeBody(t, resp, &table)
	assert.Len(t, table.Columns, 3)
	assert.Len(t, table.Rows, 2)

	resp = ts.do(t, http.MethodGet, "/api/table?ship_type=carrier", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/items?craftable=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items develop.ItemListResponse
	decodeBody(t, resp, &items)
	require.Len(t, items.Items, 1)
	assert.Equal(t, "12cm单装炮", items.Items[0].Name)

	resp = ts.do(t, http.MethodGet, "/api/items?type=gun", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSecretaryRuleEditing(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	readEvent := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	assert.Equal(t, EventConnected, readEvent().Type)

	resp := ts.do(t, http.MethodPost, "/api/secretary-bonus", develop.SecretaryRule{
		Name:     "Yura/Yura Kai",
		ShipType: develop.ShipGun,
		Bonuses: []develop.PoolBonus{
			{Pool: develop.PoolFS, Adjustments: []develop.Adjustment{{ItemID: 1, Delta: 6}}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created develop.SecretaryRule
	decodeBody(t, resp, &created)
	assert.Equal(t, 101, created.ID)
	assert.Equal(t, "Yura", created.ShortName)
	assert.Equal(t, EventRulesReloaded, readEvent().Type)

	// The engine serves the new rule right away.
	out, err := ts.engine.Develop(context.Background(), develop.DevelopRequest{
		Resources:   develop.Resources{Fuel: 100, Ammo: 20, Steel: 100, Bauxite: 10},
		ShipType:    develop.ShipGun,
		SecretaryID: 101,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, 16, out.Results[0].Probability)

	created.Bonuses = nil
	resp = ts.do(t, http.MethodPut, "/api/secretary-bonus", created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, EventRulesReloaded, readEvent().Type)

	resp = ts.do(t, http.MethodPut, "/api/secretary-bonus/order", ReorderRequest{IDs: []int{101, 100}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, EventRulesReloaded, readEvent().Type)

	resp = ts.do(t, http.MethodGet, "/api/secretary-bonus", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list develop.SecretaryListResponse
	decodeBody(t, resp, &list)
	require.Len(t, list.Secretaries, 2)
	assert.Equal(t, 101, list.Secretaries[0].ID)

	resp = ts.do(t, http.MethodDelete, "/api/secretary-bonus/101", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, EventRulesReloaded, readEvent().Type)
	_, ok := ts.engine.Snapshot().Rule(101)
	assert.False(t, ok)

	resp = ts.do(t, http.MethodDelete, "/api/secretary-bonus/101", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/secretary-bonus/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/secretary-bonus", develop.SecretaryRule{Name: "x", ShipType: "carrier"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/secretary-bonus", develop.SecretaryRule{ID: 100, Name: "Dup", ShipType: develop.ShipGun})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadOnlyHandler(t *testing.T) {
	ts := newTestServer(t)
	h := NewHandler(ts.engine, nil, nil, nil)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/secretary-bonus")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
