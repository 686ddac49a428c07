package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/file-hub/file-hub/internal/filecache"
)

type stubStats struct {
	stats filecache.Stats
}

func (s stubStats) Stats() filecache.Stats { return s.stats }

type stubCatalog struct {
	count int
	bytes int64
	err   error
}

func (s stubCatalog) Count(context.Context) (int, int64, error) {
	return s.count, s.bytes, s.err
}

func TestEncodeStatsSortsStates(t *testing.T) {
	encoded := encodeStats(filecache.Stats{
		Entries: 3,
		Bytes:   10,
		States: map[filecache.State]int{
			filecache.StateError:   1,
			filecache.StateInCache: 2,
		},
	})
	if len(encoded.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(encoded.States))
	}
	if encoded.States[0].State != "IN_CACHE" || encoded.States[0].Count != 2 {
		t.Fatalf("expected IN_CACHE first, got %+v", encoded.States[0])
	}
	if encoded.States[1].State != "ERROR" {
		t.Fatalf("expected ERROR second, got %+v", encoded.States[1])
	}
}

func TestCacheDiagnosticsEndpoint(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app,
		stubStats{stats: filecache.Stats{Entries: 1, Bytes: 42, States: map[filecache.State]int{filecache.StateInCache: 1}}},
		stubCatalog{count: 5, bytes: 500},
	)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload cachePayload
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v (%s)", err, body)
	}
	if payload.Cache.Entries != 1 || payload.Cache.Bytes != 42 {
		t.Fatalf("unexpected cache payload: %+v", payload.Cache)
	}
	if payload.Catalog == nil || payload.Catalog.Files != 5 {
		t.Fatalf("unexpected catalog payload: %+v", payload.Catalog)
	}
}

func TestCacheDiagnosticsCatalogFailure(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, stubStats{}, stubCatalog{err: errors.New("boom")})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, stubStats{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz response %d %s", resp.StatusCode, body)
	}
}
