package routes

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/file-hub/file-hub/internal/filecache"
)

// StatsProvider 暴露缓存表快照，由 *filecache.Manager 实现。
type StatsProvider interface {
	Stats() filecache.Stats
}

// CatalogCounter 统计已登记的文件，由 *repository.FileRepository 实现。
type CatalogCounter interface {
	Count(ctx context.Context) (int, int64, error)
}

// RegisterDiagnosticsRoutes 暴露 /-/cache 与 /-/healthz 诊断接口。
func RegisterDiagnosticsRoutes(app *fiber.App, cache StatsProvider, catalog CatalogCounter) {
	if app == nil || cache == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		payload := cachePayload{Cache: encodeStats(cache.Stats())}
		if catalog != nil {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			count, bytes, err := catalog.Count(ctx)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
			}
			payload.Catalog = &catalogPayload{Files: count, Bytes: bytes}
		}
		return c.JSON(payload)
	})
}

type cachePayload struct {
	Cache   statsPayload    `json:"cache"`
	Catalog *catalogPayload `json:"catalog,omitempty"`
}

type statsPayload struct {
	Entries int              `json:"entries"`
	Bytes   int64            `json:"bytes"`
	Readers int              `json:"readers"`
	States  []statePayload   `json:"states"`
	Limits  filecache.Limits `json:"limits"`
}

type statePayload struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

type catalogPayload struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

func encodeStats(stats filecache.Stats) statsPayload {
	states := make([]filecache.State, 0, len(stats.States))
	for state := range stats.States {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i] < states[j]
	})
	encoded := make([]statePayload, 0, len(states))
	for _, state := range states {
		encoded = append(encoded, statePayload{State: state.String(), Count: stats.States[state]})
	}
	return statsPayload{
		Entries: stats.Entries,
		Bytes:   stats.Bytes,
		Readers: stats.Readers,
		States:  encoded,
		Limits:  stats.Limits,
	}
}
