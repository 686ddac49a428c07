package filecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/file-hub/file-hub/internal/logging"
)

// Evict 将 key 推进到 EVICTED：等待下载结束与读者离开，然后删除磁盘正文与索引。
// 删除失败时条目停留在 EVICTING_DOWNLOADS_COMPLETE，等待下一次淘汰重试。
func (m *Manager) Evict(ctx context.Context, key string) error {
	for {
		e := m.getOrCreate(key)
		e.mu.Lock()
		switch e.state {
		case StateInitialized:
			_ = m.transition(e, StateEvicted)
			e.mu.Unlock()
			m.unlink(e)
			return nil
		case StateEvicted:
			e.mu.Unlock()
			m.unlink(e)
			return nil
		case StateDownloading:
			if err := e.waitLocked(ctx); err != nil {
				e.mu.Unlock()
				return err
			}
			e.mu.Unlock()
			continue
		}

		// IN_CACHE / ERROR / EVICTING / EVICTING_DOWNLOADS_COMPLETE
		if e.cleaning || e.readers > 0 {
			if e.readers > 0 && e.state != StateEvicting {
				_ = m.transition(e, StateEvicting)
			}
			err := e.waitLocked(ctx)
			e.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}

		if e.state != StateEvictingDownloadsComplete {
			if e.state != StateEvicting {
				_ = m.transition(e, StateEvicting)
			}
			_ = m.transition(e, StateEvictingDownloadsComplete)
		}
		e.cleaning = true
		e.mu.Unlock()

		err := m.cleanup(ctx, key)

		e.mu.Lock()
		e.cleaning = false
		if err != nil {
			e.broadcastLocked()
			e.mu.Unlock()
			m.logger.WithError(err).WithFields(logging.FileFields("evict", key)).Warn("cache_evict_cleanup_failed")
			return err
		}
		_ = m.transition(e, StateEvicted)
		e.mu.Unlock()
		m.unlink(e)
		m.logger.WithFields(logging.FileFields("evict", key)).Debug("cache_evicted")
		return nil
	}
}

func (m *Manager) cleanup(ctx context.Context, key string) error {
	if _, err := m.disk.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s from disk: %w", key, err)
	}
	if err := m.index.RemoveMany(ctx, []string{key}); err != nil {
		return fmt.Errorf("remove %s from index: %w", key, err)
	}
	return nil
}

// Sweep 执行一轮淘汰。ERROR 条目与卡在淘汰中的条目总是被处理；
// 只有数量或容量超过 Threshold 时才按 LRU 淘汰到 Target。
func (m *Manager) Sweep(ctx context.Context) error {
	if !m.sweepMu.TryLock() {
		return ErrSweepInProgress
	}
	defer m.sweepMu.Unlock()

	victims := planSweep(m.snapshots(), m.limits)
	if len(victims) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g := new(errgroup.Group)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for _, key := range victims {
		g.Go(func() error {
			if err := m.Evict(ctx, key); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	err := result.ErrorOrNil()
	fields := logrus.Fields{"action": "sweep", "victims": len(victims)}
	if err != nil {
		m.logger.WithError(err).WithFields(fields).Warn("cache_sweep_partial")
		return err
	}
	m.logger.WithFields(fields).Info("cache_sweep_complete")
	return nil
}

// planSweep 选出本轮需要淘汰的 key。Threshold 判断按表中全部未淘汰条目计数，
// 与按目标裁剪的 LRU 候选（ERROR 与淘汰中的条目除外）分开统计。
func planSweep(snaps []snapshot, limits Limits) []string {
	var (
		victims    []string
		candidates []snapshot
		count      int
		bytes      int64
	)
	for _, snap := range snaps {
		if snap.state == StateEvicted {
			continue
		}
		count++
		bytes += snap.size
		switch snap.state {
		case StateError, StateEvicting, StateEvictingDownloadsComplete:
			victims = append(victims, snap.key)
		default:
			candidates = append(candidates, snap)
		}
	}
	if count <= limits.CountThreshold && bytes <= limits.SizeThreshold {
		return victims
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].lastUsed.Before(candidates[j].lastUsed)
	})
	var (
		keptCount int
		keptBytes int64
	)
	cut := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		nextCount := keptCount + 1
		nextBytes := keptBytes + candidates[i].size
		if nextCount > limits.CountTarget || nextBytes > limits.SizeTarget {
			cut = i + 1
			break
		}
		keptCount, keptBytes = nextCount, nextBytes
	}
	for _, snap := range candidates[:cut] {
		victims = append(victims, snap.key)
	}
	return victims
}

var sweepFields = logrus.Fields{"action": "sweep"}

// Run 按 interval 周期执行 Sweep，直到 ctx 结束。
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.Sweep(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrSweepInProgress):
				m.logger.WithFields(sweepFields).Debug("cache_sweep_skipped")
			case ctx.Err() != nil:
				return
			default:
				m.logger.WithError(err).WithFields(sweepFields).Warn("cache_sweep_failed")
			}
		}
	}
}
