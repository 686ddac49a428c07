package filecache

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/cache"
	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/repository"
)

// Reconcile 在启动时对齐持久化索引与磁盘：
//   - 索引中存在但磁盘缺失、目录中已删除或大小不一致的 key 从索引移除；
//   - 磁盘上未被索引的文件（包括残留临时文件）被删除；
//   - 幸存者以 IN_CACHE 状态填充缓存表，随后立即执行一次淘汰。
func (m *Manager) Reconcile(ctx context.Context) error {
	records, err := m.index.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list cache index: %w", err)
	}
	diskEntries, err := m.disk.List(ctx)
	if err != nil {
		return fmt.Errorf("list disk cache: %w", err)
	}

	onDisk := make(map[string]cache.Entry, len(diskEntries))
	diskKeys := mapset.NewThreadUnsafeSet[string]()
	for _, entry := range diskEntries {
		onDisk[entry.Key] = entry
		diskKeys.Add(entry.Key)
	}

	var (
		result    *multierror.Error
		dropped   []string
		survivors []*entry
	)
	indexed := mapset.NewThreadUnsafeSet[string]()
	for _, record := range records {
		indexed.Add(record.Key)
		onDiskEntry, ok := onDisk[record.Key]
		if !ok {
			dropped = append(dropped, record.Key)
			continue
		}
		file, err := m.catalog.Find(ctx, record.Key)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			dropped = append(dropped, record.Key)
			result = appendErr(result, m.deleteDiskFile(ctx, record.Key))
			continue
		case err != nil:
			// 元数据暂不可读时既不信任也不删除，留给下次启动。
			result = multierror.Append(result, fmt.Errorf("lookup %s: %w", record.Key, err))
			continue
		}
		if file.Size != onDiskEntry.SizeBytes {
			dropped = append(dropped, record.Key)
			result = appendErr(result, m.deleteDiskFile(ctx, record.Key))
			continue
		}
		survivors = append(survivors, m.seedEntry(record, onDiskEntry.SizeBytes))
	}

	orphans := diskKeys.Difference(indexed)
	for _, key := range orphans.ToSlice() {
		result = appendErr(result, m.deleteDiskFile(ctx, key))
	}
	if len(dropped) > 0 {
		if err := m.index.RemoveMany(ctx, dropped); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove stale index records: %w", err))
		}
	}

	m.entries.Clear()
	for _, e := range survivors {
		m.entries.Store(e.key, e)
	}
	m.logger.WithFields(logrus.Fields{
		"action":    "reconcile",
		"indexed":   len(records),
		"on_disk":   len(diskEntries),
		"dropped":   len(dropped),
		"orphans":   orphans.Cardinality(),
		"survivors": len(survivors),
	}).Info("cache_reconciled")

	if err := m.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (m *Manager) seedEntry(record files.CacheRecord, size int64) *entry {
	e := newEntry(record.Key, StateInCache, record.LastUsed)
	e.size = size
	return e
}

func (m *Manager) deleteDiskFile(ctx context.Context, key string) error {
	if _, err := m.disk.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s from disk: %w", key, err)
	}
	return nil
}

func appendErr(result *multierror.Error, err error) *multierror.Error {
	if err == nil {
		return result
	}
	return multierror.Append(result, err)
}
