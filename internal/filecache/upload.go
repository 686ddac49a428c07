package filecache

import (
	"context"
	"fmt"
	"io"

	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/logging"
)

// Upload 将新文件写入远端与本地磁盘，并以 IN_CACHE 状态登记到缓存表。
// key 已被跟踪时返回 ErrAlreadyExists。
func (m *Manager) Upload(ctx context.Context, file files.File, body io.ReadSeeker) error {
	logger := m.logger.WithFields(logging.FileFields("upload", file.Key))
	if _, tracked := m.entries.Load(file.Key); tracked {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, file.Key)
	}

	if err := m.remote.Put(ctx, file.Key, file.ContentType, body, file.Size); err != nil {
		return fmt.Errorf("upload %s to remote: %w", file.Key, err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload body: %w", err)
	}
	written, err := m.disk.Put(ctx, file.Key, body)
	if err != nil {
		return fmt.Errorf("write %s to disk: %w", file.Key, err)
	}
	if err := m.index.UpsertLastUsed(ctx, file.Key); err != nil {
		return fmt.Errorf("index %s: %w", file.Key, err)
	}

	e := newEntry(file.Key, StateInCache, m.now())
	e.size = written.SizeBytes
	if _, loaded := m.entries.LoadOrStore(file.Key, e); loaded {
		// 远端对象、磁盘正文与索引已被本次上传覆盖，淘汰本地副本以免与已有条目的元数据不一致。
		logger.WithField("size", written.SizeBytes).Error("cache_upload_collision")
		if err := m.Evict(ctx, file.Key); err != nil {
			logger.WithError(err).Warn("cache_upload_collision_evict_failed")
		}
		return fmt.Errorf("%w: %s", ErrAlreadyExists, file.Key)
	}
	logger.WithField("size", written.SizeBytes).Info("cache_upload_complete")
	return nil
}

// Delete 删除远端对象，随后异步淘汰本地条目，不等待淘汰完成。
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	deleted, err := m.remote.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete %s from remote: %w", key, err)
	}
	err = m.spawn(func(bg context.Context) {
		if err := m.Evict(bg, key); err != nil {
			m.logger.WithError(err).WithFields(logging.FileFields("delete", key)).Warn("cache_evict_failed")
		}
	})
	if err != nil {
		m.logger.WithError(err).WithFields(logging.FileFields("delete", key)).Warn("cache_evict_skipped")
	}
	return deleted, nil
}
