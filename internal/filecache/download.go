package filecache

import (
	"context"
	"fmt"

	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/logging"
)

// startDownload 将条目推进到 DOWNLOADING 并派生后台下载，调用方需持有 e.mu。
func (m *Manager) startDownload(e *entry, file files.File) error {
	if err := m.transition(e, StateDownloading); err != nil {
		return err
	}
	err := m.spawn(func(ctx context.Context) {
		m.download(ctx, e, file)
	})
	if err != nil {
		e.err = err
		_ = m.transition(e, StateError)
		return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, file.Key, err)
	}
	return nil
}

// download 在后台拉取远端对象并落盘，结束时把条目推进到 IN_CACHE 或 ERROR。
func (m *Manager) download(ctx context.Context, e *entry, file files.File) {
	logger := m.logger.WithFields(logging.FileFields("download", file.Key))
	size, err := m.fetch(ctx, file)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateDownloading {
		logger.WithField("state", e.state.String()).Error("cache_download_retargeted")
		return
	}
	if err != nil {
		e.err = err
		_ = m.transition(e, StateError)
		logger.WithError(err).Warn("cache_download_failed")
		return
	}
	e.err = nil
	e.size = size
	e.lastUsed = m.now()
	_ = m.transition(e, StateInCache)
	logger.WithField("size", size).Debug("cache_download_complete")
}

func (m *Manager) fetch(ctx context.Context, file files.File) (int64, error) {
	body, err := m.remote.Get(ctx, file.Key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	written, err := m.disk.Put(ctx, file.Key, body)
	if err != nil {
		return 0, err
	}
	if written.SizeBytes != file.Size {
		if _, delErr := m.disk.Delete(ctx, file.Key); delErr != nil {
			m.logger.WithError(delErr).WithFields(logging.FileFields("download", file.Key)).Warn("cache_partial_delete_failed")
		}
		return 0, fmt.Errorf("size mismatch for %s: expected %d bytes, wrote %d", file.Key, file.Size, written.SizeBytes)
	}
	if err := m.index.UpsertLastUsed(ctx, file.Key); err != nil {
		return 0, err
	}
	return written.SizeBytes, nil
}
