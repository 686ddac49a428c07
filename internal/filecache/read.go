package filecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/logging"
	"github.com/file-hub/file-hub/internal/repository"
)

// Stream 是一次已准入的读取。Close 必须被调用，且只释放一次读者预约。
type Stream struct {
	ctx      context.Context
	body     io.ReadCloser
	release  func()
	once     sync.Once
	closeErr error

	// File 是被读取文件的元数据。
	File files.File
	// Start 与 End 是实际返回的 [Start, End) 区间。
	Start, End int64
}

// Read 在调用方取消后返回 ctx.Err()，预约仍需通过 Close 释放。
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	return s.body.Read(p)
}

// Close 关闭磁盘读取并释放预约，不受调用方 ctx 取消影响。
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.body.Close()
		s.release()
	})
	return s.closeErr
}

// Lookup 返回 key 的文件元数据。
func (m *Manager) Lookup(ctx context.Context, key string) (files.File, error) {
	file, err := m.catalog.Find(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return files.File{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return files.File{}, err
	}
	return file, nil
}

// Read 以 [start, end) 读取 key。end < 0 表示读到文件末尾。
// 未缓存时触发唯一一次后台下载，所有并发读者等待同一次下载结果。
func (m *Manager) Read(ctx context.Context, key string, start, end int64) (*Stream, error) {
	file, err := m.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if end < 0 {
		end = file.Size
	}
	if start < 0 || start > end || end > file.Size {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, file.Size)
	}

	e, err := m.admit(ctx, file)
	if err != nil {
		return nil, err
	}
	release := func() { m.release(e) }

	// 预约期间条目不会被淘汰，索引更新放在锁外。
	if err := m.index.Touch(context.WithoutCancel(ctx), key); err != nil {
		m.logger.WithError(err).WithFields(logging.FileFields("read", key)).Warn("cache_touch_failed")
	}

	body, err := m.disk.ReadRange(ctx, key, start, end)
	if err != nil {
		release()
		return nil, fmt.Errorf("read %s from disk: %w", key, err)
	}
	return &Stream{
		ctx:     ctx,
		body:    body,
		release: release,
		File:    file,
		Start:   start,
		End:     end,
	}, nil
}

// admit 等待条目进入 IN_CACHE 并增加读者计数。
func (m *Manager) admit(ctx context.Context, file files.File) (*entry, error) {
	for {
		e := m.getOrCreate(file.Key)
		e.mu.Lock()
		switch e.state {
		case StateInitialized:
			if err := m.startDownload(e, file); err != nil {
				e.mu.Unlock()
				return nil, err
			}
			err := e.waitLocked(ctx)
			e.mu.Unlock()
			if err != nil {
				return nil, err
			}
		case StateInCache:
			e.readers++
			e.lastUsed = m.now()
			e.mu.Unlock()
			return e, nil
		case StateError:
			cause := e.err
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, file.Key, cause)
		case StateEvicted:
			e.mu.Unlock()
			m.unlink(e)
		default:
			// DOWNLOADING / EVICTING / EVICTING_DOWNLOADS_COMPLETE
			err := e.waitLocked(ctx)
			e.mu.Unlock()
			if err != nil {
				return nil, err
			}
		}
	}
}

// release 归还读者预约；最后一个读者离开 EVICTING 条目时推进到
// EVICTING_DOWNLOADS_COMPLETE。
func (m *Manager) release(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readers <= 0 {
		m.logger.WithFields(logging.FileFields("release", e.key)).Error("cache_reader_underflow")
		return
	}
	e.readers--
	if e.readers > 0 {
		return
	}
	if e.state == StateEvicting {
		_ = m.transition(e, StateEvictingDownloadsComplete)
		return
	}
	e.broadcastLocked()
}
