package filecache

import (
	"context"
	"sync"
	"time"
)

// entry 是单个 key 的缓存条目。所有字段受 mu 保护。
type entry struct {
	key string

	mu       sync.Mutex
	state    State
	changed  chan struct{}
	readers  int
	lastUsed time.Time
	size     int64
	// cleaning 表示某个淘汰者正在锁外删除磁盘与索引，其它淘汰者需等待。
	cleaning bool
	err      error
}

func newEntry(key string, state State, lastUsed time.Time) *entry {
	return &entry{
		key:      key,
		state:    state,
		changed:  make(chan struct{}),
		lastUsed: lastUsed,
	}
}

// broadcastLocked 唤醒所有等待者，调用方需持有 mu。
func (e *entry) broadcastLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// waitLocked 释放 mu 并等待下一次广播，返回前重新持有 mu。
// 醒来后调用方必须重新检查状态。
func (e *entry) waitLocked(ctx context.Context) error {
	ch := e.changed
	e.mu.Unlock()
	defer e.mu.Lock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type snapshot struct {
	key      string
	state    State
	readers  int
	lastUsed time.Time
	size     int64
}

func (e *entry) snapshot() snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot{
		key:      e.key,
		state:    e.state,
		readers:  e.readers,
		lastUsed: e.lastUsed,
		size:     e.size,
	}
}
