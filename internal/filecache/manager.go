package filecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/logging"
)

// Limits 定义两组预算：任一 Threshold 被突破才触发 LRU 淘汰，淘汰到
// 两个 Target 都满足为止。
type Limits struct {
	CountThreshold int   `json:"countThreshold"`
	CountTarget    int   `json:"countTarget"`
	SizeThreshold  int64 `json:"sizeThreshold"`
	SizeTarget     int64 `json:"sizeTarget"`
}

// Observer 在每次状态迁移时被调用（持有条目锁），不得阻塞或回调 Manager。
type Observer func(key string, from, to State)

// Options 描述 Manager 的依赖。
type Options struct {
	Disk    Disk
	Remote  Remote
	Index   Index
	Catalog Catalog
	Limits  Limits
	// SweepConcurrency 限制单次淘汰并发删除的条目数，<=0 表示不限制。
	SweepConcurrency int
	Logger           *logrus.Logger
	Observer         Observer
	Now              func() time.Time
}

// Manager 持有进程内的缓存表，协调下载、读取、上传与淘汰。
type Manager struct {
	disk        Disk
	remote      Remote
	index       Index
	catalog     Catalog
	limits      Limits
	concurrency int
	logger      *logrus.Logger
	observer    Observer
	now         func() time.Time

	entries sync.Map // key -> *entry
	sweepMu sync.Mutex

	bg      context.Context
	cancel  context.CancelFunc
	closeMu sync.RWMutex
	closed  bool
	tasks   sync.WaitGroup
}

// NewManager 校验依赖并构造 Manager。调用方在退出前需调用 Close。
func NewManager(opts Options) (*Manager, error) {
	switch {
	case opts.Disk == nil:
		return nil, errors.New("filecache: disk backend is required")
	case opts.Remote == nil:
		return nil, errors.New("filecache: remote store is required")
	case opts.Index == nil:
		return nil, errors.New("filecache: cache index is required")
	case opts.Catalog == nil:
		return nil, errors.New("filecache: file catalog is required")
	}
	if opts.Limits.CountThreshold < opts.Limits.CountTarget || opts.Limits.SizeThreshold < opts.Limits.SizeTarget {
		return nil, fmt.Errorf("filecache: thresholds must not be below targets: %+v", opts.Limits)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Manager{
		disk:        opts.Disk,
		remote:      opts.Remote,
		index:       opts.Index,
		catalog:     opts.Catalog,
		limits:      opts.Limits,
		concurrency: opts.SweepConcurrency,
		logger:      logger,
		observer:    opts.Observer,
		now:         now,
		bg:          bg,
		cancel:      cancel,
	}, nil
}

// Close 取消后台任务并等待下载与异步淘汰退出。
func (m *Manager) Close() error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()
	m.closeMu.Unlock()
	m.tasks.Wait()
	return nil
}

// spawn 在 Manager 的后台 context 上运行 fn，不受任何请求取消的影响。
func (m *Manager) spawn(fn func(ctx context.Context)) error {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		fn(m.bg)
	}()
	return nil
}

// transition 推进状态并唤醒等待者，调用方需持有 e.mu。
func (m *Manager) transition(e *entry, to State) error {
	from := e.state
	if !from.CanAdvanceTo(to) {
		m.logger.WithFields(logging.FileFields("state_transition", e.key)).
			WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
			Error("cache_invariant_violation")
		return fmt.Errorf("%w: %s %s -> %s", ErrInvariantViolation, e.key, from, to)
	}
	e.state = to
	e.broadcastLocked()
	if m.observer != nil {
		m.observer(e.key, from, to)
	}
	return nil
}

func (m *Manager) getOrCreate(key string) *entry {
	if existing, ok := m.entries.Load(key); ok {
		return existing.(*entry)
	}
	actual, _ := m.entries.LoadOrStore(key, newEntry(key, StateInitialized, m.now()))
	return actual.(*entry)
}

// unlink 仅移除表中的这一个条目，不会误删同 key 的新条目。
func (m *Manager) unlink(e *entry) {
	m.entries.CompareAndDelete(e.key, e)
}

// State 返回 key 当前的状态。
func (m *Manager) State(key string) (State, bool) {
	value, ok := m.entries.Load(key)
	if !ok {
		return 0, false
	}
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Stats 汇总缓存表。
type Stats struct {
	Entries int           `json:"entries"`
	Bytes   int64         `json:"bytes"`
	Readers int           `json:"readers"`
	States  map[State]int `json:"states"`
	Limits  Limits        `json:"limits"`
}

// Stats 返回当前缓存表的快照。Bytes 只统计已落盘的条目。
func (m *Manager) Stats() Stats {
	stats := Stats{States: make(map[State]int), Limits: m.limits}
	for _, snap := range m.snapshots() {
		stats.Entries++
		stats.States[snap.state]++
		stats.Readers += snap.readers
		if occupiesDisk(snap.state) {
			stats.Bytes += snap.size
		}
	}
	return stats
}

func (m *Manager) snapshots() []snapshot {
	var out []snapshot
	m.entries.Range(func(_, value any) bool {
		out = append(out, value.(*entry).snapshot())
		return true
	})
	return out
}

func occupiesDisk(state State) bool {
	switch state {
	case StateInCache, StateEvicting, StateEvictingDownloadsComplete:
		return true
	default:
		return false
	}
}
