package filecache

import "fmt"

// State 是缓存条目的生命周期状态。
type State int

const (
	StateInitialized State = iota
	StateDownloading
	StateInCache
	StateError
	StateEvicting
	StateEvictingDownloadsComplete
	StateEvicted
)

var stateNames = map[State]string{
	StateInitialized:               "INITIALIZED",
	StateDownloading:               "DOWNLOADING",
	StateInCache:                   "IN_CACHE",
	StateError:                     "ERROR",
	StateEvicting:                  "EVICTING",
	StateEvictingDownloadsComplete: "EVICTING_DOWNLOADS_COMPLETE",
	StateEvicted:                   "EVICTED",
}

// Level 返回状态在格中的层级。IN_CACHE 与 ERROR 同级且不可比较。
func (s State) Level() int {
	switch s {
	case StateInitialized:
		return 0
	case StateDownloading:
		return 1
	case StateInCache, StateError:
		return 2
	case StateEvicting:
		return 3
	case StateEvictingDownloadsComplete:
		return 4
	case StateEvicted:
		return 5
	default:
		return -1
	}
}

// CanAdvanceTo 报告 s → next 是否严格前进。
func (s State) CanAdvanceTo(next State) bool {
	return next.Level() > s.Level() && s.Level() >= 0
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText 让统计信息以状态名输出。
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
