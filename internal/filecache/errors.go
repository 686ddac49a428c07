package filecache

import "errors"

var (
	// ErrNotFound 表示 key 从未上传或已被删除。
	ErrNotFound = errors.New("file not found")
	// ErrDownloadFailed 表示远端拉取或落盘失败，条目停留在 ERROR 直到下一次淘汰。
	ErrDownloadFailed = errors.New("download failed")
	// ErrAlreadyExists 表示上传的 key 已被缓存表跟踪。
	ErrAlreadyExists = errors.New("file already exists")
	// ErrInvariantViolation 表示状态回退或下载期间条目被改写。
	ErrInvariantViolation = errors.New("cache invariant violation")
	// ErrInvalidRange 表示请求区间超出文件范围。
	ErrInvalidRange = errors.New("invalid range")
	// ErrSweepInProgress 表示上一轮淘汰尚未结束，本轮跳过。
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrClosed 表示 Manager 已关闭，不再派生后台任务。
	ErrClosed = errors.New("cache manager closed")
)
