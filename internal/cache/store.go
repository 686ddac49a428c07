package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<key>    # 文件正文
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Put 将正文写入缓存，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。
	Put(ctx context.Context, key string, body io.Reader) (*Entry, error)

	// ReadRange 以流的形式返回 [start, end) 区间。若不存在则返回 ErrNotFound。
	ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Delete 删除正文文件，返回文件此前是否存在。
	Delete(ctx context.Context, key string) (bool, error)

	// List 枚举磁盘上现存的所有正文（包括残留的临时文件）。
	List(ctx context.Context) ([]Entry, error)
}

// Entry 描述磁盘上的一个正文文件。
type Entry struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// TempPrefix 是写入过程中临时文件的前缀。
const TempPrefix = ".cache-"

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidKey 表示 key 无法映射为 StoragePath 下的单一文件名。
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrInvalidRange 表示请求区间超出文件范围。
	ErrInvalidRange = errors.New("invalid cache range")
)
