package filecache

import (
	"context"
	"io"

	"github.com/file-hub/file-hub/internal/cache"
	"github.com/file-hub/file-hub/internal/files"
)

// Remote 是远端对象存储。Get 在对象不存在时返回 remote.ErrNotFound。
type Remote interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) (bool, error)
}

// Index 持久化记录哪些 key 已落在本地磁盘，以及最后使用时间。
type Index interface {
	UpsertLastUsed(ctx context.Context, key string) error
	Touch(ctx context.Context, key string) error
	RemoveMany(ctx context.Context, keys []string) error
	ListAll(ctx context.Context) ([]files.CacheRecord, error)
}

// Disk 是本地磁盘后端，与 cache.Store 一致。
type Disk interface {
	Put(ctx context.Context, key string, body io.Reader) (*cache.Entry, error)
	ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]cache.Entry, error)
}

// Catalog 提供文件元数据。未知 key 返回 repository.ErrNotFound。
type Catalog interface {
	Find(ctx context.Context, key string) (files.File, error)
}
