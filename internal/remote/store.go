package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/file-hub/file-hub/internal/config"
)

// Store 是远端对象存储的最小契约。
type Store interface {
	// Get 返回对象正文，调用方负责关闭。对象不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Put 写入对象；body 若实现 io.Seeker，重试前会被倒回起点。
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Delete 删除对象，返回对象此前是否存在。
	Delete(ctx context.Context, key string) (bool, error)
}

// ErrNotFound 表示远端不存在该对象。
var ErrNotFound = errors.New("remote object not found")

// New 根据配置构造远端实现。
func New(cfg config.RemoteConfig) (Store, error) {
	switch cfg.Backend {
	case config.RemoteBackendOSS:
		return NewOSS(cfg)
	case config.RemoteBackendMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported remote backend %q", cfg.Backend)
	}
}
