package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/file-hub/file-hub/internal/files"
)

const filePrefix = "file/"

// FileRepository stores file metadata keyed by link.
type FileRepository struct {
	db *pebble.DB

	// createMu 保证 Create 的 "检查 + 写入" 对同一进程原子。
	createMu sync.Mutex
}

func fileKey(key string) []byte {
	return []byte(filePrefix + key)
}

// Create 写入新文件记录；key 已存在时返回 ErrExists。
func (r *FileRepository) Create(ctx context.Context, file files.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file %s: %w", file.Key, err)
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if _, err := get(r.db, fileKey(file.Key)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, file.Key)
	} else if err != ErrNotFound {
		return err
	}
	return r.db.Set(fileKey(file.Key), payload, pebble.Sync)
}

// Find 按 key 查询文件记录，不存在时返回 ErrNotFound。
func (r *FileRepository) Find(ctx context.Context, key string) (files.File, error) {
	if err := ctx.Err(); err != nil {
		return files.File{}, err
	}
	payload, err := get(r.db, fileKey(key))
	if err != nil {
		return files.File{}, err
	}
	var file files.File
	if err := json.Unmarshal(payload, &file); err != nil {
		return files.File{}, fmt.Errorf("decode file %s: %w", key, err)
	}
	return file, nil
}

// Delete 删除文件记录，返回记录此前是否存在。
func (r *FileRepository) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := get(r.db, fileKey(key)); err == ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := r.db.Delete(fileKey(key), pebble.Sync); err != nil {
		return false, err
	}
	return true, nil
}

// Count 返回目录中的文件数量与总字节数。
func (r *FileRepository) Count(ctx context.Context) (int, int64, error) {
	iter, err := r.db.NewIter(prefixBounds(filePrefix))
	if err != nil {
		return 0, 0, err
	}
	defer iter.Close()

	var (
		count int
		total int64
	)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		var file files.File
		if err := json.Unmarshal(iter.Value(), &file); err != nil {
			return 0, 0, fmt.Errorf("decode file %s: %w", iter.Key(), err)
		}
		count++
		total += file.Size
	}
	return count, total, iter.Error()
}
