package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/file-hub/file-hub/internal/files"
)

const cachePrefix = "cache/"

// CacheIndex records which keys are present in the local disk cache.
type CacheIndex struct {
	db  *pebble.DB
	now func() time.Time
}

func cacheKey(key string) []byte {
	return []byte(cachePrefix + key)
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("invalid timestamp length %d", len(b))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC(), nil
}

func (c *CacheIndex) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

// UpsertLastUsed 插入 key，或刷新已存在 key 的最后使用时间。
func (c *CacheIndex) UpsertLastUsed(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Set(cacheKey(key), encodeTime(c.clock()), pebble.Sync)
}

// Touch 仅在 key 已存在时刷新最后使用时间。
func (c *CacheIndex) Touch(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := get(c.db, cacheKey(key)); err == ErrNotFound {
		return nil
	} else if err != nil {
		return err
	}
	return c.db.Set(cacheKey(key), encodeTime(c.clock()), pebble.NoSync)
}

// RemoveMany 在一个 batch 中删除多个 key；空列表直接返回。
func (c *CacheIndex) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := c.db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		if err := batch.Delete(cacheKey(key), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// ListAll 返回索引中的全部记录。
func (c *CacheIndex) ListAll(ctx context.Context) ([]files.CacheRecord, error) {
	iter, err := c.db.NewIter(prefixBounds(cachePrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []files.CacheRecord
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastUsed, err := decodeTime(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode cache record %s: %w", iter.Key(), err)
		}
		records = append(records, files.CacheRecord{
			Key:      strings.TrimPrefix(string(iter.Key()), cachePrefix),
			LastUsed: lastUsed,
		})
	}
	return records, iter.Error()
}
