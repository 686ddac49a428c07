package repository

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	// ErrNotFound 表示记录不存在。
	ErrNotFound = errors.New("record not found")
	// ErrExists 表示以相同 key 重复创建记录。
	ErrExists = errors.New("record already exists")
)

// DB wraps the pebble handle shared by the catalog and the cache index.
type DB struct {
	db    *pebble.DB
	files *FileRepository
	index *CacheIndex
}

func newDB(db *pebble.DB) *DB {
	return &DB{
		db:    db,
		files: &FileRepository{db: db},
		index: &CacheIndex{db: db},
	}
}

// Open 打开（或创建）dir 下的 pebble 数据库。
func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, errors.New("database path required")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return newDB(db), nil
}

// OpenInMemory 返回基于内存 vfs 的数据库，仅用于测试与开发模式。
func OpenInMemory() (*DB, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	return newDB(db), nil
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Files returns the catalog view of the database.
func (d *DB) Files() *FileRepository {
	return d.files
}

// CacheIndex returns the cache index view of the database.
func (d *DB) CacheIndex() *CacheIndex {
	return d.index
}

// prefixBounds returns [prefix, prefix+1) iteration bounds.
func prefixBounds(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	upper := make([]byte, len(lower))
	copy(upper, lower)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
}

func get(db *pebble.DB, key []byte) ([]byte, error) {
	value, closer, err := db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	closer.Close()
	return out, nil
}
