package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const rootDir = "/"

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return NewStoreWithFs(afero.NewBasePathFs(osFs, abs)), nil
}

// NewStoreWithFs 在任意 afero.Fs 的根目录上构建缓存，测试中通常传入 MemMapFs。
func NewStoreWithFs(fsys afero.Fs) Store {
	return &fileStore{
		fs:    fsys,
		locks: make(map[string]*entryLock),
	}
}

// fileStore 通过 entryLock 避免同一 key 并发写入/删除。
type fileStore struct {
	fs afero.Fs

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

type rangeReader struct {
	io.Reader
	file afero.File
}

func (r *rangeReader) Close() error {
	return r.file.Close()
}

func (s *fileStore) ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	if start < 0 || end < start || end > info.Size() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, info.Size())
	}

	f, err := s.fs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &rangeReader{
		Reader: io.LimitReader(f, end-start),
		file:   f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key string, body io.Reader) (*Entry, error) {
	unlock, err := s.lockEntry(key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	tempFile, err := afero.TempFile(s.fs, rootDir, TempPrefix+"*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.fs.Remove(tempName)
		return nil, err
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		s.fs.Remove(tempName)
		return nil, err
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		return nil, err
	}

	return &Entry{
		Key:       key,
		SizeBytes: written,
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Delete(ctx context.Context, key string) (bool, error) {
	unlock, err := s.lockEntry(key)
	if err != nil {
		return false, err
	}
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return false, err
	}
	if err := s.fs.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *fileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, rootDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Key:       info.Name(),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	return entries, nil
}

func (s *fileStore) lockEntry(key string) (func(), error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}, nil
}

func (s *fileStore) entryPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return rootDir + key, nil
}

// validateKey 保证 key 只能落在根目录下的单一文件，拒绝路径穿越。
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, os.PathSeparator) {
		return ErrInvalidKey
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
