package filecache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/file-hub/file-hub/internal/cache"
	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/remote"
	"github.com/file-hub/file-hub/internal/repository"
)

type harness struct {
	disk    *countingDisk
	remote  *fakeRemote
	index   *fakeIndex
	catalog *fakeCatalog
	clock   *fakeClock
}

func newTestManager(t *testing.T, configure func(*Options)) (*Manager, *harness) {
	t.Helper()
	h := &harness{
		disk:    &countingDisk{Store: cache.NewStoreWithFs(afero.NewMemMapFs())},
		remote:  &fakeRemote{objects: make(map[string][]byte)},
		index:   &fakeIndex{records: make(map[string]time.Time)},
		catalog: &fakeCatalog{files: make(map[string]files.File)},
		clock:   &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	opts := Options{
		Disk:    h.disk,
		Remote:  h.remote,
		Index:   h.index,
		Catalog: h.catalog,
		Limits: Limits{
			CountThreshold: 1000,
			CountTarget:    1000,
			SizeThreshold:  1 << 30,
			SizeTarget:     1 << 30,
		},
		SweepConcurrency: 4,
		Now:              h.clock.Now,
	}
	if configure != nil {
		configure(&opts)
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, h
}

// addRemoteFile 模拟一个已上传但尚未缓存到本地的文件。
func (h *harness) addRemoteFile(key string, data []byte) files.File {
	file := files.File{Key: key, Name: key, ContentType: "application/octet-stream", Size: int64(len(data))}
	h.remote.set(key, data)
	h.catalog.add(file)
	return file
}

func (h *harness) upload(t *testing.T, m *Manager, key string, data []byte) files.File {
	t.Helper()
	file := files.File{Key: key, Name: key, ContentType: "text/plain", Size: int64(len(data))}
	require.NoError(t, m.Upload(context.Background(), file, bytes.NewReader(data)))
	h.catalog.add(file)
	return file
}

func readAll(t *testing.T, m *Manager, key string) []byte {
	t.Helper()
	stream, err := m.Read(context.Background(), key, 0, -1)
	require.NoError(t, err)
	defer stream.Close()
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	return data
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now 每次调用前进一秒，保证 lastUsed 严格有序。
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeRemote struct {
	mu      sync.Mutex
	objects map[string][]byte
	gate    chan struct{}

	gets    atomic.Int32
	puts    atomic.Int32
	deletes atomic.Int32
}

func (r *fakeRemote) set(key string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[key] = append([]byte(nil), data...)
}

func (r *fakeRemote) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[key]
	return ok
}

func (r *fakeRemote) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r.gets.Add(1)
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *fakeRemote) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	r.puts.Add(1)
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	r.set(key, data)
	return nil
}

func (r *fakeRemote) Delete(_ context.Context, key string) (bool, error) {
	r.deletes.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[key]
	delete(r.objects, key)
	return ok, nil
}

func (r *fakeRemote) calls() int32 {
	return r.gets.Load() + r.puts.Load() + r.deletes.Load()
}

type fakeIndex struct {
	mu      sync.Mutex
	records map[string]time.Time
	removes int
}

func (i *fakeIndex) UpsertLastUsed(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[key] = time.Now()
	return nil
}

func (i *fakeIndex) Touch(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.records[key]; ok {
		i.records[key] = time.Now()
	}
	return nil
}

func (i *fakeIndex) RemoveMany(_ context.Context, keys []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removes++
	for _, key := range keys {
		delete(i.records, key)
	}
	return nil
}

func (i *fakeIndex) ListAll(context.Context) ([]files.CacheRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]files.CacheRecord, 0, len(i.records))
	for key, lastUsed := range i.records {
		out = append(out, files.CacheRecord{Key: key, LastUsed: lastUsed})
	}
	return out, nil
}

func (i *fakeIndex) keys() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.records))
	for key := range i.records {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (i *fakeIndex) removeCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.removes
}

type fakeCatalog struct {
	mu    sync.Mutex
	files map[string]files.File
}

func (c *fakeCatalog) add(file files.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[file.Key] = file
}

func (c *fakeCatalog) Find(_ context.Context, key string) (files.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	file, ok := c.files[key]
	if !ok {
		return files.File{}, fmt.Errorf("%w: %s", repository.ErrNotFound, key)
	}
	return file, nil
}

type countingDisk struct {
	cache.Store

	mu         sync.Mutex
	puts       int
	deletes    int
	reads      int
	failDelete error
	// afterPut 在正文写入磁盘后被调用，用于在上传中途插入并发事件。
	afterPut func(key string)
}

func (d *countingDisk) Put(ctx context.Context, key string, body io.Reader) (*cache.Entry, error) {
	d.mu.Lock()
	d.puts++
	hook := d.afterPut
	d.mu.Unlock()
	written, err := d.Store.Put(ctx, key, body)
	if err == nil && hook != nil {
		hook(key)
	}
	return written, err
}

func (d *countingDisk) ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	d.mu.Lock()
	d.reads++
	d.mu.Unlock()
	return d.Store.ReadRange(ctx, key, start, end)
}

func (d *countingDisk) Delete(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	d.deletes++
	failure := d.failDelete
	d.mu.Unlock()
	if failure != nil {
		return false, failure
	}
	return d.Store.Delete(ctx, key)
}

func (d *countingDisk) setFailDelete(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failDelete = err
}

func (d *countingDisk) ioCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.puts + d.deletes + d.reads
}

func (d *countingDisk) keys(t *testing.T) []string {
	t.Helper()
	entries, err := d.Store.List(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Key)
	}
	sort.Strings(out)
	return out
}
