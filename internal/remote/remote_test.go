package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/file-hub/file-hub/internal/config"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Put(ctx, "k", "text/plain", strings.NewReader("hello"), 5); err != nil {
		t.Fatalf("put error: %v", err)
	}
	body, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "hello" {
		t.Fatalf("unexpected body %q", data)
	}
	if ct, ok := store.ContentType("k"); !ok || ct != "text/plain" {
		t.Fatalf("unexpected content type %q", ct)
	}

	deleted, err := store.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "k")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v", deleted, err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryPutRejectsSizeMismatch(t *testing.T) {
	store := NewMemory()
	if err := store.Put(context.Background(), "k", "", strings.NewReader("abc"), 10); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	if _, ok := store.ContentType("k"); ok {
		t.Fatalf("object should not be stored")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.RemoteConfig{Backend: config.RemoteBackendMemory})
	if err != nil {
		t.Fatalf("new error: %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("expected memory backend, got %T", store)
	}
	if _, err := New(config.RemoteConfig{Backend: "ftp"}); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestNewHTTPClientUsesConfigTimeout(t *testing.T) {
	client := NewHTTPClient(config.RemoteConfig{Timeout: config.Duration(45 * time.Second)})
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if NewHTTPClient(config.RemoteConfig{}).Timeout != defaultTimeout {
		t.Fatalf("expected default timeout")
	}
}

func TestOSSGetRetriesServerErrors(t *testing.T) {
	bucket := &fakeBucket{getErrs: []error{serviceError(http.StatusServiceUnavailable)}, data: map[string]string{"k": "payload"}}
	store := newOSS(bucket, testRemoteConfig())

	body, err := store.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	data, _ := io.ReadAll(body)
	if string(data) != "payload" {
		t.Fatalf("unexpected body %q", data)
	}
	if bucket.getCalls != 2 {
		t.Fatalf("expected 2 get calls, got %d", bucket.getCalls)
	}
}

func TestOSSGetMapsNotFoundWithoutRetry(t *testing.T) {
	bucket := &fakeBucket{data: map[string]string{}}
	store := newOSS(bucket, testRemoteConfig())

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if bucket.getCalls != 1 {
		t.Fatalf("404 should not be retried, got %d calls", bucket.getCalls)
	}
}

func TestOSSPutRewindsBodyBetweenAttempts(t *testing.T) {
	bucket := &fakeBucket{putErrs: []error{errors.New("connection reset")}, data: map[string]string{}}
	store := newOSS(bucket, testRemoteConfig())

	if err := store.Put(context.Background(), "k", "text/plain", strings.NewReader("abc"), 3); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if bucket.putCalls != 2 {
		t.Fatalf("expected 2 put calls, got %d", bucket.putCalls)
	}
	if bucket.data["k"] != "abc" {
		t.Fatalf("expected full body after rewind, got %q", bucket.data["k"])
	}
}

func TestOSSPutDoesNotRetryOneShotBody(t *testing.T) {
	bucket := &fakeBucket{putErrs: []error{errors.New("connection reset")}, data: map[string]string{}}
	store := newOSS(bucket, testRemoteConfig())

	body := io.NopCloser(strings.NewReader("abc"))
	if err := store.Put(context.Background(), "k", "", body, 3); err == nil {
		t.Fatalf("expected put error")
	}
	if bucket.putCalls != 1 {
		t.Fatalf("expected single attempt, got %d", bucket.putCalls)
	}
}

func TestOSSDeleteReportsExistence(t *testing.T) {
	bucket := &fakeBucket{data: map[string]string{"k": "v"}}
	store := newOSS(bucket, testRemoteConfig())
	ctx := context.Background()

	deleted, err := store.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "k")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v", deleted, err)
	}
}

func testRemoteConfig() config.RemoteConfig {
	return config.RemoteConfig{
		Backend:        config.RemoteBackendOSS,
		MaxRetries:     3,
		InitialBackoff: config.Duration(time.Millisecond),
	}
}

func serviceError(status int) error {
	return oss.ServiceError{StatusCode: status, Code: http.StatusText(status)}
}

type fakeBucket struct {
	mu       sync.Mutex
	data     map[string]string
	getErrs  []error
	putErrs  []error
	getCalls int
	putCalls int
}

func (f *fakeBucket) GetObject(key string, _ ...oss.Option) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, err
	}
	value, ok := f.data[key]
	if !ok {
		return nil, serviceError(http.StatusNotFound)
	}
	return io.NopCloser(strings.NewReader(value)), nil
}

func (f *fakeBucket) PutObject(key string, reader io.Reader, _ ...oss.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		return err
	}
	f.data[key] = string(data)
	return nil
}

func (f *fakeBucket) DeleteObject(key string, _ ...oss.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeBucket) IsObjectExist(key string, _ ...oss.Option) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}
