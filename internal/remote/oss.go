package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/avast/retry-go/v4"

	"github.com/file-hub/file-hub/internal/config"
	"github.com/file-hub/file-hub/internal/version"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 200 * time.Millisecond
)

// objectAPI 是 *oss.Bucket 中被使用的子集，便于测试替换。
type objectAPI interface {
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
}

// OSS 通过阿里云 OSS SDK 访问单个 bucket。瞬时错误在此层按配置重试，
// 上层缓存引擎不再重试。
type OSS struct {
	bucket   objectAPI
	attempts uint
	backoff  time.Duration
}

// NewOSS 根据配置连接 bucket。
func NewOSS(cfg config.RemoteConfig) (*OSS, error) {
	client, err := oss.New(
		cfg.Endpoint,
		cfg.AccessKey,
		cfg.SecretKey,
		oss.HTTPClient(NewHTTPClient(cfg)),
		oss.UserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket %s: %w", cfg.Bucket, err)
	}
	return newOSS(bucket, cfg), nil
}

func newOSS(bucket objectAPI, cfg config.RemoteConfig) *OSS {
	attempts := uint(defaultMaxRetries)
	if cfg.MaxRetries > 0 {
		attempts = uint(cfg.MaxRetries)
	}
	backoff := defaultInitialBackoff
	if cfg.InitialBackoff.DurationValue() > 0 {
		backoff = cfg.InitialBackoff.DurationValue()
	}
	return &OSS{bucket: bucket, attempts: attempts, backoff: backoff}
}

func (o *OSS) retryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	}
}

func (o *OSS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := retry.DoWithData(func() (io.ReadCloser, error) {
		return o.bucket.GetObject(key, oss.WithContext(ctx))
	}, o.retryOptions(ctx)...)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("oss get %s: %w", key, err)
	}
	return body, nil
}

func (o *OSS) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	seeker, rewindable := body.(io.Seeker)
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if size >= 0 {
		opts = append(opts, oss.ContentLength(size))
	}

	first := true
	retryOpts := o.retryOptions(ctx)
	if !rewindable {
		// 不可倒回的正文只能尝试一次。
		retryOpts = append(retryOpts, retry.Attempts(1))
	}
	err := retry.Do(func() error {
		if !first {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return retry.Unrecoverable(err)
			}
		}
		first = false
		return o.bucket.PutObject(key, body, opts...)
	}, retryOpts...)
	if err != nil {
		return fmt.Errorf("oss put %s: %w", key, err)
	}
	return nil
}

func (o *OSS) Delete(ctx context.Context, key string) (bool, error) {
	var existed bool
	err := retry.Do(func() error {
		ok, err := o.bucket.IsObjectExist(key, oss.WithContext(ctx))
		if err != nil {
			return err
		}
		existed = ok
		if !ok {
			return nil
		}
		return o.bucket.DeleteObject(key, oss.WithContext(ctx))
	}, o.retryOptions(ctx)...)
	if err != nil {
		return false, fmt.Errorf("oss delete %s: %w", key, err)
	}
	return existed, nil
}

func serviceStatus(err error) (int, bool) {
	var value oss.ServiceError
	if errors.As(err, &value) {
		return value.StatusCode, true
	}
	var ptr *oss.ServiceError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.StatusCode, true
	}
	return 0, false
}

func isNotFound(err error) bool {
	status, ok := serviceStatus(err)
	return ok && status == http.StatusNotFound
}

// isRetryable 仅对网络错误、5xx 与限流重试；4xx 直接返回。
func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status, ok := serviceStatus(err)
	if !ok {
		return true
	}
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
