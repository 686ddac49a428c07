package remote

import (
	"net"
	"net/http"
	"time"

	"github.com/file-hub/file-hub/internal/config"
)

// 共享 Transport，复用到 OSS 的长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

const defaultTimeout = 5 * time.Minute

// NewHTTPClient 返回访问远端存储使用的 http.Client。
// Timeout 覆盖整次请求（含正文传输），大文件需相应调大。
func NewHTTPClient(cfg config.RemoteConfig) *http.Client {
	timeout := defaultTimeout
	if cfg.Timeout.DurationValue() > 0 {
		timeout = cfg.Timeout.DurationValue()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}
