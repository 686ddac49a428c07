package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Remote backends.
const (
	RemoteBackendOSS    = "oss"
	RemoteBackendMemory = "memory"
)

// GlobalConfig 描述服务级运行参数：监听端口、日志、磁盘缓存与淘汰预算。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`
	DatabasePath  string `mapstructure:"DatabasePath"`
	MaxUploadSize int64  `mapstructure:"MaxUploadSize"`
}

// CacheConfig 定义磁盘缓存的两组预算：超过 Threshold 才触发淘汰，淘汰到 Target 为止。
type CacheConfig struct {
	FileCountThreshold int      `mapstructure:"FileCountThreshold"`
	FileCountTarget    int      `mapstructure:"FileCountTarget"`
	FileSizeThreshold  int64    `mapstructure:"FileSizeThreshold"`
	FileSizeTarget     int64    `mapstructure:"FileSizeTarget"`
	SweepInterval      Duration `mapstructure:"SweepInterval"`
	SweepConcurrency   int      `mapstructure:"SweepConcurrency"`
}

// RemoteConfig 描述远端对象存储（OSS 或开发用的内存实现）。
type RemoteConfig struct {
	Backend        string   `mapstructure:"Backend"`
	Endpoint       string   `mapstructure:"Endpoint"`
	AccessKey      string   `mapstructure:"AccessKey"`
	SecretKey      string   `mapstructure:"SecretKey"`
	Bucket         string   `mapstructure:"Bucket"`
	MaxRetries     int      `mapstructure:"MaxRetries"`
	InitialBackoff Duration `mapstructure:"InitialBackoff"`
	Timeout        Duration `mapstructure:"Timeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Cache  CacheConfig  `mapstructure:",squash"`
	Remote RemoteConfig `mapstructure:"Remote"`
}

// HasCredentials 表示远端是否配置了完整的访问密钥。
func (r RemoteConfig) HasCredentials() bool {
	return r.AccessKey != "" && r.SecretKey != ""
}

// Summary 输出 backend:bucket 形式的摘要，供启动日志使用（不包含密钥）。
func (r RemoteConfig) Summary() string {
	if r.Backend == RemoteBackendMemory {
		return RemoteBackendMemory
	}
	return fmt.Sprintf("%s:%s", r.Backend, r.Bucket)
}
