package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyCacheDefaults(&cfg.Cache)
	applyRemoteDefaults(&cfg.Remote)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	absDatabase, err := filepath.Abs(cfg.Global.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析数据库目录: %w", err)
	}
	cfg.Global.DatabasePath = absDatabase

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("DatabasePath", "./data")
	v.SetDefault("MaxUploadSize", 512*1024*1024)
	v.SetDefault("FileCountThreshold", 15000)
	v.SetDefault("FileCountTarget", 10000)
	v.SetDefault("FileSizeThreshold", int64(15)*1024*1024*1024)
	v.SetDefault("FileSizeTarget", int64(10)*1024*1024*1024)
	v.SetDefault("SweepInterval", "5m")
	v.SetDefault("SweepConcurrency", 8)
	v.SetDefault("Remote.Backend", RemoteBackendOSS)
	v.SetDefault("Remote.MaxRetries", 3)
	v.SetDefault("Remote.InitialBackoff", "1s")
	v.SetDefault("Remote.Timeout", "60s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.MaxUploadSize == 0 {
		g.MaxUploadSize = 512 * 1024 * 1024
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.SweepInterval.DurationValue() == 0 {
		c.SweepInterval = Duration(5 * time.Minute)
	}
	if c.SweepConcurrency < 0 {
		c.SweepConcurrency = 0
	}
}

func applyRemoteDefaults(r *RemoteConfig) {
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	if r.Backend == "" {
		r.Backend = RemoteBackendOSS
	}
	if r.InitialBackoff.DurationValue() == 0 {
		r.InitialBackoff = Duration(time.Second)
	}
	if r.Timeout.DurationValue() == 0 {
		r.Timeout = Duration(60 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
