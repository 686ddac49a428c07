package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var logLevels = []interface{}{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if err := checkField("Global.ListenPort", g.ListenPort, validation.Required, validation.Min(1), validation.Max(65535)); err != nil {
		return err
	}
	if err := checkField("Global.LogLevel", strings.ToLower(g.LogLevel), validation.In(logLevels...)); err != nil {
		return err
	}
	if err := checkField("Global.StoragePath", g.StoragePath, validation.Required); err != nil {
		return err
	}
	if err := checkField("Global.DatabasePath", g.DatabasePath, validation.Required); err != nil {
		return err
	}
	if err := checkField("Global.MaxUploadSize", g.MaxUploadSize, validation.Required, validation.Min(int64(1))); err != nil {
		return err
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}
	return c.Remote.validate()
}

func (cc CacheConfig) validate() error {
	if err := checkField("Cache.FileCountTarget", cc.FileCountTarget, validation.Required, validation.Min(1)); err != nil {
		return err
	}
	if err := checkField("Cache.FileCountThreshold", cc.FileCountThreshold,
		validation.Required, validation.Min(cc.FileCountTarget).Error("不能小于 FileCountTarget")); err != nil {
		return err
	}
	if err := checkField("Cache.FileSizeTarget", cc.FileSizeTarget, validation.Required, validation.Min(int64(1))); err != nil {
		return err
	}
	if err := checkField("Cache.FileSizeThreshold", cc.FileSizeThreshold,
		validation.Required, validation.Min(cc.FileSizeTarget).Error("不能小于 FileSizeTarget")); err != nil {
		return err
	}
	if err := checkField("Cache.SweepInterval", cc.SweepInterval.DurationValue(), validation.Required); err != nil {
		return err
	}
	if cc.SweepInterval.DurationValue() < 0 {
		return newFieldError("Cache.SweepInterval", "必须大于 0")
	}
	return nil
}

func (r RemoteConfig) validate() error {
	if err := checkField("Remote.Backend", r.Backend, validation.Required, validation.In(RemoteBackendOSS, RemoteBackendMemory)); err != nil {
		return err
	}
	if r.MaxRetries < 0 {
		return newFieldError("Remote.MaxRetries", "不能为负数")
	}
	if r.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Remote.InitialBackoff", "必须大于 0")
	}
	if r.Timeout.DurationValue() <= 0 {
		return newFieldError("Remote.Timeout", "必须大于 0")
	}
	if r.Backend != RemoteBackendOSS {
		return nil
	}

	if err := validateEndpoint(r.Endpoint); err != nil {
		return fmt.Errorf("Remote.Endpoint: %w", err)
	}
	if err := checkField("Remote.Bucket", r.Bucket, validation.Required); err != nil {
		return err
	}
	if (r.AccessKey == "") != (r.SecretKey == "") {
		return newFieldError("Remote.AccessKey/SecretKey", "必须同时提供或同时留空")
	}
	return nil
}

// checkField 运行 ozzo 规则，并把首个失败转换为带字段路径的 FieldError。
func checkField(field string, value interface{}, rules ...validation.Rule) error {
	if err := validation.Validate(value, rules...); err != nil {
		return newFieldError(field, err.Error())
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("缺少远端地址")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，远端: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("远端缺少 Host: %s", raw)
	}
	return nil
}
