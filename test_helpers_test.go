package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// moduleDir 是 go.mod 所在目录，配置夹具相对它定位。
var moduleDir = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return ""
		}
	}
}()

// configFixture 返回 internal/config/testdata 下的 file-hub 配置夹具。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	if moduleDir == "" {
		t.Fatal("找不到 file-hub 的 go.mod")
	}
	return filepath.Join(moduleDir, "internal", "config", "testdata", name)
}

// captureCLIOutput 在测试期间把 CLI 的 stdout/stderr 重定向到内存缓冲。
func captureCLIOutput(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = stdout, stderr
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return stdout, stderr
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}
