package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arbitrage-sim-lab/internal/config"
)

func TestBuild_JSONToStderr(t *testing.T) {
	var buf bytes.Buffer
	logger := build(config.AppConfig{Name: "arblab", Env: "test", LogLevel: "info", LogFormat: "json"}, config.LogConfig{}, &buf)
	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("debug 不应输出, lines=%d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("输出不是 JSON: %v", err)
	}
	if entry["msg"] != "visible" || entry["app"] != "arblab" || entry["env"] != "test" {
		t.Fatalf("entry=%v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("缺少 ts 字段: %v", entry)
	}
}

func TestBuild_TeesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arblab.log")
	var buf bytes.Buffer
	logger := build(config.AppConfig{LogLevel: "debug", LogFormat: "console"}, config.LogConfig{File: path, MaxSizeMB: 1}, &buf)
	logger.Debug("to both")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to both"`) {
		t.Fatalf("文件内容=%s", data)
	}
	if !strings.Contains(buf.String(), "to both") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("stderr 应为 console 格式: %s", buf.String())
	}
}

func TestBuild_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := build(config.AppConfig{LogLevel: "loud"}, config.LogConfig{}, &buf)
	logger.Info("ok")
	_ = logger.Sync()
	if !strings.Contains(buf.String(), "ok") {
		t.Fatalf("无效级别应回退为 info")
	}
}
