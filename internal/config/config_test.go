// Package config 配置模块测试
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigValidation_FeeRateRange 测试手续费率范围验证
// 属性: 费率在 [0, 1] 范围外应验证失败
func TestConfigValidation_FeeRateRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 费率 < 0 应验证失败
	properties.Property("费率小于0应验证失败", prop.ForAll(
		func(rate float64) bool {
			cfg := Default()
			cfg.Paper.FeeRate = rate
			return cfg.Validate() != nil
		},
		gen.Float64Range(-1000, -0.0001),
	))

	// 属性: 费率 > 1 应验证失败
	properties.Property("费率大于1应验证失败", prop.ForAll(
		func(rate float64) bool {
			cfg := Default()
			cfg.Strategy.FeeRate = rate
			return cfg.Validate() != nil
		},
		gen.Float64Range(1.0001, 1000),
	))

	// 属性: 费率在 [0, 1] 范围内应验证通过
	properties.Property("费率在有效范围内应通过验证", prop.ForAll(
		func(rate float64) bool {
			cfg := Default()
			cfg.Strategy.FeeRate = rate
			cfg.Paper.FeeRate = rate
			cfg.Backtest.CommissionRate = rate
			return cfg.Validate() == nil
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// TestConfigValidation_Probability 测试成交概率范围
func TestConfigValidation_Probability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("成交概率在 [0,1] 内当且仅当验证通过", prop.ForAll(
		func(p float64) bool {
			cfg := Default()
			cfg.Paper.FillProbability = p
			ok := cfg.Validate() == nil
			return ok == (p >= 0 && p <= 1)
		},
		gen.Float64Range(-2, 3),
	))

	properties.TestingRun(t)
}

// TestDefault 测试默认值
func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应合法: %v", err)
	}
	if cfg.Strategy.MinSpreadBps != 15 || cfg.Strategy.OrderSize != 0.01 {
		t.Errorf("Strategy=%+v", cfg.Strategy)
	}
	if cfg.Risk.MaxExposureFor(100000) != 50000 {
		t.Errorf("MaxExposureFor=%f, want 50000", cfg.Risk.MaxExposureFor(100000))
	}
	if !cfg.Risk.KillSwitchEnabled || !cfg.Policy.Enabled {
		t.Errorf("kill switch 与 policy 默认启用")
	}
	if cfg.Backtest.MaxWindows != 500 || cfg.Backtest.WindowMs != 60000 {
		t.Errorf("Backtest=%+v", cfg.Backtest)
	}
	if cfg.Synthetic.Seed != 42 || cfg.Synthetic.Venues != 2 {
		t.Errorf("Synthetic=%+v", cfg.Synthetic)
	}
}

// TestConfigValidation_AggregatesErrors 测试多个错误一起返回
func TestConfigValidation_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.App.LogLevel = "verbose"
	cfg.Strategy.OrderSize = 0
	cfg.Paper.Mode = "live"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("应验证失败")
	}
	for _, field := range []string{"app.log_level", "strategy.order_size", "paper.mode"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("错误信息缺少 %s: %v", field, err)
		}
	}
}

// TestLoad_ValidFile 测试加载有效配置文件
func TestLoad_ValidFile(t *testing.T) {
	content := `
app:
  name: test-lab
  log_level: debug

strategy:
  min_spread_bps: 8
  order_size: 0.05

risk:
  max_exposure: 20000
  kill_switch_enabled: false

backtest:
  max_windows: 10
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("创建临时文件失败: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.App.Name != "test-lab" {
		t.Errorf("App.Name = %s, want test-lab", cfg.App.Name)
	}
	if cfg.Strategy.MinSpreadBps != 8 || cfg.Strategy.OrderSize != 0.05 {
		t.Errorf("Strategy = %+v", cfg.Strategy)
	}
	if cfg.Strategy.FeeRate != 0.001 {
		t.Errorf("未配置字段应保留默认值, FeeRate=%f", cfg.Strategy.FeeRate)
	}
	if cfg.Risk.KillSwitchEnabled {
		t.Errorf("kill_switch_enabled: false 应生效")
	}
	if cfg.Risk.MaxExposureFor(100000) != 20000 {
		t.Errorf("MaxExposureFor=%f, want 20000", cfg.Risk.MaxExposureFor(100000))
	}
	if cfg.Backtest.MaxWindows != 10 {
		t.Errorf("Backtest.MaxWindows = %d, want 10", cfg.Backtest.MaxWindows)
	}
}

// TestLoad_EnvOverrides 测试环境变量覆盖
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("DATA_DIR", "/tmp/arb-data")
	t.Setenv("SYNTHETIC_SEED", "7")
	t.Setenv("SYNTHETIC_VENUES", "not-a-number")
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "250000")
	t.Setenv("PAPER_MODE", "simulated")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.App.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warn", cfg.App.LogLevel)
	}
	if cfg.Data.Dir != "/tmp/arb-data" {
		t.Errorf("Data.Dir = %s", cfg.Data.Dir)
	}
	if cfg.Synthetic.Seed != 7 {
		t.Errorf("Synthetic.Seed = %d, want 7", cfg.Synthetic.Seed)
	}
	if cfg.Synthetic.Venues != 2 {
		t.Errorf("无效数值应保留默认值, Venues = %d", cfg.Synthetic.Venues)
	}
	if cfg.Backtest.InitialCapital != 250000 {
		t.Errorf("Backtest.InitialCapital = %f", cfg.Backtest.InitialCapital)
	}
}

// TestLoad_InvalidFile 测试加载无效文件
func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("加载不存在的文件应返回错误")
	}
}

// TestLoad_InvalidYAML 测试加载无效 YAML
func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(tmpFile, []byte("invalid: yaml: content:"), 0644); err != nil {
		t.Fatalf("创建临时文件失败: %v", err)
	}

	_, err := Load(tmpFile)
	if err == nil {
		t.Error("加载无效 YAML 应返回错误")
	}
}

// TestLoad_ExampleFile 仓库自带的示例配置必须能通过验证
func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("加载示例配置失败: %v", err)
	}
	if cfg.Synthetic.Venues != 3 {
		t.Fatalf("synthetic.venues 期望 3，实际 %d", cfg.Synthetic.Venues)
	}
	if cfg.Risk.KillSwitchDrawdownPct != 0.05 {
		t.Fatalf("risk.kill_switch_drawdown_pct 期望 0.05，实际 %v", cfg.Risk.KillSwitchDrawdownPct)
	}
	if cfg.Replay.IntervalMs != 50 || !cfg.Output.MetricsEnabled {
		t.Fatalf("replay/output 字段未正确解析: %+v %+v", cfg.Replay, cfg.Output)
	}
}
