// Package config 负责加载和验证配置。
// 配置来源依次为：内置默认值 -> YAML 文件 -> .env 文件 -> 环境变量。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Log 日志文件配置
	Log LogConfig `yaml:"log"`
	// Data 数据目录配置
	Data DataConfig `yaml:"data"`
	// Synthetic 合成数据配置
	Synthetic SyntheticConfig `yaml:"synthetic"`
	// Strategy 策略参数配置
	Strategy StrategyConfig `yaml:"strategy"`
	// Risk 风控配置
	Risk RiskConfig `yaml:"risk"`
	// Paper 模拟成交配置
	Paper PaperConfig `yaml:"paper"`
	// Backtest 回测配置
	Backtest BacktestConfig `yaml:"backtest"`
	// Policy 参数建议配置
	Policy PolicyConfig `yaml:"policy"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Replay 本地回放配置
	Replay ReplayConfig `yaml:"replay"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// Env 运行环境: development, production
	Env string `yaml:"env"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFormat 日志格式: json, console
	LogFormat string `yaml:"log_format"`
	// CorrelationIDPrefix 关联 ID 前缀
	CorrelationIDPrefix string `yaml:"correlation_id_prefix"`
}

// LogConfig 日志文件配置（为空时只输出到 stderr）
type LogConfig struct {
	// File 日志文件路径
	File string `yaml:"file"`
	// MaxSizeMB 单个文件最大大小（MB）
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxBackups 保留的旧文件数量
	MaxBackups int `yaml:"max_backups"`
	// MaxAgeDays 旧文件保留天数
	MaxAgeDays int `yaml:"max_age_days"`
	// Compress 是否压缩旧文件
	Compress bool `yaml:"compress"`
}

// DataConfig 数据目录配置
type DataConfig struct {
	// Dir 行情数据目录（trades.csv / orderbook.csv / candles.csv）
	Dir string `yaml:"dir"`
}

// SyntheticConfig 合成数据配置
type SyntheticConfig struct {
	// Seed 随机种子
	Seed int64 `yaml:"seed"`
	// Venues 场所数量
	Venues int `yaml:"venues"`
	// Days 生成天数
	Days int `yaml:"days"`
	// Symbol 交易对
	Symbol string `yaml:"symbol"`
	// BasePrice 起始价格
	BasePrice float64 `yaml:"base_price"`
	// Volatility 单步波动率
	Volatility float64 `yaml:"volatility"`
	// SpreadBps 买卖价差（基点）
	SpreadBps float64 `yaml:"spread_bps"`
}

// StrategyConfig 策略参数配置
type StrategyConfig struct {
	// ID 策略标识
	ID string `yaml:"id"`
	// Symbol 交易对
	Symbol string `yaml:"symbol"`
	// MinSpreadBps 净价差阈值（基点）
	MinSpreadBps float64 `yaml:"min_spread_bps"`
	// FeeRate 单边手续费率（用于估算成本）
	FeeRate float64 `yaml:"fee_rate"`
	// SlippageBps 单边滑点（基点，用于估算成本）
	SlippageBps float64 `yaml:"slippage_bps"`
	// OrderSize 固定下单量
	OrderSize float64 `yaml:"order_size"`
}

// RiskConfig 风控配置
type RiskConfig struct {
	// MaxExposure 最大敞口（名义价值）；为 0 时按 MaxExposureRatio × 初始资金
	MaxExposure float64 `yaml:"max_exposure"`
	// MaxExposureRatio 最大敞口占初始资金的比例
	MaxExposureRatio float64 `yaml:"max_exposure_ratio"`
	// MaxDrawdownPct 最大回撤比例（0-1）
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	// MaxDailyLoss 最大单日亏损
	MaxDailyLoss float64 `yaml:"max_daily_loss"`
	// KillSwitchEnabled 是否启用熔断开关
	KillSwitchEnabled bool `yaml:"kill_switch_enabled"`
	// KillSwitchDrawdownPct 自动触发熔断的回撤比例，0 表示不自动触发
	KillSwitchDrawdownPct float64 `yaml:"kill_switch_drawdown_pct"`
}

// PaperConfig 模拟成交配置
type PaperConfig struct {
	// Mode 运行模式，只支持 simulated
	Mode string `yaml:"mode"`
	// InitialCapital 初始资金
	InitialCapital float64 `yaml:"initial_capital"`
	// SlippageBps 滑点（基点）
	SlippageBps float64 `yaml:"slippage_bps"`
	// FeeRate 手续费率
	FeeRate float64 `yaml:"fee_rate"`
	// FillProbability 成交概率（0-1）
	FillProbability float64 `yaml:"fill_probability"`
	// Seed 成交随机种子
	Seed int64 `yaml:"seed"`
	// DurationSec 模拟运行时长（秒）
	DurationSec int `yaml:"duration_sec"`
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	// InitialCapital 初始资金
	InitialCapital float64 `yaml:"initial_capital"`
	// CommissionRate 回测成交手续费率
	CommissionRate float64 `yaml:"commission_rate"`
	// MaxWindows 单次回测最多处理的窗口数
	MaxWindows int `yaml:"max_windows"`
	// WindowMs 窗口长度（毫秒）
	WindowMs int `yaml:"window_ms"`
	// OutputDir 报告输出目录
	OutputDir string `yaml:"output_dir"`
}

// PolicyConfig 参数建议配置
type PolicyConfig struct {
	// Enabled 是否根据历史价差给出建议；关闭时返回默认值
	Enabled bool `yaml:"enabled"`
	// DefaultMinSpreadBps 默认阈值（基点）
	DefaultMinSpreadBps float64 `yaml:"default_min_spread_bps"`
	// Percentile 分位数（0-1）
	Percentile float64 `yaml:"percentile"`
	// WindowSize 价差样本滚动窗口大小
	WindowSize int `yaml:"window_size"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 事件日志输出目录
	Dir string `yaml:"dir"`
	// JournalEnabled 是否写入事件日志
	JournalEnabled bool `yaml:"journal_enabled"`
	// MetricsEnabled 是否在结束时输出 Prometheus 指标文本
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// ReplayConfig 本地 WebSocket 回放配置
type ReplayConfig struct {
	// Listen 监听地址
	Listen string `yaml:"listen"`
	// Path WebSocket 路径
	Path string `yaml:"path"`
	// IntervalMs 推送间隔（毫秒），0 表示不等待
	IntervalMs int `yaml:"interval_ms"`
	// ReadTimeoutMs 客户端读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// Default 返回全部填充默认值的配置
func Default() *Config {
	cfg := &Config{
		Risk:   RiskConfig{KillSwitchEnabled: true},
		Policy: PolicyConfig{Enabled: true},
		Output: OutputConfig{JournalEnabled: true},
	}
	cfg.setDefaults()
	return cfg
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径；为空时只使用默认值与环境变量
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// 读取配置文件
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}

		// 解析 YAML（未出现的字段保留默认值）
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// .env 文件不存在不算错误
	_ = godotenv.Load()
	cfg.ApplyEnv()

	// 设置默认值
	cfg.setDefaults()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// ApplyEnv 用环境变量覆盖配置
// 数值解析失败时保留当前值。
func (c *Config) ApplyEnv() {
	envString("APP_ENV", &c.App.Env)
	envString("LOG_LEVEL", &c.App.LogLevel)
	envString("LOG_FORMAT", &c.App.LogFormat)
	envString("CORRELATION_ID_PREFIX", &c.App.CorrelationIDPrefix)
	envString("DATA_DIR", &c.Data.Dir)
	envInt64("SYNTHETIC_SEED", &c.Synthetic.Seed)
	envInt("SYNTHETIC_VENUES", &c.Synthetic.Venues)
	envInt("SYNTHETIC_DAYS", &c.Synthetic.Days)
	envFloat("BACKTEST_INITIAL_CAPITAL", &c.Backtest.InitialCapital)
	envFloat("BACKTEST_COMMISSION_RATE", &c.Backtest.CommissionRate)
	envFloat("PAPER_INITIAL_CAPITAL", &c.Paper.InitialCapital)
	envString("PAPER_MODE", &c.Paper.Mode)

	c.App.LogLevel = strings.ToLower(c.App.LogLevel)
	c.App.LogFormat = strings.ToLower(c.App.LogFormat)
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	// 应用默认值
	if c.App.Name == "" {
		c.App.Name = "arbitrage-sim-lab"
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "json"
	}
	if c.App.CorrelationIDPrefix == "" {
		c.App.CorrelationIDPrefix = "arb"
	}

	// 日志文件轮转默认值（仅在配置了 log.file 时生效）
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}

	// 数据默认值
	if c.Data.Dir == "" {
		c.Data.Dir = "./data/sample"
	}
	if c.Synthetic.Seed == 0 {
		c.Synthetic.Seed = 42
	}
	if c.Synthetic.Venues == 0 {
		c.Synthetic.Venues = 2
	}
	if c.Synthetic.Days == 0 {
		c.Synthetic.Days = 1
	}
	if c.Synthetic.Symbol == "" {
		c.Synthetic.Symbol = "BTC-USD"
	}
	if c.Synthetic.BasePrice == 0 {
		c.Synthetic.BasePrice = 50000
	}
	if c.Synthetic.Volatility == 0 {
		c.Synthetic.Volatility = 0.02
	}
	if c.Synthetic.SpreadBps == 0 {
		c.Synthetic.SpreadBps = 10
	}

	// 策略默认值
	if c.Strategy.ID == "" {
		c.Strategy.ID = "spread"
	}
	if c.Strategy.Symbol == "" {
		c.Strategy.Symbol = "BTC-USD"
	}
	if c.Strategy.MinSpreadBps == 0 {
		c.Strategy.MinSpreadBps = 15
	}
	if c.Strategy.FeeRate == 0 {
		c.Strategy.FeeRate = 0.001
	}
	if c.Strategy.SlippageBps == 0 {
		c.Strategy.SlippageBps = 5
	}
	if c.Strategy.OrderSize == 0 {
		c.Strategy.OrderSize = 0.01
	}

	// 风控默认值
	if c.Risk.MaxExposure == 0 && c.Risk.MaxExposureRatio == 0 {
		c.Risk.MaxExposureRatio = 0.5
	}
	if c.Risk.MaxDrawdownPct == 0 {
		c.Risk.MaxDrawdownPct = 0.10
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 5000
	}

	// 模拟成交默认值
	if c.Paper.Mode == "" {
		c.Paper.Mode = "simulated"
	}
	if c.Paper.InitialCapital == 0 {
		c.Paper.InitialCapital = 100000
	}
	if c.Paper.SlippageBps == 0 {
		c.Paper.SlippageBps = 5
	}
	if c.Paper.FeeRate == 0 {
		c.Paper.FeeRate = 0.001
	}
	if c.Paper.FillProbability == 0 {
		c.Paper.FillProbability = 1.0
	}
	if c.Paper.Seed == 0 {
		c.Paper.Seed = 42
	}
	if c.Paper.DurationSec == 0 {
		c.Paper.DurationSec = 60
	}

	// 回测默认值
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 100000
	}
	if c.Backtest.CommissionRate == 0 {
		c.Backtest.CommissionRate = 0.001
	}
	if c.Backtest.MaxWindows == 0 {
		c.Backtest.MaxWindows = 500
	}
	if c.Backtest.WindowMs == 0 {
		c.Backtest.WindowMs = 60000 // 1 分钟
	}
	if c.Backtest.OutputDir == "" {
		c.Backtest.OutputDir = "./reports"
	}

	// 参数建议默认值
	if c.Policy.DefaultMinSpreadBps == 0 {
		c.Policy.DefaultMinSpreadBps = 20
	}
	if c.Policy.Percentile == 0 {
		c.Policy.Percentile = 0.75
	}
	if c.Policy.WindowSize == 0 {
		c.Policy.WindowSize = 10000
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}

	// 回放默认值
	if c.Replay.Listen == "" {
		c.Replay.Listen = "127.0.0.1:8765"
	}
	if c.Replay.Path == "" {
		c.Replay.Path = "/ws"
	}
	if c.Replay.ReadTimeoutMs == 0 {
		c.Replay.ReadTimeoutMs = 30000 // 30 秒
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证日志配置
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}
	if f := strings.ToLower(c.App.LogFormat); f != "json" && f != "console" {
		errs = append(errs, fmt.Sprintf("app.log_format: 无效的日志格式 '%s'，有效值: json, console", c.App.LogFormat))
	}

	// 验证合成数据配置
	if c.Synthetic.Venues < 1 {
		errs = append(errs, "synthetic.venues: 场所数量必须为正数")
	}
	if c.Synthetic.Days < 1 {
		errs = append(errs, "synthetic.days: 天数必须为正数")
	}
	if c.Synthetic.BasePrice <= 0 {
		errs = append(errs, "synthetic.base_price: 起始价格必须为正数")
	}

	// 验证策略参数
	if c.Strategy.MinSpreadBps < 0 {
		errs = append(errs, "strategy.min_spread_bps: 阈值不能为负数")
	}
	if err := validateFeeRate(c.Strategy.FeeRate, "strategy.fee_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Strategy.SlippageBps < 0 {
		errs = append(errs, "strategy.slippage_bps: 滑点不能为负数")
	}
	if c.Strategy.OrderSize <= 0 {
		errs = append(errs, "strategy.order_size: 下单量必须为正数")
	}

	// 验证风控参数
	if c.Risk.MaxExposure < 0 || c.Risk.MaxExposureRatio < 0 {
		errs = append(errs, "risk.max_exposure: 最大敞口不能为负数")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 1 {
		errs = append(errs, "risk.max_drawdown_pct: 最大回撤必须在 (0, 1] 之间")
	}
	if c.Risk.MaxDailyLoss < 0 {
		errs = append(errs, "risk.max_daily_loss: 单日亏损上限不能为负数")
	}
	if c.Risk.KillSwitchDrawdownPct < 0 || c.Risk.KillSwitchDrawdownPct > 1 {
		errs = append(errs, "risk.kill_switch_drawdown_pct: 必须在 0-1 之间")
	}

	// 验证模拟成交参数
	if c.Paper.Mode != "simulated" {
		errs = append(errs, fmt.Sprintf("paper.mode: 只支持 simulated，当前值: %s", c.Paper.Mode))
	}
	if c.Paper.InitialCapital <= 0 {
		errs = append(errs, "paper.initial_capital: 初始资金必须为正数")
	}
	if c.Paper.SlippageBps < 0 {
		errs = append(errs, "paper.slippage_bps: 滑点不能为负数")
	}
	if err := validateFeeRate(c.Paper.FeeRate, "paper.fee_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Paper.FillProbability < 0 || c.Paper.FillProbability > 1 {
		errs = append(errs, "paper.fill_probability: 成交概率必须在 0-1 之间")
	}

	// 验证回测参数
	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, "backtest.initial_capital: 初始资金必须为正数")
	}
	if err := validateFeeRate(c.Backtest.CommissionRate, "backtest.commission_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Backtest.MaxWindows <= 0 {
		errs = append(errs, "backtest.max_windows: 窗口数必须为正数")
	}
	if c.Backtest.WindowMs <= 0 {
		errs = append(errs, "backtest.window_ms: 窗口长度必须为正数")
	}

	// 验证参数建议配置
	if c.Policy.Percentile <= 0 || c.Policy.Percentile >= 1 {
		errs = append(errs, "policy.percentile: 分位数必须在 (0, 1) 之间")
	}

	// 验证输出配置
	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}
	if c.Replay.IntervalMs < 0 {
		errs = append(errs, "replay.interval_ms: 推送间隔不能为负数")
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateFeeRate 验证手续费率范围
// 参数 rate: 费率值
// 参数 field: 字段名称，用于错误消息
// 返回: 若费率无效则返回错误
func validateFeeRate(rate float64, field string) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%s: 费率必须在 0-1 之间，当前值: %f", field, rate)
	}
	return nil
}

// MaxExposureFor 计算最大敞口
// 参数 initialCapital: 初始资金
func (r RiskConfig) MaxExposureFor(initialCapital float64) float64 {
	if r.MaxExposure > 0 {
		return r.MaxExposure
	}
	return r.MaxExposureRatio * initialCapital
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}
