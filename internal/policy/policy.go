// Package policy 根据历史价差给出策略参数建议。
// 只做启发式建议，不做预测；最终决定由人做出。关闭时返回确定性的默认值。
package policy

import (
	"fmt"
	"sort"
	"strings"

	"arbitrage-sim-lab/internal/config"
)

// ParamMinSpread 阈值参数名
const ParamMinSpread = "min_spread_bps"

// Suggestion 一条参数建议
type Suggestion struct {
	// Parameter 参数名
	Parameter string `json:"parameter"`
	// Value 建议值
	Value float64 `json:"value"`
	// Rationale 依据
	Rationale string `json:"rationale"`
	// Confidence 置信度 0-1，1 表示确定性回退
	Confidence float64 `json:"confidence"`
}

// Module 参数建议模块
type Module struct {
	enabled    bool
	defaultBps float64
	percentile float64
}

// New 创建参数建议模块
func New(cfg config.PolicyConfig) *Module {
	p := cfg.Percentile
	if p <= 0 || p >= 1 {
		p = 0.75
	}
	return &Module{
		enabled:    cfg.Enabled,
		defaultBps: cfg.DefaultMinSpreadBps,
		percentile: p,
	}
}

// SuggestMinSpread 建议净价差阈值
// 关闭或没有历史样本时返回默认值（置信度 1.0）；
// 否则取排序后下标 int(n × percentile) 处的样本（置信度 0.8）。
func (m *Module) SuggestMinSpread(spreads []float64) Suggestion {
	if !m.enabled || len(spreads) == 0 {
		return Suggestion{
			Parameter:  ParamMinSpread,
			Value:      m.defaultBps,
			Rationale:  "Deterministic fallback: using default threshold",
			Confidence: 1.0,
		}
	}

	sorted := make([]float64, len(spreads))
	copy(sorted, spreads)
	sort.Float64s(sorted)

	value := m.defaultBps
	if idx := int(float64(len(sorted)) * m.percentile); idx < len(sorted) {
		value = sorted[idx]
	}

	return Suggestion{
		Parameter:  ParamMinSpread,
		Value:      value,
		Rationale:  fmt.Sprintf("Based on %s percentile of %d historical spreads", ordinal(int(m.percentile*100+0.5)), len(spreads)),
		Confidence: 0.8,
	}
}

// Explain 生成可读的建议说明
func Explain(s Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Parameter: %s\n", s.Parameter)
	fmt.Fprintf(&b, "Suggested value: %g\n", s.Value)
	fmt.Fprintf(&b, "Rationale: %s\n", s.Rationale)
	fmt.Fprintf(&b, "Confidence: %.0f%%", s.Confidence*100)
	return b.String()
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
