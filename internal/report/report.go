// Package report 将回测摘要渲染为 Markdown / 文本 / JSON，并支持从 JSON 读回。
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"arbitrage-sim-lab/internal/stats/perf"
)

// DefaultTitle 默认报告标题
const DefaultTitle = "Backtest Report"

// Markdown 渲染 Markdown 报告
// 金额保留两位小数并带千分位，百分比保留两位小数；sharpe 为空时省略该行。
func Markdown(s perf.Summary, title string) string {
	if title == "" {
		title = DefaultTitle
	}
	lines := []string{
		"# " + title,
		"",
		"## Summary",
		"",
		"- **Initial Capital**: " + Money(s.InitialCapital),
		"- **Final Capital**: " + Money(s.FinalCapital),
		fmt.Sprintf("- **Total Return**: %s (%s)", Money(s.TotalReturn), Percent(s.TotalReturnPct)),
		fmt.Sprintf("- **Trade Count**: %d", s.TradeCount),
		fmt.Sprintf("- **Win Count**: %d", s.WinCount),
		"- **Max Drawdown**: " + Percent(s.MaxDrawdownPct),
	}
	if s.SharpeRatio != nil {
		lines = append(lines, "- **Sharpe Ratio**: "+decimal.NewFromFloat(*s.SharpeRatio).StringFixed(2))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Text 渲染 key: value 形式的纯文本摘要
func Text(s perf.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "initial_capital: %s\n", decimal.NewFromFloat(s.InitialCapital).StringFixed(2))
	fmt.Fprintf(&b, "final_capital: %s\n", decimal.NewFromFloat(s.FinalCapital).StringFixed(2))
	fmt.Fprintf(&b, "total_return: %s\n", decimal.NewFromFloat(s.TotalReturn).StringFixed(2))
	fmt.Fprintf(&b, "total_return_pct: %s\n", Percent(s.TotalReturnPct))
	fmt.Fprintf(&b, "trade_count: %d\n", s.TradeCount)
	fmt.Fprintf(&b, "win_count: %d\n", s.WinCount)
	fmt.Fprintf(&b, "max_drawdown_pct: %s\n", Percent(s.MaxDrawdownPct))
	if s.SharpeRatio != nil {
		fmt.Fprintf(&b, "sharpe_ratio: %s\n", decimal.NewFromFloat(*s.SharpeRatio).StringFixed(2))
	} else {
		b.WriteString("sharpe_ratio: n/a\n")
	}
	return b.String()
}

// JSON 以两空格缩进编码摘要
func JSON(s perf.Summary) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("编码摘要失败: %w", err)
	}
	return b, nil
}

// Save 写入报告文件，自动创建父目录
func Save(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建报告目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}
	return nil
}

// LoadSummary 从 JSON 文件读取摘要
// 拒绝未知字段；path 可以是 glob 模式，取第一个匹配。
func LoadSummary(path string) (perf.Summary, error) {
	var s perf.Summary

	resolved, err := resolve(path)
	if err != nil {
		return s, err
	}
	b, err := os.ReadFile(resolved)
	if err != nil {
		return s, fmt.Errorf("读取摘要失败: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("解析摘要 %s 失败: %w", resolved, err)
	}
	return s, nil
}

func resolve(path string) (string, error) {
	if !strings.ContainsAny(path, "*?[") {
		return path, nil
	}
	matches, err := filepath.Glob(path)
	if err != nil {
		return "", fmt.Errorf("非法路径模式 %q: %w", path, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("没有匹配 %q 的摘要文件", path)
	}
	return matches[0], nil
}

// Money 两位小数并带千分位，如 -1,234.50
func Money(v float64) string {
	fixed := decimal.NewFromFloat(v).StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// Percent 比例转百分比，两位小数，如 0.0512 -> 5.12%
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
