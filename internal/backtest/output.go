package backtest

import (
	"fmt"
	"path/filepath"

	"arbitrage-sim-lab/internal/report"
)

// 报告文件名
const (
	ReportFile  = "backtest_report.md"
	MetricsFile = "backtest_metrics.json"
)

// ReportPaths 写出的报告路径
type ReportPaths struct {
	Markdown string
	Metrics  string
}

// WriteReports 把 Markdown 报告与 JSON 指标写入目录
func (r *Result) WriteReports(dir string) (ReportPaths, error) {
	paths := ReportPaths{
		Markdown: filepath.Join(dir, ReportFile),
		Metrics:  filepath.Join(dir, MetricsFile),
	}

	if err := report.Save(paths.Markdown, []byte(report.Markdown(r.Summary, report.DefaultTitle))); err != nil {
		return paths, err
	}
	b, err := report.JSON(r.Summary)
	if err != nil {
		return paths, err
	}
	if err := report.Save(paths.Metrics, b); err != nil {
		return paths, fmt.Errorf("写入指标失败: %w", err)
	}
	return paths, nil
}
