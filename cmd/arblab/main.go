// Package main 是跨场所套利模拟实验室的命令行入口。
// 提供合成数据生成、回测、信号检测、报告、参数建议与本地行情回放。
//
// 重要：本系统仅用于研究/模拟，不连接任何交易所，严禁真实下单。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/logging"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// newApp 构建命令行应用
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "arblab"
	app.Version = version
	app.Usage = "cross-venue arbitrage simulation lab (research only, no live trading)"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a YAML config file; defaults and environment are used when empty",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "override app.log_level (debug, info, warn, error)",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		versionCommand,
		generateDataCommand,
		backtestCommand,
		paperRunCommand,
		reportCommand,
		suggestCommand,
		replayCommand,
	}
	return app
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(c *cli.Context) error {
		fmt.Fprintf(c.App.Writer, "arblab %s\n", version)
		return nil
	},
}

// setup 加载配置并构建日志器
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, logging.New(cfg.App, cfg.Log), nil
}
