package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/backtest"
	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/store"
	"arbitrage-sim-lab/internal/core/strategy"
	"arbitrage-sim-lab/internal/data/loader"
	"arbitrage-sim-lab/internal/data/synthetic"
	"arbitrage-sim-lab/internal/feed/wsreplay"
	"arbitrage-sim-lab/internal/output/jsonl"
	"arbitrage-sim-lab/internal/policy"
	"arbitrage-sim-lab/internal/report"
	"arbitrage-sim-lab/internal/stats/spread"
	"arbitrage-sim-lab/internal/telemetry"
)

var generateDataCommand = &cli.Command{
	Name:  "generate-data",
	Usage: "write seeded synthetic trades, orderbook and candles as CSV",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory (default data.dir)"},
		&cli.IntFlag{Name: "days", Usage: "days of data (default synthetic.days)"},
		&cli.Int64Flag{Name: "seed", Usage: "random seed (default synthetic.seed)"},
		&cli.IntFlag{Name: "venues", Usage: "number of venues (default synthetic.venues)"},
	},
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		dir := cfg.Data.Dir
		if c.IsSet("output") {
			dir = c.String("output")
		}
		if c.IsSet("days") {
			cfg.Synthetic.Days = c.Int("days")
		}
		if c.IsSet("seed") {
			cfg.Synthetic.Seed = c.Int64("seed")
		}
		if c.IsSet("venues") {
			cfg.Synthetic.Venues = c.Int("venues")
		}

		gen := synthetic.New(cfg.Synthetic, logger)
		if _, err := gen.WriteAll(dir, time.Time{}, cfg.Synthetic.Days, cfg.Synthetic.Symbol); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Generated data in %s\n", dir)
		return nil
	},
}

var backtestCommand = &cli.Command{
	Name:  "backtest",
	Usage: "replay orderbook data through strategy, risk gate and paper broker",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Usage: "data directory (default data.dir)"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "report directory (default backtest.output_dir)"},
		&cli.Float64Flag{Name: "capital", Usage: "initial capital (default backtest.initial_capital)"},
	},
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		dataDir := stringOr(c, "data-dir", cfg.Data.Dir)
		outDir := stringOr(c, "output", cfg.Backtest.OutputDir)
		if c.IsSet("capital") {
			cfg.Backtest.InitialCapital = c.Float64("capital")
		}

		ds, err := loader.LoadDir(dataDir)
		if err != nil {
			return err
		}
		if err := ds.RequireOrderbook(); err != nil {
			return fmt.Errorf("%s: %w", dataDir, err)
		}

		b := bus.New(logger)
		col, err := telemetry.New(nil)
		if err != nil {
			return err
		}
		col.SetCapital(cfg.Backtest.InitialCapital)
		col.Attach(b)

		// 显式指定 --output 时事件日志与报告放在一起
		journalDir := stringOr(c, "output", cfg.Output.Dir)
		var journal *jsonl.Journal
		if cfg.Output.JournalEnabled {
			journal, err = jsonl.Open(filepath.Join(journalDir, "events.jsonl"), cfg.Output.BufferSize, logger)
			if err != nil {
				return err
			}
			journal.Attach(b)
		}

		driver := backtest.New(cfg, logger,
			backtest.WithBus(b),
			backtest.WithRejectHook(col.RecordRejection),
		)
		res, runErr := driver.Run(c.Context, ds)
		if journal != nil {
			if err := journal.Close(); err != nil {
				logger.Warn("关闭事件日志失败", zap.Error(err))
			}
		}
		if runErr != nil && res == nil {
			return runErr
		}

		if _, err := res.WriteReports(outDir); err != nil {
			return err
		}
		if cfg.Output.MetricsEnabled {
			if err := writeMetrics(col, filepath.Join(outDir, "metrics.prom")); err != nil {
				return err
			}
		}

		fmt.Fprintf(c.App.Writer, "Backtest complete. Return: %s, Trades: %d\n",
			report.Percent(res.Summary.TotalReturnPct), res.Summary.TradeCount)
		return runErr
	},
}

var paperRunCommand = &cli.Command{
	Name:  "paper-run",
	Usage: "detect signals on orderbook rows (simulation only, no orders)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Usage: "data directory (default data.dir)"},
		&cli.IntFlag{Name: "duration", Usage: "seconds to listen when --feed is used (default paper.duration_sec)"},
		&cli.StringFlag{Name: "feed", Usage: "replay feed URL, e.g. ws://127.0.0.1:8765/ws"},
		&cli.IntFlag{Name: "rows", Value: 100, Usage: "orderbook rows to scan without a feed"},
		&cli.Float64Flag{Name: "min-spread", Value: 20, Usage: "net spread threshold in bps"},
	},
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		scfg := cfg.Strategy
		scfg.MinSpreadBps = c.Float64("min-spread")

		b := bus.New(logger)
		window := time.Duration(cfg.Backtest.WindowMs) * time.Millisecond
		det := backtest.NewDetector(b, strategy.NewSpread(scfg), scfg.Symbol, window, cfg.App.CorrelationIDPrefix, logger)

		if url := c.String("feed"); url != "" {
			secs := cfg.Paper.DurationSec
			if c.IsSet("duration") {
				secs = c.Int("duration")
			}
			ctx, cancel := context.WithTimeout(c.Context, time.Duration(secs)*time.Second)
			defer cancel()

			col, err := telemetry.New(nil)
			if err != nil {
				return err
			}
			col.Attach(b)
			client := wsreplay.NewClient(url, cfg.Replay, logger, wsreplay.WithDecodeErrorHook(col.RecordDecodeError))
			if err := client.Run(ctx, b); err != nil && ctx.Err() == nil {
				return err
			}
			received, decodeErrs, reconnects := client.Stats()
			logger.Info("回放接收结束",
				zap.Uint64("received", received),
				zap.Uint64("decode_errors", decodeErrs),
				zap.Uint64("reconnects", reconnects))
		} else {
			ds, err := loader.LoadDir(stringOr(c, "data-dir", cfg.Data.Dir))
			if err != nil {
				return err
			}
			if err := ds.RequireOrderbook(); err != nil {
				return err
			}
			rows := ds.Orderbook
			if n := c.Int("rows"); n > 0 && len(rows) > n {
				rows = rows[:n]
			}
			b.PublishMany(rows)
		}
		det.Flush()

		fmt.Fprintf(c.App.Writer, "Detected %d potential signals (simulation only)\n", det.Signals())
		latest := det.Latest(scfg.Symbol)
		fmt.Fprintf(c.App.Writer, "Latest quotes for %s (%d venues):\n", scfg.Symbol, latest.Rows)
		for _, venue := range latest.Venues() {
			book, _ := det.LatestBook(scfg.Symbol, venue)
			fmt.Fprintf(c.App.Writer, "  %s: bid %.2f x %g, ask %.2f x %g\n",
				venue, book.BidPrice, book.BidSize, book.AskPrice, book.AskSize)
		}
		return nil
	},
}

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "render a metrics JSON file as a markdown summary",
	ArgsUsage: "<metrics.json | glob>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the report to this file instead of stdout"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("需要一个指标文件参数")
		}
		s, err := report.LoadSummary(c.Args().First())
		if err != nil {
			return err
		}
		md := report.Markdown(s, "Backtest Summary")
		if out := c.String("output"); out != "" {
			if err := report.Save(out, []byte(md)); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Report written to %s\n", out)
			return nil
		}
		fmt.Fprint(c.App.Writer, md)
		return nil
	},
}

var suggestCommand = &cli.Command{
	Name:  "suggest",
	Usage: "suggest a min-spread threshold from historical gross spreads (advisory only)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Usage: "data directory (default data.dir)"},
	},
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ds, err := loader.LoadDir(stringOr(c, "data-dir", cfg.Data.Dir))
		if err != nil {
			return err
		}

		tracker := spread.NewTracker(cfg.Policy.WindowSize)
		strat := strategy.NewSpread(cfg.Strategy)
		strat.Observe(tracker.Add)
		window := time.Duration(cfg.Backtest.WindowMs) * time.Millisecond
		for _, w := range store.GroupByWindow(ds.Orderbook, cfg.Strategy.Symbol, window) {
			strat.Evaluate(w.Snapshot())
		}

		st := tracker.Stats(cfg.Strategy.Symbol)
		logger.Info("价差分布",
			zap.Int("samples", st.Window),
			zap.Float64("mean_bps", st.Mean),
			zap.Float64("p50_bps", st.P50Bps),
			zap.Float64("p90_bps", st.P90Bps))

		s := policy.New(cfg.Policy).SuggestMinSpread(tracker.Samples(cfg.Strategy.Symbol))
		fmt.Fprintln(c.App.Writer, policy.Explain(s))
		return nil
	},
}

var replayCommand = &cli.Command{
	Name:  "replay",
	Usage: "serve orderbook rows over a local WebSocket for paper-run --feed",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Usage: "data directory (default data.dir)"},
		&cli.StringFlag{Name: "listen", Usage: "listen address (default replay.listen)"},
		&cli.IntFlag{Name: "interval-ms", Usage: "delay between frames (default replay.interval_ms)"},
	},
	Action: func(c *cli.Context) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if c.IsSet("listen") {
			cfg.Replay.Listen = c.String("listen")
		}
		if c.IsSet("interval-ms") {
			cfg.Replay.IntervalMs = c.Int("interval-ms")
		}

		ds, err := loader.LoadDir(stringOr(c, "data-dir", cfg.Data.Dir))
		if err != nil {
			return err
		}
		if err := ds.RequireOrderbook(); err != nil {
			return err
		}

		srv := wsreplay.NewServer(ds.Orderbook, cfg.Replay, logger)
		health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, "ok sent=%d\n", srv.Sent())
		})
		fmt.Fprintf(c.App.Writer, "Replaying %d orderbook rows on ws://%s%s\n", len(ds.Orderbook), cfg.Replay.Listen, cfg.Replay.Path)
		return srv.ListenAndServe(c.Context, map[string]http.Handler{"/healthz": health})
	},
}

func stringOr(c *cli.Context, name, fallback string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return fallback
}

func writeMetrics(col *telemetry.Collector, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建指标目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建指标文件失败: %w", err)
	}
	defer f.Close()
	if err := col.WriteText(f); err != nil {
		return err
	}
	return f.Close()
}
