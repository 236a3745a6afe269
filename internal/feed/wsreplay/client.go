package wsreplay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/util/backoff"
)

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithBackoff 替换重连退避策略
func WithBackoff(b *backoff.Backoff) ClientOption {
	return func(c *Client) { c.backoff = b }
}

// WithDecodeErrorHook 每次解码失败时回调（如指标计数）
func WithDecodeErrorHook(fn func()) ClientOption {
	return func(c *Client) { c.onDecodeError = fn }
}

// Client 回放客户端
// 连接断开时带着已接收数量重连（?from=N），服务端正常关闭时结束。
type Client struct {
	url         string
	logger      *zap.Logger
	readTimeout time.Duration
	backoff     *backoff.Backoff

	onDecodeError func()

	received     atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
}

// NewClient 创建回放客户端
// 参数 rawURL: 服务端地址，如 ws://127.0.0.1:8765/ws
func NewClient(rawURL string, cfg config.ReplayConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		url:         rawURL,
		logger:      logger.Named("wsreplay"),
		readTimeout: time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff == nil {
		c.backoff = backoff.New(200*time.Millisecond, 5*time.Second, 0.2, backoff.WithMaxAttempts(5))
	}
	return c
}

// Stats 已接收帧数、解码失败数、重连次数
func (c *Client) Stats() (received, decodeErrors, reconnects uint64) {
	return c.received.Load(), c.decodeErrors.Load(), c.reconnects.Load()
}

// Run 连接服务端并把每个事件按到达顺序发布到总线
// 服务端正常关闭时返回 nil；ctx 取消时返回 ctx.Err()；重试用完时返回最后一次错误。
func (c *Client) Run(ctx context.Context, b *bus.Bus) error {
	var offset uint64
	for {
		err := c.session(ctx, b, &offset)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("回放连接中断", zap.Error(err), zap.Uint64("offset", offset))
		if werr := c.backoff.Wait(ctx); werr != nil {
			if errors.Is(werr, backoff.ErrExhausted) {
				return fmt.Errorf("回放重连失败: %w", err)
			}
			return werr
		}
		c.reconnects.Add(1)
	}
}

// session 单次连接；offset 记录已处理的帧数（含解码失败的帧），用于断点续传
func (c *Client) session(ctx context.Context, b *bus.Bus, offset *uint64) error {
	target, err := c.resumeURL(*offset)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("连接回放服务失败: %w", err)
	}
	defer conn.Close()
	c.backoff.Reset()
	c.logger.Info("回放连接成功", zap.String("url", target))

	// ctx 取消时关闭连接以打断阻塞的读
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Info("回放结束", zap.Uint64("received", c.received.Load()))
				return nil
			}
			return err
		}
		*offset++

		ev, err := model.DecodeEvent(data)
		if err != nil {
			n := c.decodeErrors.Add(1)
			if c.onDecodeError != nil {
				c.onDecodeError()
			}
			// 采样记录：第 1 次及之后每 100 次
			if n == 1 || n%100 == 0 {
				sample := data
				if len(sample) > 200 {
					sample = sample[:200]
				}
				c.logger.Warn("解码回放帧失败（采样）", zap.Uint64("count", n), zap.Error(err), zap.ByteString("data", sample))
			}
			continue
		}
		c.received.Add(1)
		b.Publish(ev)
	}
}

func (c *Client) resumeURL(offset uint64) (string, error) {
	if offset == 0 {
		return c.url, nil
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("非法回放地址 %q: %w", c.url, err)
	}
	q := u.Query()
	q.Set("from", strconv.FormatUint(offset, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
