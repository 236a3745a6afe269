// Package wsreplay 通过本地 WebSocket 回放订单簿事件。
// 服务端按固定间隔推送事件的 JSON 外层结构；客户端严格解码后按到达顺序发布到事件总线。
// 只是模拟的行情连接器，不连接任何交易所。
package wsreplay

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

// CloseReason 回放结束时的关闭说明
const CloseReason = "replay complete"

// Server 回放服务端
// 每个连接独立从头（或 ?from=N 指定的偏移）推送一遍事件，推送完毕后正常关闭。
type Server struct {
	logger   *zap.Logger
	events   []model.Event
	interval time.Duration
	path     string
	listen   string
	upgrader websocket.Upgrader

	sent    atomic.Uint64
	clients atomic.Int64
}

// NewServer 创建回放服务端
// 参数 events: 待推送事件（按时间顺序）
// 参数 cfg: 回放配置（监听地址、路径、推送间隔）
func NewServer(events []model.Event, cfg config.ReplayConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	return &Server{
		logger:   logger.Named("wsreplay"),
		events:   events,
		interval: time.Duration(cfg.IntervalMs) * time.Millisecond,
		path:     path,
		listen:   cfg.Listen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
			// 只监听本地地址，不校验 Origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Sent 已推送的事件总数（所有连接）
func (s *Server) Sent() uint64 { return s.sent.Load() }

// ServeHTTP 升级为 WebSocket 并推送事件
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	from := 0
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	s.clients.Add(1)
	defer s.clients.Add(-1)
	s.logger.Info("回放客户端已连接", zap.String("remote", r.RemoteAddr), zap.Int("from", from))

	// 读循环只为处理控制帧并感知对端断开
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := from; i < len(s.events); i++ {
		if tick != nil {
			select {
			case <-tick:
			case <-r.Context().Done():
				return
			case <-peerGone:
				return
			}
		}
		b, err := s.events[i].MarshalJSON()
		if err != nil {
			s.logger.Error("编码事件失败", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.logger.Warn("推送事件失败", zap.Int("index", i), zap.Error(err))
			return
		}
		s.sent.Add(1)
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	// 等对端回应关闭帧，避免客户端读到 RST
	select {
	case <-peerGone:
	case <-time.After(time.Second):
	}
	s.logger.Info("回放完成", zap.String("remote", r.RemoteAddr), zap.Int("events", len(s.events)-from))
}

// ListenAndServe 在配置的地址上提供回放与可选的附加处理器，ctx 取消时优雅退出
// 参数 extra: 额外挂载的路径，如 "/metrics"
func (s *Server) ListenAndServe(ctx context.Context, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, s)
	for p, h := range extra {
		mux.Handle(p, h)
	}
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("回放服务已启动", zap.String("listen", s.listen), zap.String("path", s.path))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
