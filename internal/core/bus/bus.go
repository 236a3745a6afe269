// Package bus 进程内按事件种类路由的发布/订阅总线。
// 数据源、策略、风控与执行通过总线连接，彼此不直接依赖。
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/core/model"
)

// Handler 事件处理函数
// 返回的错误只会被记录，不会影响其他处理函数。
type Handler func(model.Event) error

// Bus 事件总线
// 同步分发：Publish 返回时该事件的所有处理函数都已执行完毕。
// 同一事件的处理顺序为注册顺序；不同事件的处理顺序为发布顺序（单个发布者）。
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[model.Kind][]Handler

	published atomic.Uint64
	faults    atomic.Uint64
}

// New 创建事件总线
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger.Named("bus"),
		handlers: make(map[model.Kind][]Handler, len(model.Kinds)),
	}
}

// Subscribe 为某种事件注册处理函数
// 允许在运行前或运行中注册；不支持取消订阅。
func (b *Bus) Subscribe(kind model.Kind, h Handler) {
	if h == nil || !kind.Valid() {
		return
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// SubscribeAll 为所有事件种类注册同一个处理函数
func (b *Bus) SubscribeAll(h Handler) {
	for _, kind := range model.Kinds {
		b.Subscribe(kind, h)
	}
}

// Publish 把事件分发给该种类的全部处理函数
// 没有处理函数时静默返回。处理函数的错误与 panic 被记录并隔离。
func (b *Bus) Publish(ev model.Event) {
	b.published.Add(1)

	b.mu.RLock()
	hs := b.handlers[ev.Kind()]
	b.mu.RUnlock()

	for i, h := range hs {
		if err := b.invoke(h, ev); err != nil {
			b.faults.Add(1)
			b.logger.Error("handler failed",
				zap.String("kind", ev.Kind().String()),
				zap.Int("handler", i),
				zap.String("correlation_id", ev.CorrelationID()),
				zap.Error(err),
			)
		}
	}
}

// PublishMany 依次发布每个事件，不做批量合并
func (b *Bus) PublishMany(events []model.Event) {
	for _, ev := range events {
		b.Publish(ev)
	}
}

// Stats 返回已发布事件数与处理函数失败次数
func (b *Bus) Stats() (published, faults uint64) {
	return b.published.Load(), b.faults.Load()
}

func (b *Bus) invoke(h Handler, ev model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}
