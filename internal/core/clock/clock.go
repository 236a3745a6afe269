// Package clock 提供模拟时钟。
// 所有组件只通过时钟读取时间，保证回放与回测可复现。
package clock

import (
	"time"
)

// SimClock 模拟时钟
// 纯值持有者：不阻塞、不挂起；由驱动器持有，不是全局单例。
// 非并发安全，按单写者方式使用。
type SimClock struct {
	// current 当前模拟时间
	current time.Time
	// initial 启动时的锚点时间，未启动时为零值
	initial time.Time
	// speed 速度倍数，1.0 为实时，10.0 为 10 倍速
	speed float64
	// wall 墙钟时间来源（仅用于未指定锚点时）
	wall func() time.Time
}

// Option 时钟选项
type Option func(*SimClock)

// WithWallClock 替换墙钟时间来源（测试用）
func WithWallClock(wall func() time.Time) Option {
	return func(c *SimClock) {
		if wall != nil {
			c.wall = wall
		}
	}
}

// New 创建模拟时钟，当前时间初始化为墙钟时间
// 参数 speed: 速度倍数，<=0 时按 1.0 处理
func New(speed float64, opts ...Option) *SimClock {
	if speed <= 0 {
		speed = 1.0
	}
	c := &SimClock{
		speed: speed,
		wall:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current = c.wall()
	return c
}

// Start 启动时钟
// 参数 anchor: 回放起点；零值表示使用墙钟时间
// 当前时间与初始时间都被设置为锚点。
func (c *SimClock) Start(anchor time.Time) {
	if anchor.IsZero() {
		anchor = c.wall()
	}
	c.initial = anchor
	c.current = anchor
}

// Advance 将时钟前移 delta × speed 并返回新的时间
// 前置条件: delta >= 0。负数不会被拦截，由调用方保证。
func (c *SimClock) Advance(delta time.Duration) time.Time {
	scaled := time.Duration(float64(delta) * c.speed)
	c.current = c.current.Add(scaled)
	return c.current
}

// Now 返回当前模拟时间（纯读取）
func (c *SimClock) Now() time.Time {
	return c.current
}

// Initial 返回启动锚点；未调用 Start 时为零值
func (c *SimClock) Initial() time.Time {
	return c.initial
}

// Elapsed 自启动以来经过的模拟时间
func (c *SimClock) Elapsed() time.Duration {
	if c.initial.IsZero() {
		return 0
	}
	return c.current.Sub(c.initial)
}

// Speed 返回速度倍数
func (c *SimClock) Speed() float64 {
	return c.speed
}
