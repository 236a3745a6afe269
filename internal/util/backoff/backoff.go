// Package backoff 实现带抖动的指数退避，用于回放连接的重连等待。
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrExhausted 重试次数已用完
var ErrExhausted = errors.New("backoff: retries exhausted")

// Backoff 指数退避计算器（非并发安全）
// 第 n 次等待 = min(base × 2^n, max) × (1 ± jitter)
type Backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	// maxAttempts 最大重试次数，0 表示不限
	maxAttempts int
	rng         *rand.Rand

	attempt int
}

// Option 退避选项
type Option func(*Backoff)

// WithRand 注入抖动随机源
func WithRand(rng *rand.Rand) Option {
	return func(b *Backoff) { b.rng = rng }
}

// WithMaxAttempts 限制重试次数
func WithMaxAttempts(n int) Option {
	return func(b *Backoff) { b.maxAttempts = n }
}

// New 创建退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间（抖动前）
// 参数 jitter: 抖动比例 0-1，如 0.2 表示 ±20%
func New(base, max time.Duration, jitter float64, opts ...Option) *Backoff {
	b := &Backoff{base: base, max: max, jitter: jitter}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return b
}

// NewDefault 基础 1s，最大 30s，抖动 ±20%，不限次数
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next 返回下一次等待时间并增加重试次数
func (b *Backoff) Next() time.Duration {
	delay := b.max
	// base<<attempt 可能溢出，先用 max>>attempt 比较
	if b.attempt < 62 && b.base <= b.max>>uint(b.attempt) {
		delay = b.base << uint(b.attempt)
	}
	if b.jitter > 0 {
		delay = time.Duration(float64(delay) * (1 + (b.rng.Float64()*2-1)*b.jitter))
	}
	b.attempt++
	return delay
}

// Wait 等待下一次退避时间
// 次数用完返回 ErrExhausted；ctx 取消时返回 ctx.Err()。
func (b *Backoff) Wait(ctx context.Context) error {
	if b.Exhausted() {
		return ErrExhausted
	}
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Exhausted 是否已用完重试次数
func (b *Backoff) Exhausted() bool {
	return b.maxAttempts > 0 && b.attempt >= b.maxAttempts
}

// Reset 连接成功后重置
func (b *Backoff) Reset() { b.attempt = 0 }

// Attempt 当前重试次数
func (b *Backoff) Attempt() int { return b.attempt }
