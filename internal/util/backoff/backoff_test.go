// Package backoff 退避算法测试
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBackoff_Bounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("延迟单调不减且不超过 max×(1+jitter)", prop.ForAll(
		func(baseMs, maxMs, jitterPct int, seed int64) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			jitter := float64(jitterPct) / 100

			plain := New(base, max, 0)
			jittered := New(base, max, jitter, WithRand(rand.New(rand.NewSource(seed))))
			var prev time.Duration
			for i := 0; i < 80; i++ {
				d := plain.Next()
				if d < prev || d > max {
					return false
				}
				prev = d
				if float64(jittered.Next()) > float64(max)*(1+jitter) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 2000),
		gen.IntRange(2000, 60000),
		gen.IntRange(0, 50),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Fatalf("第 %d 次 = %v, want %v", i, got, w*time.Second)
		}
	}
	b.Reset()
	if b.Attempt() != 0 || b.Next() != time.Second {
		t.Fatalf("Reset 后应从基础值开始")
	}
}

func TestBackoff_SameSeedSameJitter(t *testing.T) {
	a := New(time.Second, 30*time.Second, 0.2, WithRand(rand.New(rand.NewSource(1))))
	b := New(time.Second, 30*time.Second, 0.2, WithRand(rand.New(rand.NewSource(1))))
	for i := 0; i < 10; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("相同种子抖动应一致")
		}
	}
}

func TestBackoff_WaitExhausted(t *testing.T) {
	b := New(time.Millisecond, 2*time.Millisecond, 0, WithMaxAttempts(2))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("第 %d 次 Wait: %v", i, err)
		}
	}
	if err := b.Wait(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v, want ErrExhausted", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := New(time.Hour, time.Hour, 0).Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
