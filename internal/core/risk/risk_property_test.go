// Package risk 风控闸门属性测试
package risk

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLimits_PeakRatchet_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("资金峰值单调不减且等于历史最大值", prop.ForAll(
		func(initial float64, capitals []float64) bool {
			l := NewLimits(defaultRisk(), initial)
			want := initial
			prev := l.State().PeakCapital
			for _, c := range capitals {
				l.Update(0, c, 0)
				if c > want {
					want = c
				}
				peak := l.State().PeakCapital
				if peak < prev {
					return false
				}
				prev = peak
			}
			return prev == want
		},
		gen.Float64Range(1, 1e6),
		gen.SliceOf(gen.Float64Range(0, 2e6)),
	))

	properties.Property("敞口不超限的信号总能通过（无回撤、无亏损时）", prop.ForAll(
		func(price float64, size float64, capital float64) bool {
			l := NewLimits(defaultRisk(), capital)
			sig := testSignal(price, size)
			ok, _ := l.Check(sig, capital)
			return ok == (sig.Notional() <= defaultRisk().MaxExposureFor(capital))
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(0.001, 5),
		gen.Float64Range(1000, 1e6),
	))

	properties.Property("禁用的熔断开关对任意操作序列都放行", prop.ForAll(
		func(ops []bool) bool {
			k := NewKillSwitch(false)
			for _, trigger := range ops {
				if trigger {
					k.Trigger()
				} else {
					k.Reset()
				}
				if ok, reason := k.Check(); !ok || reason != ReasonOK {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
