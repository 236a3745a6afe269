package model

import (
	"fmt"
	"time"
)

// Candle OHLCV K 线
// 只用于离线数据集，不在事件总线上流转。
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate 校验 K 线
// 有效条件: low <= open/close <= high，价格为正，成交量非负
func (c Candle) Validate() error {
	switch {
	case c.Venue == "" || c.Symbol == "":
		return fmt.Errorf("candle venue/symbol 不能为空")
	case !finite(c.Open, c.High, c.Low, c.Close, c.Volume):
		return fmt.Errorf("candle 数值非法（NaN/Inf）")
	case c.Low <= 0:
		return fmt.Errorf("candle low 必须为正数，当前值: %f", c.Low)
	case c.High < c.Low:
		return fmt.Errorf("candle high %f 低于 low %f", c.High, c.Low)
	case c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High:
		return fmt.Errorf("candle open/close 超出 [low, high]")
	case c.Volume < 0:
		return fmt.Errorf("candle volume 不能为负数")
	}
	return nil
}
