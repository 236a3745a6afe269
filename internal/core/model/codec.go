// Package model 定义模拟器中使用的核心数据结构。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// envelope 事件的 JSON 外层结构
// 形如 {"kind":"fill","timestamp":"...","correlation_id":"...","data":{...}}
type envelope struct {
	Kind          string          `json:"kind"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// MarshalJSON 以外层结构编码事件
func (e Event) MarshalJSON() ([]byte, error) {
	if e.payload == nil {
		return nil, fmt.Errorf("%w: 零值事件无法编码", ErrInvalidEvent)
	}
	data, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 载荷失败: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{
		Kind:          e.Kind().String(),
		Timestamp:     e.timestamp,
		CorrelationID: e.correlationID,
		Data:          data,
	})
}

// UnmarshalJSON 严格解码事件，见 DecodeEvent
func (e *Event) UnmarshalJSON(b []byte) error {
	ev, err := DecodeEvent(b)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

// DecodeEvent 严格解码事件
// 外层与载荷都拒绝未知字段；缺失的必填字段由 Validate 报错，不做任何静默修正。
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := decodeStrict(b, &env); err != nil {
		return Event{}, fmt.Errorf("%w: 解码事件外层失败: %v", ErrInvalidEvent, err)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return Event{}, fmt.Errorf("%w: 事件缺少 data 字段", ErrInvalidEvent)
	}

	kind, err := ParseKind(env.Kind)
	if err != nil {
		return Event{}, err
	}

	var p Payload
	switch kind {
	case KindTrade:
		var v Trade
		err = decodeStrict(env.Data, &v)
		p = v
	case KindOrderbook:
		var v OrderbookSnapshot
		err = decodeStrict(env.Data, &v)
		p = v
	case KindSignal:
		var v Signal
		err = decodeStrict(env.Data, &v)
		p = v
	case KindOrder:
		var v Order
		err = decodeStrict(env.Data, &v)
		p = v
	case KindFill:
		var v Fill
		err = decodeStrict(env.Data, &v)
		p = v
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: 解码 %s 载荷失败: %v", ErrInvalidEvent, kind, err)
	}

	return NewEvent(env.Timestamp, env.CorrelationID, p)
}

func decodeStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("存在多余数据")
	}
	return nil
}
