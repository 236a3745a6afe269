package risk

// ReasonKillSwitch 熔断触发时的拒绝原因
const ReasonKillSwitch = "Kill switch triggered"

// KillSwitch 熔断开关
// 两态锁存 {clear, triggered}；enabled=false 时无论锁存状态都放行。
// Trigger 与 Reset 都是幂等的。
type KillSwitch struct {
	enabled   bool
	triggered bool
}

// NewKillSwitch 创建熔断开关
func NewKillSwitch(enabled bool) *KillSwitch {
	return &KillSwitch{enabled: enabled}
}

// Check 返回是否允许下单
func (k *KillSwitch) Check() (bool, string) {
	if !k.enabled {
		return true, ReasonOK
	}
	if k.triggered {
		return false, ReasonKillSwitch
	}
	return true, ReasonOK
}

// Trigger 触发熔断；已触发时无操作
func (k *KillSwitch) Trigger() {
	k.triggered = true
}

// Reset 解除熔断；未触发时无操作
func (k *KillSwitch) Reset() {
	k.triggered = false
}

// IsTriggered 返回锁存状态（不考虑 enabled）
func (k *KillSwitch) IsTriggered() bool { return k.triggered }

// Enabled 返回开关是否启用
func (k *KillSwitch) Enabled() bool { return k.enabled }
