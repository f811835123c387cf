package domain

import "time"

// TopicOptionEvents 期权生命周期事件主题
const TopicOptionEvents = "optionstrading.option.events"

// OptionCreatedEvent 期权创建事件
type OptionCreatedEvent struct {
	OptionID  uint       `json:"option_id"`
	Seller    string     `json:"seller"`
	Type      OptionType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
}

// OptionLockedEvent 期权售出事件
type OptionLockedEvent struct {
	OptionID  uint      `json:"option_id"`
	Buyer     string    `json:"buyer"`
	Timestamp time.Time `json:"timestamp"`
}

// OptionExecutedEvent 期权行权事件
type OptionExecutedEvent struct {
	OptionID  uint      `json:"option_id"`
	Timestamp time.Time `json:"timestamp"`
}

// OptionCanceledEvent 期权取消事件
type OptionCanceledEvent struct {
	OptionID  uint      `json:"option_id"`
	Timestamp time.Time `json:"timestamp"`
}
