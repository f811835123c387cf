package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicPoolEvents 池事件主题
const TopicPoolEvents = "optionstrading.pool.events"

// LockedAmountEvent 抵押品锁定事件
type LockedAmountEvent struct {
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	NewLocked decimal.Decimal `json:"new_locked"`
	Timestamp time.Time       `json:"timestamp"`
}

// UnlockedAmountEvent 抵押品解锁事件
type UnlockedAmountEvent struct {
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	NewLocked decimal.Decimal `json:"new_locked"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferedAmountEvent 池内资金转出事件
type TransferedAmountEvent struct {
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
