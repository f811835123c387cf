// Package domain 抵押品资金池领域模型
// 资金池是所有期权抵押品的唯一托管方，仅注册过的期权触发器地址可以搬动托管资金
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized         = errors.New("caller is not the pool owner")
	ErrInvalidCaller        = errors.New("caller is not the option trigger")
	ErrInvalidAddress       = errors.New("zero address")
	ErrInvalidAmount        = errors.New("amount not valid")
	ErrInsufficientLocked   = errors.New("not enough locked tokens")
	ErrInsufficientUnlocked = errors.New("not enough unlocked tokens")
)

// FeeRate 抵押时一次性扣除的协议手续费率 (1%)
var FeeRate = decimal.New(1, -2)

// TokenBalance 单个代币在池中的锁定/可用余额及累计手续费
// 不存在的代币记录视为全零，首次引用时落库
type TokenBalance struct {
	gorm.Model
	Token    string          `gorm:"column:token;type:varchar(64);uniqueIndex;not null" json:"token"`
	Locked   decimal.Decimal `gorm:"column:locked;type:decimal(32,18);default:0;not null" json:"locked"`
	Unlocked decimal.Decimal `gorm:"column:unlocked;type:decimal(32,18);default:0;not null" json:"unlocked"`
	Fees     decimal.Decimal `gorm:"column:fees;type:decimal(32,18);default:0;not null" json:"fees"`
}

// TableName 表名
func (TokenBalance) TableName() string { return "pool_token_balances" }

// NewTokenBalance 创建全零余额记录
func NewTokenBalance(token string) *TokenBalance {
	return &TokenBalance{
		Token:    token,
		Locked:   decimal.Zero,
		Unlocked: decimal.Zero,
		Fees:     decimal.Zero,
	}
}

// Lock 锁定净抵押量并记入手续费
func (b *TokenBalance) Lock(net, fee decimal.Decimal) {
	b.Locked = b.Locked.Add(net)
	b.Fees = b.Fees.Add(fee)
}

// Unlock 将锁定余额转入可用余额，锁定不足时拒绝
func (b *TokenBalance) Unlock(amount decimal.Decimal) error {
	if b.Locked.LessThan(amount) {
		return ErrInsufficientLocked
	}
	b.Locked = b.Locked.Sub(amount)
	b.Unlocked = b.Unlocked.Add(amount)
	return nil
}

// Debit 从可用余额中扣除，对应资金已转出池外
func (b *TokenBalance) Debit(amount decimal.Decimal) error {
	if b.Unlocked.LessThan(amount) {
		return ErrInsufficientUnlocked
	}
	b.Unlocked = b.Unlocked.Sub(amount)
	return nil
}

// RefundFee 回冲已计提的手续费，取消未售出期权时使用
func (b *TokenBalance) RefundFee(fee decimal.Decimal) error {
	if b.Fees.LessThan(fee) {
		return ErrInsufficientUnlocked
	}
	b.Fees = b.Fees.Sub(fee)
	return nil
}

// BalanceRepository 池余额仓储接口
// Get 对未知代币返回 (nil, nil)
type BalanceRepository interface {
	Get(ctx context.Context, token string) (*TokenBalance, error)
	Save(ctx context.Context, balance *TokenBalance) error
}

// TokenTransfer 池所消费的外部代币转账能力
type TokenTransfer interface {
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, token, spender, from, to string, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error)
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
