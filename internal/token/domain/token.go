// Package domain 同质化代币账本领域模型
// 提供 transfer/transferFrom/approve/balanceOf 语义，资金池作为被授权的代扣方使用
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAddress        = errors.New("zero address")
	ErrInvalidAmount         = errors.New("amount not valid")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Balance 某代币在某账户下的余额
type Balance struct {
	gorm.Model
	Token  string          `gorm:"column:token;type:varchar(64);uniqueIndex:idx_token_holder;not null" json:"token"`
	Holder string          `gorm:"column:holder;type:varchar(64);uniqueIndex:idx_token_holder;not null" json:"holder"`
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);default:0;not null" json:"amount"`
}

// TableName 表名
func (Balance) TableName() string { return "token_balances" }

// Allowance 代币授权额度：owner 允许 spender 代为转出的数量
type Allowance struct {
	gorm.Model
	Token   string          `gorm:"column:token;type:varchar(64);uniqueIndex:idx_token_owner_spender;not null" json:"token"`
	Owner   string          `gorm:"column:owner;type:varchar(64);uniqueIndex:idx_token_owner_spender;not null" json:"owner"`
	Spender string          `gorm:"column:spender;type:varchar(64);uniqueIndex:idx_token_owner_spender;not null" json:"spender"`
	Amount  decimal.Decimal `gorm:"column:amount;type:decimal(32,18);default:0;not null" json:"amount"`
}

// TableName 表名
func (Allowance) TableName() string { return "token_allowances" }

// Credit 增加余额
func (b *Balance) Credit(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
}

// Debit 减少余额，余额不足时拒绝
func (b *Balance) Debit(amount decimal.Decimal) error {
	if b.Amount.LessThan(amount) {
		return ErrInsufficientBalance
	}
	b.Amount = b.Amount.Sub(amount)
	return nil
}

// Spend 消耗授权额度
func (a *Allowance) Spend(amount decimal.Decimal) error {
	if a.Amount.LessThan(amount) {
		return ErrInsufficientAllowance
	}
	a.Amount = a.Amount.Sub(amount)
	return nil
}

// LedgerRepository 代币账本仓储接口
// 不存在的 (token, holder) 组合视为零余额
type LedgerRepository interface {
	GetBalance(ctx context.Context, token, holder string) (*Balance, error)
	SaveBalance(ctx context.Context, balance *Balance) error
	GetAllowance(ctx context.Context, token, owner, spender string) (*Allowance, error)
	SaveAllowance(ctx context.Context, allowance *Allowance) error
}
