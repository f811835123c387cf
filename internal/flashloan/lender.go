// Package flashloan 闪电流动性提供方
// 借款本金加手续费必须在回调返回前回到出借账户，否则整笔垫付失败。
// 原子性由调用方的事务边界保证，本包只负责放款、回调与还款校验。
package flashloan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient lender liquidity")
	ErrRepaymentShort        = errors.New("flash advance not repaid")
)

// FeeRate 出借手续费率 (9 个基点)
var FeeRate = decimal.New(9, -4)

// Callback 借款方在持有垫付资金期间执行的结算逻辑
type Callback func(ctx context.Context) error

// Lender 闪电垫付接口
type Lender interface {
	Account() string
	Fee(amount decimal.Decimal) decimal.Decimal
	Advance(ctx context.Context, borrower, token string, amount decimal.Decimal, fn Callback) error
}

// TokenLedger 出借方依赖的代币账本能力
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error)
}

// TokenLender 以代币账本为资金来源的出借方实现
type TokenLender struct {
	account string
	ledger  TokenLedger
	logger  *slog.Logger
}

// NewTokenLender 创建出借方
func NewTokenLender(account string, ledger TokenLedger, logger *slog.Logger) *TokenLender {
	return &TokenLender{
		account: account,
		ledger:  ledger,
		logger:  logger.With("module", "flash_lender"),
	}
}

// Account 返回出借账户地址
func (l *TokenLender) Account() string { return l.account }

// Fee 计算指定本金的出借手续费
func (l *TokenLender) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(FeeRate)
}

// Advance 垫付资金给借款方并执行回调
// 回调返回后校验出借账户余额不低于放款前余额加手续费
func (l *TokenLender) Advance(ctx context.Context, borrower, token string, amount decimal.Decimal, fn Callback) error {
	before, err := l.ledger.BalanceOf(ctx, token, l.account)
	if err != nil {
		return err
	}
	if before.LessThan(amount) {
		return ErrInsufficientLiquidity
	}

	if err := l.ledger.Transfer(ctx, token, l.account, borrower, amount); err != nil {
		return fmt.Errorf("flash advance payout failed: %w", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	after, err := l.ledger.BalanceOf(ctx, token, l.account)
	if err != nil {
		return err
	}
	owed := before.Add(l.Fee(amount))
	if after.LessThan(owed) {
		l.logger.WarnContext(ctx, "flash advance underpaid",
			"token", token, "borrower", borrower, "owed", owed, "repaid", after)
		return ErrRepaymentShort
	}

	l.logger.InfoContext(ctx, "flash advance settled",
		"token", token, "borrower", borrower, "amount", amount, "fee", l.Fee(amount))
	return nil
}
