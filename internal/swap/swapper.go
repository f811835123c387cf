// Package swap 资产兑换助手
// 在闪电行权路径上把收到的期权代币换成还款所需的支付代币。
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrNoRoute  = errors.New("no swap route for token pair")
	ErrSlippage = errors.New("insufficient swap output")
)

// Swapper 兑换接口，amountOut 低于 minAmountOut 时整笔兑换失败
type Swapper interface {
	Swap(ctx context.Context, account, tokenIn, tokenOut string, amountIn, minAmountOut decimal.Decimal) (decimal.Decimal, error)
}

// TokenLedger 兑换方依赖的代币账本能力
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error
}

// FixedRateSwapper 固定汇率的库存做市实现
// 汇率由运营方设置，库存账户需预先持有两侧资产
type FixedRateSwapper struct {
	account string
	ledger  TokenLedger
	logger  *slog.Logger

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewFixedRateSwapper 创建固定汇率兑换方
func NewFixedRateSwapper(account string, ledger TokenLedger, logger *slog.Logger) *FixedRateSwapper {
	return &FixedRateSwapper{
		account: account,
		ledger:  ledger,
		logger:  logger.With("module", "swapper"),
		rates:   make(map[string]decimal.Decimal),
	}
}

// Account 返回库存账户地址
func (s *FixedRateSwapper) Account() string { return s.account }

func pairKey(tokenIn, tokenOut string) string {
	return tokenIn + "->" + tokenOut
}

// SetRate 设置 tokenIn 到 tokenOut 的汇率
func (s *FixedRateSwapper) SetRate(tokenIn, tokenOut string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pairKey(tokenIn, tokenOut)] = rate
}

// Swap 按固定汇率兑换，输出不足 minAmountOut 时拒绝
func (s *FixedRateSwapper) Swap(ctx context.Context, account, tokenIn, tokenOut string, amountIn, minAmountOut decimal.Decimal) (decimal.Decimal, error) {
	s.mu.RLock()
	rate, ok := s.rates[pairKey(tokenIn, tokenOut)]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, ErrNoRoute
	}

	amountOut := amountIn.Mul(rate)
	if amountOut.LessThan(minAmountOut) {
		return decimal.Zero, ErrSlippage
	}

	if err := s.ledger.Transfer(ctx, tokenIn, account, s.account, amountIn); err != nil {
		return decimal.Zero, fmt.Errorf("swap input transfer failed: %w", err)
	}
	if err := s.ledger.Transfer(ctx, tokenOut, s.account, account, amountOut); err != nil {
		return decimal.Zero, fmt.Errorf("swap output transfer failed: %w", err)
	}

	s.logger.InfoContext(ctx, "swap executed",
		"account", account, "token_in", tokenIn, "token_out", tokenOut,
		"amount_in", amountIn, "amount_out", amountOut)
	return amountOut, nil
}
