package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	"github.com/wyfcoding/optionstrading/internal/option/domain"
	"github.com/wyfcoding/optionstrading/internal/swap"
	"github.com/wyfcoding/optionstrading/internal/testsupport"
)

// setupFlash 买方只有权利金，行权款全靠闪电垫付
func setupFlash(t *testing.T) (*testsupport.World, context.Context, *domain.Option) {
	t.Helper()
	w := testsupport.NewWorld()
	ctx := context.Background()

	require.NoError(t, w.Tokens.Mint(ctx, "optTok", "seller", d(1000)))
	require.NoError(t, w.Tokens.Approve(ctx, "optTok", "seller", testsupport.PoolAccount, d(1000)))
	require.NoError(t, w.Tokens.Mint(ctx, "payTok", "buyer", d(5)))
	require.NoError(t, w.Tokens.Approve(ctx, "payTok", "buyer", testsupport.PoolAccount, d(1000)))

	require.NoError(t, w.Tokens.Mint(ctx, "payTok", testsupport.LenderAccount, d(1000)))
	require.NoError(t, w.Tokens.Mint(ctx, "payTok", testsupport.SwapAccount, d(1000)))

	opt, err := w.Options.SellOption(ctx, "seller", d(200), d(100), d(5), week, "payTok", "optTok", domain.Call)
	require.NoError(t, err)
	_, err = w.Options.BuyOption(ctx, "buyer", opt.ID, "payTok", d(5))
	require.NoError(t, err)
	return w, ctx, opt
}

func TestExerciseOptionFlashLoan(t *testing.T) {
	w, ctx, opt := setupFlash(t)
	w.Swapper.SetRate("optTok", "payTok", d(3))

	exercised, err := w.Options.ExerciseOptionFlashLoan(ctx, "buyer", opt.ID, "payTok", d(99))
	require.NoError(t, err)
	assert.Equal(t, domain.StateExercised, exercised.State)

	// 出借方收回本金加手续费
	owed := d(200).Add(d(200).Mul(flashloan.FeeRate))
	lenderBal, _ := w.Tokens.BalanceOf(ctx, "payTok", testsupport.LenderAccount)
	assert.True(t, lenderBal.Equal(d(1000).Sub(d(200)).Add(owed)))

	// 买方留下兑换所得减去还款的差额，抵押品已全部换出
	buyerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "buyer")
	buyerOpt, _ := w.Tokens.BalanceOf(ctx, "optTok", "buyer")
	assert.True(t, buyerPay.Equal(d(297).Sub(owed)))
	assert.True(t, buyerOpt.IsZero())

	// 卖方照常收到行权价
	sellerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "seller")
	assert.True(t, sellerPay.Equal(d(205)))
}

func TestFlashLoanAbortsWithoutSwapRoute(t *testing.T) {
	w, ctx, opt := setupFlash(t)

	_, err := w.Options.ExerciseOptionFlashLoan(ctx, "buyer", opt.ID, "payTok", d(99))
	assert.ErrorIs(t, err, swap.ErrNoRoute)

	assertNothingMoved(t, w, ctx, opt)
}

func TestFlashLoanAbortsOnSlippage(t *testing.T) {
	w, ctx, opt := setupFlash(t)
	// 兑换所得不足以覆盖还款额
	w.Swapper.SetRate("optTok", "payTok", d(2))

	_, err := w.Options.ExerciseOptionFlashLoan(ctx, "buyer", opt.ID, "payTok", d(99))
	assert.ErrorIs(t, err, swap.ErrSlippage)

	assertNothingMoved(t, w, ctx, opt)
}

// assertNothingMoved 闪电行权失败后一切状态回到行权前
func assertNothingMoved(t *testing.T, w *testsupport.World, ctx context.Context, opt *domain.Option) {
	t.Helper()

	stored, err := w.Store.Options().Get(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLocked, stored.State)

	locked, _ := w.Pool.GetLockedAmount(ctx, "optTok")
	unlocked, _ := w.Pool.GetUnlockedAmount(ctx, "optTok")
	assert.True(t, locked.Equal(d(99)))
	assert.True(t, unlocked.IsZero())

	lenderBal, _ := w.Tokens.BalanceOf(ctx, "payTok", testsupport.LenderAccount)
	buyerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "buyer")
	buyerOpt, _ := w.Tokens.BalanceOf(ctx, "optTok", "buyer")
	sellerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "seller")
	assert.True(t, lenderBal.Equal(d(1000)))
	assert.True(t, buyerPay.IsZero())
	assert.True(t, buyerOpt.IsZero())
	assert.True(t, sellerPay.Equal(d(5)))
}
