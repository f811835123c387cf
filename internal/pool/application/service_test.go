package application_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionstrading/internal/pool/domain"
	"github.com/wyfcoding/optionstrading/internal/testsupport"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func setup(t *testing.T) (*testsupport.World, context.Context) {
	t.Helper()
	w := testsupport.NewWorld()
	ctx := context.Background()
	require.NoError(t, w.Tokens.Mint(ctx, "optTok", "seller", d(1000)))
	require.NoError(t, w.Tokens.Approve(ctx, "optTok", "seller", testsupport.PoolAccount, d(1000)))
	return w, ctx
}

func TestSetOptionTrigger(t *testing.T) {
	w := testsupport.NewWorld()
	ctx := context.Background()

	assert.ErrorIs(t, w.Pool.SetOptionTrigger(ctx, "stranger", "0xNew"), domain.ErrUnauthorized)
	assert.ErrorIs(t, w.Pool.SetOptionTrigger(ctx, testsupport.Owner, ""), domain.ErrInvalidAddress)

	require.NoError(t, w.Pool.SetOptionTrigger(ctx, testsupport.Owner, "0xNewTrigger"))
	assert.Equal(t, "0xNewTrigger", w.Pool.OptionTrigger())
}

func TestMutatingOpsRejectNonTrigger(t *testing.T) {
	w, ctx := setup(t)
	caller := "0xImpostor"

	_, _, err := w.Pool.LockCollateral(ctx, caller, "seller", "optTok", d(100))
	assert.ErrorIs(t, err, domain.ErrInvalidCaller)
	assert.ErrorIs(t, w.Pool.UnlockCollateral(ctx, caller, "optTok", d(1)), domain.ErrInvalidCaller)
	assert.ErrorIs(t, w.Pool.SettleExercise(ctx, caller, "buyer", "seller", "buyer", "payTok", d(200), "optTok", d(99)), domain.ErrInvalidCaller)
	assert.ErrorIs(t, w.Pool.RefundCollateral(ctx, caller, "optTok", "seller", d(99), d(1)), domain.ErrInvalidCaller)
	assert.ErrorIs(t, w.Pool.TransferTo(ctx, caller, "optTok", "seller", d(1)), domain.ErrInvalidCaller)
	assert.ErrorIs(t, w.Pool.TransferErc20(ctx, caller, "buyer", "payTok", "seller", d(5)), domain.ErrInvalidCaller)
}

func TestLockCollateral(t *testing.T) {
	w, ctx := setup(t)

	net, fee, err := w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "seller", "optTok", d(100))
	require.NoError(t, err)
	assert.True(t, net.Equal(d(99)))
	assert.True(t, fee.Equal(d(1)))

	locked, _ := w.Pool.GetLockedAmount(ctx, "optTok")
	fees, _ := w.Pool.GetFees(ctx, "optTok")
	assert.True(t, locked.Equal(d(99)))
	assert.True(t, fees.Equal(d(1)))

	sellerBal, _ := w.Tokens.BalanceOf(ctx, "optTok", "seller")
	poolBal, _ := w.Tokens.BalanceOf(ctx, "optTok", testsupport.PoolAccount)
	assert.True(t, sellerBal.Equal(d(900)))
	assert.True(t, poolBal.Equal(d(100)))

	events := w.Events.ForTopic(domain.TopicPoolEvents)
	require.Len(t, events, 1)
	lockedEvt, ok := events[0].Event.(domain.LockedAmountEvent)
	require.True(t, ok)
	assert.True(t, lockedEvt.NewLocked.Equal(d(99)))
}

func TestLockCollateralValidation(t *testing.T) {
	w, ctx := setup(t)

	_, _, err := w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "", "optTok", d(100))
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, _, err = w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "seller", "optTok", d(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestUnlockAndTransferTo(t *testing.T) {
	w, ctx := setup(t)
	_, _, err := w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "seller", "optTok", d(100))
	require.NoError(t, err)

	assert.ErrorIs(t, w.Pool.UnlockCollateral(ctx, testsupport.TriggerAccount, "optTok", d(100)), domain.ErrInsufficientLocked)

	require.NoError(t, w.Pool.UnlockCollateral(ctx, testsupport.TriggerAccount, "optTok", d(99)))
	unlocked, _ := w.Pool.GetUnlockedAmount(ctx, "optTok")
	assert.True(t, unlocked.Equal(d(99)))

	require.NoError(t, w.Pool.TransferTo(ctx, testsupport.TriggerAccount, "optTok", "recipient", d(99)))
	recipientBal, _ := w.Tokens.BalanceOf(ctx, "optTok", "recipient")
	assert.True(t, recipientBal.Equal(d(99)))

	unlocked, _ = w.Pool.GetUnlockedAmount(ctx, "optTok")
	assert.True(t, unlocked.IsZero())
}

func TestRefundCollateral(t *testing.T) {
	w, ctx := setup(t)
	net, fee, err := w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "seller", "optTok", d(100))
	require.NoError(t, err)

	require.NoError(t, w.Pool.RefundCollateral(ctx, testsupport.TriggerAccount, "optTok", "seller", net, fee))

	// 净额与手续费全部退回，池内记账清零
	sellerBal, _ := w.Tokens.BalanceOf(ctx, "optTok", "seller")
	assert.True(t, sellerBal.Equal(d(1000)))

	locked, _ := w.Pool.GetLockedAmount(ctx, "optTok")
	unlocked, _ := w.Pool.GetUnlockedAmount(ctx, "optTok")
	fees, _ := w.Pool.GetFees(ctx, "optTok")
	assert.True(t, locked.IsZero())
	assert.True(t, unlocked.IsZero())
	assert.True(t, fees.IsZero())
}

func TestSettleExercise(t *testing.T) {
	w, ctx := setup(t)
	require.NoError(t, w.Tokens.Mint(ctx, "payTok", "buyer", d(500)))
	require.NoError(t, w.Tokens.Approve(ctx, "payTok", "buyer", testsupport.PoolAccount, d(500)))

	_, _, err := w.Pool.LockCollateral(ctx, testsupport.TriggerAccount, "seller", "optTok", d(100))
	require.NoError(t, err)
	require.NoError(t, w.Pool.UnlockCollateral(ctx, testsupport.TriggerAccount, "optTok", d(99)))

	require.NoError(t, w.Pool.SettleExercise(ctx, testsupport.TriggerAccount,
		"buyer", "seller", "buyer", "payTok", d(200), "optTok", d(99)))

	sellerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "seller")
	buyerPay, _ := w.Tokens.BalanceOf(ctx, "payTok", "buyer")
	buyerOpt, _ := w.Tokens.BalanceOf(ctx, "optTok", "buyer")
	assert.True(t, sellerPay.Equal(d(200)))
	assert.True(t, buyerPay.Equal(d(300)))
	assert.True(t, buyerOpt.Equal(d(99)))

	unlocked, _ := w.Pool.GetUnlockedAmount(ctx, "optTok")
	assert.True(t, unlocked.IsZero())
}

func TestQueriesReturnZeroForUnknownToken(t *testing.T) {
	w := testsupport.NewWorld()
	ctx := context.Background()

	locked, err := w.Pool.GetLockedAmount(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, locked.IsZero())

	unlocked, err := w.Pool.GetUnlockedAmount(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, unlocked.IsZero())

	fees, err := w.Pool.GetFees(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, fees.IsZero())
}
