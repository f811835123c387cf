package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionstrading/internal/testsupport"
	"github.com/wyfcoding/optionstrading/internal/token/application"
	"github.com/wyfcoding/optionstrading/internal/token/domain"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newService() *application.TokenService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewTokenService(testsupport.NewStore().TokenLedger(), logger)
}

func TestMintAndBalanceOf(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	require.NoError(t, svc.Mint(ctx, "tok", "alice", d(1000)))

	bal, err := svc.BalanceOf(ctx, "tok", "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(d(1000)))

	// 未知持有人视为零余额
	bal, err = svc.BalanceOf(ctx, "tok", "nobody")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestTransfer(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	require.NoError(t, svc.Mint(ctx, "tok", "alice", d(100)))

	require.NoError(t, svc.Transfer(ctx, "tok", "alice", "bob", d(40)))

	aliceBal, _ := svc.BalanceOf(ctx, "tok", "alice")
	bobBal, _ := svc.BalanceOf(ctx, "tok", "bob")
	assert.True(t, aliceBal.Equal(d(60)))
	assert.True(t, bobBal.Equal(d(40)))

	assert.ErrorIs(t, svc.Transfer(ctx, "tok", "alice", "bob", d(61)), domain.ErrInsufficientBalance)
}

func TestApproveAndTransferFrom(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	require.NoError(t, svc.Mint(ctx, "tok", "alice", d(100)))

	require.NoError(t, svc.Approve(ctx, "tok", "alice", "pool", d(50)))

	allowance, err := svc.Allowance(ctx, "tok", "alice", "pool")
	require.NoError(t, err)
	assert.True(t, allowance.Equal(d(50)))

	require.NoError(t, svc.TransferFrom(ctx, "tok", "pool", "alice", "bob", d(30)))

	bobBal, _ := svc.BalanceOf(ctx, "tok", "bob")
	assert.True(t, bobBal.Equal(d(30)))

	allowance, _ = svc.Allowance(ctx, "tok", "alice", "pool")
	assert.True(t, allowance.Equal(d(20)))

	// 超出剩余授权额度
	assert.ErrorIs(t, svc.TransferFrom(ctx, "tok", "pool", "alice", "bob", d(21)), domain.ErrInsufficientAllowance)

	// 未授权的代扣方
	assert.ErrorIs(t, svc.TransferFrom(ctx, "tok", "stranger", "alice", "bob", d(1)), domain.ErrInsufficientAllowance)
}
