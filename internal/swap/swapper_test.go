package swap_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionstrading/internal/swap"
	"github.com/wyfcoding/optionstrading/internal/testsupport"
	tokenapp "github.com/wyfcoding/optionstrading/internal/token/application"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newSwapper(t *testing.T) (*swap.FixedRateSwapper, *tokenapp.TokenService, context.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := tokenapp.NewTokenService(testsupport.NewStore().TokenLedger(), logger)
	swapper := swap.NewFixedRateSwapper("inventory", tokens, logger)
	ctx := context.Background()
	require.NoError(t, tokens.Mint(ctx, "payTok", "inventory", d(1000)))
	require.NoError(t, tokens.Mint(ctx, "optTok", "trader", d(100)))
	return swapper, tokens, ctx
}

func TestSwap(t *testing.T) {
	swapper, tokens, ctx := newSwapper(t)
	swapper.SetRate("optTok", "payTok", d(3))

	out, err := swapper.Swap(ctx, "trader", "optTok", "payTok", d(100), d(250))
	require.NoError(t, err)
	assert.True(t, out.Equal(d(300)))

	traderPay, _ := tokens.BalanceOf(ctx, "payTok", "trader")
	traderOpt, _ := tokens.BalanceOf(ctx, "optTok", "trader")
	inventoryOpt, _ := tokens.BalanceOf(ctx, "optTok", "inventory")
	assert.True(t, traderPay.Equal(d(300)))
	assert.True(t, traderOpt.IsZero())
	assert.True(t, inventoryOpt.Equal(d(100)))
}

func TestSwapNoRoute(t *testing.T) {
	swapper, _, ctx := newSwapper(t)

	_, err := swapper.Swap(ctx, "trader", "optTok", "payTok", d(100), d(1))
	assert.ErrorIs(t, err, swap.ErrNoRoute)
}

func TestSwapSlippage(t *testing.T) {
	swapper, tokens, ctx := newSwapper(t)
	swapper.SetRate("optTok", "payTok", d(2))

	_, err := swapper.Swap(ctx, "trader", "optTok", "payTok", d(100), d(250))
	assert.ErrorIs(t, err, swap.ErrSlippage)

	// 被拒的兑换不动任何余额
	traderOpt, _ := tokens.BalanceOf(ctx, "optTok", "trader")
	assert.True(t, traderOpt.Equal(d(100)))
}
