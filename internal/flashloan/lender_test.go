package flashloan_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	"github.com/wyfcoding/optionstrading/internal/testsupport"
	tokenapp "github.com/wyfcoding/optionstrading/internal/token/application"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newLender(t *testing.T) (*flashloan.TokenLender, *tokenapp.TokenService, context.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := tokenapp.NewTokenService(testsupport.NewStore().TokenLedger(), logger)
	lender := flashloan.NewTokenLender("lender", tokens, logger)
	ctx := context.Background()
	require.NoError(t, tokens.Mint(ctx, "payTok", "lender", d(1000)))
	return lender, tokens, ctx
}

func TestAdvanceRepaid(t *testing.T) {
	lender, tokens, ctx := newLender(t)

	err := lender.Advance(ctx, "borrower", "payTok", d(200), func(ctx context.Context) error {
		// 借款方在回调内归还本金加手续费
		owed := d(200).Add(lender.Fee(d(200)))
		require.NoError(t, tokens.Mint(ctx, "payTok", "borrower", d(1)))
		return tokens.Transfer(ctx, "payTok", "borrower", "lender", owed)
	})
	require.NoError(t, err)

	bal, _ := tokens.BalanceOf(ctx, "payTok", "lender")
	assert.True(t, bal.Equal(d(1000).Add(lender.Fee(d(200)))))
}

func TestAdvanceNotRepaid(t *testing.T) {
	lender, tokens, ctx := newLender(t)

	err := lender.Advance(ctx, "borrower", "payTok", d(200), func(ctx context.Context) error {
		// 只还本金，不付手续费
		return tokens.Transfer(ctx, "payTok", "borrower", "lender", d(200))
	})
	assert.ErrorIs(t, err, flashloan.ErrRepaymentShort)
}

func TestAdvanceCallbackError(t *testing.T) {
	lender, _, ctx := newLender(t)
	sentinel := errors.New("settlement failed")

	err := lender.Advance(ctx, "borrower", "payTok", d(200), func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestAdvanceInsufficientLiquidity(t *testing.T) {
	lender, _, ctx := newLender(t)

	err := lender.Advance(ctx, "borrower", "payTok", d(2000), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, flashloan.ErrInsufficientLiquidity)
}

func TestFee(t *testing.T) {
	lender, _, _ := newLender(t)
	// 9 个基点
	assert.True(t, lender.Fee(d(10000)).Equal(d(9)))
}
