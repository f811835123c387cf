package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestValidateTerms(t *testing.T) {
	strike, amount, premium := d(200), d(100), d(5)

	tests := []struct {
		name    string
		strike  decimal.Decimal
		amount  decimal.Decimal
		premium decimal.Decimal
		period  time.Duration
		wantErr error
	}{
		{"valid", strike, amount, premium, 7 * 24 * time.Hour, nil},
		{"min period boundary", strike, amount, premium, MinPeriod, nil},
		{"max period boundary", strike, amount, premium, MaxPeriod, nil},
		{"period too short", strike, amount, premium, MinPeriod - time.Second, ErrPeriodTooShort},
		{"period too long", strike, amount, premium, MaxPeriod + time.Second, ErrPeriodTooLong},
		{"zero strike", d(0), amount, premium, 7 * 24 * time.Hour, ErrStrikeTooSmall},
		{"negative strike", d(-1), amount, premium, 7 * 24 * time.Hour, ErrStrikeTooSmall},
		{"zero amount", strike, d(0), premium, 7 * 24 * time.Hour, ErrAmountTooSmall},
		{"zero premium", strike, amount, d(0), 7 * 24 * time.Hour, ErrPremiumInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTerms(tt.strike, tt.amount, tt.premium, tt.period)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func newTestOption(now time.Time) *Option {
	return NewOption("seller", d(200), d(99), d(1), d(5), 7*24*time.Hour, "payTok", "optTok", Call, now)
}

func TestOptionLock(t *testing.T) {
	now := time.Now()

	t.Run("sets buyer and state", func(t *testing.T) {
		opt := newTestOption(now)
		require.NoError(t, opt.Lock("buyer", "payTok", d(5)))
		assert.Equal(t, "buyer", opt.Buyer)
		assert.Equal(t, StateLocked, opt.State)
	})

	t.Run("wrong payment token", func(t *testing.T) {
		opt := newTestOption(now)
		assert.ErrorIs(t, opt.Lock("buyer", "otherTok", d(5)), ErrPaymentTokenInvalid)
		assert.Equal(t, StateNew, opt.State)
	})

	t.Run("wrong premium", func(t *testing.T) {
		opt := newTestOption(now)
		assert.ErrorIs(t, opt.Lock("buyer", "payTok", d(4)), ErrPremiumInvalid)
	})

	t.Run("second buyer rejected", func(t *testing.T) {
		opt := newTestOption(now)
		require.NoError(t, opt.Lock("buyer", "payTok", d(5)))
		assert.ErrorIs(t, opt.Lock("rival", "payTok", d(5)), ErrInvalidState)
		assert.Equal(t, "buyer", opt.Buyer)
	})
}

func TestOptionCheckExercisable(t *testing.T) {
	now := time.Now()
	locked := func() *Option {
		opt := newTestOption(now)
		require.NoError(t, opt.Lock("buyer", "payTok", d(5)))
		return opt
	}

	t.Run("valid before expiry", func(t *testing.T) {
		opt := locked()
		sixDays := now.Add(6 * 24 * time.Hour)
		assert.NoError(t, opt.CheckExercisable("buyer", "payTok", d(99), sixDays))
	})

	t.Run("exactly at end date", func(t *testing.T) {
		opt := locked()
		assert.NoError(t, opt.CheckExercisable("buyer", "payTok", d(99), opt.EndDate))
	})

	t.Run("past end date", func(t *testing.T) {
		opt := locked()
		late := opt.EndDate.Add(time.Second)
		assert.ErrorIs(t, opt.CheckExercisable("buyer", "payTok", d(99), late), ErrOptionExpired)
	})

	t.Run("not the buyer", func(t *testing.T) {
		opt := locked()
		assert.ErrorIs(t, opt.CheckExercisable("stranger", "payTok", d(99), now), ErrNotBuyer)
	})

	t.Run("gross amount rejected", func(t *testing.T) {
		opt := locked()
		assert.ErrorIs(t, opt.CheckExercisable("buyer", "payTok", d(100), now), ErrInvalidAmount)
	})

	t.Run("unsold option", func(t *testing.T) {
		opt := newTestOption(now)
		opt.Buyer = "buyer"
		assert.ErrorIs(t, opt.CheckExercisable("buyer", "payTok", d(99), now), ErrInvalidState)
	})
}

func TestOptionCancel(t *testing.T) {
	now := time.Now()

	t.Run("seller cancels new option", func(t *testing.T) {
		opt := newTestOption(now)
		require.NoError(t, opt.Cancel("seller"))
		assert.Equal(t, StateCanceled, opt.State)
	})

	t.Run("non-seller rejected", func(t *testing.T) {
		opt := newTestOption(now)
		assert.ErrorIs(t, opt.Cancel("stranger"), ErrNotOwner)
	})

	t.Run("bought option cannot be canceled", func(t *testing.T) {
		opt := newTestOption(now)
		require.NoError(t, opt.Lock("buyer", "payTok", d(5)))
		assert.ErrorIs(t, opt.Cancel("seller"), ErrCannotCancel)
		assert.Equal(t, StateLocked, opt.State)
	})
}

func TestOptionStateMonotonic(t *testing.T) {
	now := time.Now()

	opt := newTestOption(now)
	require.NoError(t, opt.Lock("buyer", "payTok", d(5)))
	require.NoError(t, opt.Exercise())
	assert.Equal(t, StateExercised, opt.State)

	// 终态之后任何迁移都被拒绝
	assert.ErrorIs(t, opt.Exercise(), ErrInvalidState)
	assert.ErrorIs(t, opt.Lock("rival", "payTok", d(5)), ErrInvalidState)
	assert.ErrorIs(t, opt.Cancel("seller"), ErrCannotCancel)

	canceled := newTestOption(now)
	require.NoError(t, canceled.Cancel("seller"))
	assert.ErrorIs(t, canceled.Lock("buyer", "payTok", d(5)), ErrInvalidState)
	assert.ErrorIs(t, canceled.Exercise(), ErrInvalidState)
}
