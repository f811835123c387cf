// Package domain 期权生命周期领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrStrikeTooSmall      = errors.New("strike is too small")
	ErrAmountTooSmall      = errors.New("amount is too small")
	ErrPeriodTooShort      = errors.New("period is too short")
	ErrPeriodTooLong       = errors.New("period is too long")
	ErrPaymentTokenInvalid = errors.New("payment token not valid")
	ErrPremiumInvalid      = errors.New("premium amount not valid")
	ErrNotBuyer            = errors.New("caller is not the buyer")
	ErrNotOwner            = errors.New("caller is not the owner of the option")
	ErrOptionExpired       = errors.New("the option expired")
	ErrCannotCancel        = errors.New("cannot cancel the option")
	ErrInvalidState        = errors.New("invalid option state")
	ErrInvalidAmount       = errors.New("amount not valid")
	ErrInvalidAddress      = errors.New("zero address")
	ErrNotFound            = errors.New("option not found")
	ErrOptionBusy          = errors.New("option settlement in progress")
)

// 期权有效期边界
const (
	MinPeriod = 24 * time.Hour
	MaxPeriod = 28 * 24 * time.Hour
)

// OptionType 期权方向，只作元数据记录，不影响交割路径
type OptionType int8

const (
	Call OptionType = 0
	Put  OptionType = 1
)

// String 返回类型描述
func (t OptionType) String() string {
	switch t {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// OptionState 期权状态
// 状态单向推进: New -> Locked -> Exercised，或 New -> Canceled，终态不可再迁移
type OptionState int8

const (
	StateNew       OptionState = 0
	StateLocked    OptionState = 1
	StateExercised OptionState = 2
	StateCanceled  OptionState = 3
)

// String 返回状态描述
func (s OptionState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateLocked:
		return "LOCKED"
	case StateExercised:
		return "EXERCISED"
	case StateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Option 期权聚合根
// Amount 为扣除协议手续费后的净抵押量，行权时买方收到的就是该数额
type Option struct {
	gorm.Model
	Seller       string          `gorm:"column:seller;type:varchar(64);index;not null" json:"seller"`
	Buyer        string          `gorm:"column:buyer;type:varchar(64);index" json:"buyer"`
	Strike       decimal.Decimal `gorm:"column:strike;type:decimal(32,18);not null" json:"strike"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	Fee          decimal.Decimal `gorm:"column:fee;type:decimal(32,18);not null" json:"fee"`
	Premium      decimal.Decimal `gorm:"column:premium;type:decimal(32,18);not null" json:"premium"`
	StartDate    time.Time       `gorm:"column:start_date;not null" json:"start_date"`
	EndDate      time.Time       `gorm:"column:end_date;not null" json:"end_date"`
	PaymentToken string          `gorm:"column:payment_token;type:varchar(64);not null" json:"payment_token"`
	OptionToken  string          `gorm:"column:option_token;type:varchar(64);not null" json:"option_token"`
	Type         OptionType      `gorm:"column:type;type:tinyint;not null" json:"type"`
	State        OptionState     `gorm:"column:state;type:tinyint;not null;default:0" json:"state"`
}

// TableName 表名
func (Option) TableName() string { return "options" }

// ValidateTerms 校验开仓参数
func ValidateTerms(strike, amount, premium decimal.Decimal, period time.Duration) error {
	if strike.Sign() <= 0 {
		return ErrStrikeTooSmall
	}
	if amount.Sign() <= 0 {
		return ErrAmountTooSmall
	}
	if premium.Sign() <= 0 {
		return ErrPremiumInvalid
	}
	if period < MinPeriod {
		return ErrPeriodTooShort
	}
	if period > MaxPeriod {
		return ErrPeriodTooLong
	}
	return nil
}

// NewOption 创建待售期权，netAmount 与 fee 来自资金池锁仓结果
func NewOption(seller string, strike, netAmount, fee, premium decimal.Decimal, period time.Duration, paymentToken, optionToken string, optionType OptionType, now time.Time) *Option {
	return &Option{
		Seller:       seller,
		Strike:       strike,
		Amount:       netAmount,
		Fee:          fee,
		Premium:      premium,
		StartDate:    now,
		EndDate:      now.Add(period),
		PaymentToken: paymentToken,
		OptionToken:  optionToken,
		Type:         optionType,
		State:        StateNew,
	}
}

// Lock 买入期权，首个成功买家锁定，买家一经设置不可变更
func (o *Option) Lock(buyer, paymentToken string, premium decimal.Decimal) error {
	if paymentToken != o.PaymentToken {
		return ErrPaymentTokenInvalid
	}
	if !premium.Equal(o.Premium) {
		return ErrPremiumInvalid
	}
	if o.State != StateNew {
		return ErrInvalidState
	}
	o.Buyer = buyer
	o.State = StateLocked
	return nil
}

// CheckExercisable 校验行权前置条件，不产生任何状态变化
// amount 必须与净抵押量完全一致，防止调用方携带过期的毛额
func (o *Option) CheckExercisable(caller, paymentToken string, amount decimal.Decimal, now time.Time) error {
	if caller != o.Buyer {
		return ErrNotBuyer
	}
	if now.After(o.EndDate) {
		return ErrOptionExpired
	}
	if o.State != StateLocked {
		return ErrInvalidState
	}
	if paymentToken != o.PaymentToken {
		return ErrPaymentTokenInvalid
	}
	if !amount.Equal(o.Amount) {
		return ErrInvalidAmount
	}
	return nil
}

// Exercise 迁移到已行权终态
func (o *Option) Exercise() error {
	if o.State != StateLocked {
		return ErrInvalidState
	}
	o.State = StateExercised
	return nil
}

// Cancel 卖方在售出前撤回期权
func (o *Option) Cancel(caller string) error {
	if caller != o.Seller {
		return ErrNotOwner
	}
	if o.State != StateNew {
		return ErrCannotCancel
	}
	o.State = StateCanceled
	return nil
}

// HoldingRole 持仓角色
type HoldingRole int8

const (
	RoleSeller HoldingRole = 0
	RoleBuyer  HoldingRole = 1
)

// OptionHolding 地址与期权的持仓关系，卖出与买入各记一行
type OptionHolding struct {
	gorm.Model
	Holder   string      `gorm:"column:holder;type:varchar(64);index:idx_holder_role;not null" json:"holder"`
	Role     HoldingRole `gorm:"column:role;type:tinyint;index:idx_holder_role;not null" json:"role"`
	OptionID uint        `gorm:"column:option_id;index;not null" json:"option_id"`
}

// TableName 表名
func (OptionHolding) TableName() string { return "option_holdings" }

// OptionRepository 期权仓储接口
// Get 对不存在的 id 返回 (nil, nil)
type OptionRepository interface {
	Create(ctx context.Context, option *Option) error
	Update(ctx context.Context, option *Option) error
	Get(ctx context.Context, id uint) (*Option, error)
	GetAll(ctx context.Context) ([]*Option, error)
	AddHolding(ctx context.Context, holding *OptionHolding) error
	GetByHolder(ctx context.Context, holder string, role HoldingRole) ([]*Option, error)
}

// CollateralPool 期权状态机驱动的资金池能力
type CollateralPool interface {
	Account() string
	LockCollateral(ctx context.Context, caller, from, token string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
	UnlockCollateral(ctx context.Context, caller, token string, amount decimal.Decimal) error
	SettleExercise(ctx context.Context, caller, payer, recipient, payee, paymentToken string, paymentAmount decimal.Decimal, collateralToken string, collateralAmount decimal.Decimal) error
	RefundCollateral(ctx context.Context, caller, token, to string, net, fee decimal.Decimal) error
	TransferErc20(ctx context.Context, caller, from, token, to string, amount decimal.Decimal) error
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
