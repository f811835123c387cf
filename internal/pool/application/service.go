// Package application 抵押品资金池应用服务
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionstrading/internal/pool/domain"
)

// PoolService 资金池服务
// 池本身在代币账本中持有一个托管账户，所有抵押品实际停泊在该账户下；
// owner 只负责绑定触发器地址，触发器是唯一能搬动托管资金的调用方
type PoolService struct {
	owner   string
	account string

	mu      sync.RWMutex
	trigger string

	repo      domain.BalanceRepository
	tokens    domain.TokenTransfer
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewPoolService 创建资金池服务
func NewPoolService(
	owner, account string,
	repo domain.BalanceRepository,
	tokens domain.TokenTransfer,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *PoolService {
	return &PoolService{
		owner:     owner,
		account:   account,
		repo:      repo,
		tokens:    tokens,
		publisher: publisher,
		logger:    logger.With("module", "pool_service"),
	}
}

// Account 返回池的托管账户地址
func (s *PoolService) Account() string { return s.account }

// OptionTrigger 返回当前绑定的触发器地址
func (s *PoolService) OptionTrigger() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trigger
}

// SetOptionTrigger 绑定唯一可信的期权触发器地址，仅池 owner 可调用
func (s *PoolService) SetOptionTrigger(ctx context.Context, caller, trigger string) error {
	if caller != s.owner {
		return domain.ErrUnauthorized
	}
	if trigger == "" {
		return domain.ErrInvalidAddress
	}

	s.mu.Lock()
	s.trigger = trigger
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "option trigger bound", "trigger", trigger)
	return nil
}

func (s *PoolService) requireTrigger(caller string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trigger == "" || caller != s.trigger {
		return domain.ErrInvalidCaller
	}
	return nil
}

// LockCollateral 从卖方拉取抵押品入池，一次性扣除协议手续费
// 返回净锁定量与手续费；锁定量与手续费的会计在此入口内原子完成
func (s *PoolService) LockCollateral(ctx context.Context, caller, from, token string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := s.requireTrigger(caller); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if from == "" || token == "" {
		return decimal.Zero, decimal.Zero, domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, domain.ErrInvalidAmount
	}

	if err := s.tokens.TransferFrom(ctx, token, s.account, from, s.account, amount); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("collateral pull failed: %w", err)
	}

	fee := amount.Mul(domain.FeeRate)
	net := amount.Sub(fee)

	bal, err := s.getOrNew(ctx, token)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	bal.Lock(net, fee)
	if err := s.repo.Save(ctx, bal); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	s.publish(ctx, token, domain.LockedAmountEvent{
		Token:     token,
		Amount:    net,
		NewLocked: bal.Locked,
		Timestamp: time.Now(),
	})

	s.logger.InfoContext(ctx, "collateral locked", "token", token, "from", from, "net", net, "fee", fee)
	return net, fee, nil
}

// UnlockCollateral 将锁定余额转入可用余额
func (s *PoolService) UnlockCollateral(ctx context.Context, caller, token string, amount decimal.Decimal) error {
	if err := s.requireTrigger(caller); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	bal, err := s.getOrNew(ctx, token)
	if err != nil {
		return err
	}
	if err := bal.Unlock(amount); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, bal); err != nil {
		return err
	}

	s.publish(ctx, token, domain.UnlockedAmountEvent{
		Token:     token,
		Amount:    amount,
		NewLocked: bal.Locked,
		Timestamp: time.Now(),
	})

	s.logger.InfoContext(ctx, "collateral unlocked", "token", token, "amount", amount)
	return nil
}

// SettleExercise 行权交割：从买方拉取行权款给卖方，同时把已解锁的抵押品推给买方
// 两笔转账与可用余额扣减在同一调用内完成，任一失败整体失败
func (s *PoolService) SettleExercise(
	ctx context.Context,
	caller string,
	payer, recipient, payee string,
	paymentToken string, paymentAmount decimal.Decimal,
	collateralToken string, collateralAmount decimal.Decimal,
) error {
	if err := s.requireTrigger(caller); err != nil {
		return err
	}
	if payer == "" || recipient == "" || payee == "" || paymentToken == "" || collateralToken == "" {
		return domain.ErrInvalidAddress
	}
	if paymentAmount.Sign() <= 0 || collateralAmount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	bal, err := s.getOrNew(ctx, collateralToken)
	if err != nil {
		return err
	}
	if err := bal.Debit(collateralAmount); err != nil {
		return err
	}

	if err := s.tokens.TransferFrom(ctx, paymentToken, s.account, payer, recipient, paymentAmount); err != nil {
		return fmt.Errorf("strike payment failed: %w", err)
	}
	if err := s.tokens.Transfer(ctx, collateralToken, s.account, payee, collateralAmount); err != nil {
		return fmt.Errorf("collateral delivery failed: %w", err)
	}

	if err := s.repo.Save(ctx, bal); err != nil {
		return err
	}

	s.publish(ctx, collateralToken, domain.TransferedAmountEvent{
		Token:     collateralToken,
		Amount:    collateralAmount,
		Timestamp: time.Now(),
	})

	s.logger.InfoContext(ctx, "exercise settled",
		"payer", payer, "payee", payee,
		"payment_token", paymentToken, "payment_amount", paymentAmount,
		"collateral_token", collateralToken, "collateral_amount", collateralAmount,
	)
	return nil
}

// RefundCollateral 完整回退一次锁仓：释放净锁定量、回冲手续费，并把全额抵押品退还卖方
// 仅对从未售出的期权使用
func (s *PoolService) RefundCollateral(ctx context.Context, caller, token, to string, net, fee decimal.Decimal) error {
	if err := s.requireTrigger(caller); err != nil {
		return err
	}
	if token == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if net.Sign() <= 0 || fee.Sign() < 0 {
		return domain.ErrInvalidAmount
	}

	bal, err := s.getOrNew(ctx, token)
	if err != nil {
		return err
	}
	if err := bal.Unlock(net); err != nil {
		return err
	}
	if err := bal.Debit(net); err != nil {
		return err
	}
	if err := bal.RefundFee(fee); err != nil {
		return err
	}

	gross := net.Add(fee)
	if err := s.tokens.Transfer(ctx, token, s.account, to, gross); err != nil {
		return fmt.Errorf("collateral refund failed: %w", err)
	}
	if err := s.repo.Save(ctx, bal); err != nil {
		return err
	}

	s.publish(ctx, token, domain.UnlockedAmountEvent{
		Token:     token,
		Amount:    net,
		NewLocked: bal.Locked,
		Timestamp: time.Now(),
	})
	s.publish(ctx, token, domain.TransferedAmountEvent{
		Token:     token,
		Amount:    gross,
		Timestamp: time.Now(),
	})

	s.logger.InfoContext(ctx, "collateral refunded", "token", token, "to", to, "net", net, "fee", fee)
	return nil
}

// TransferTo 把已解锁的池内资金转出给指定账户（取消期权时退还卖方）
func (s *PoolService) TransferTo(ctx context.Context, caller, token, to string, amount decimal.Decimal) error {
	if err := s.requireTrigger(caller); err != nil {
		return err
	}
	if token == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	bal, err := s.getOrNew(ctx, token)
	if err != nil {
		return err
	}
	if err := bal.Debit(amount); err != nil {
		return err
	}

	if err := s.tokens.Transfer(ctx, token, s.account, to, amount); err != nil {
		return fmt.Errorf("pool transfer failed: %w", err)
	}
	if err := s.repo.Save(ctx, bal); err != nil {
		return err
	}

	s.publish(ctx, token, domain.TransferedAmountEvent{
		Token:     token,
		Amount:    amount,
		Timestamp: time.Now(),
	})
	return nil
}

// TransferErc20 以被授权代扣方身份在两个外部账户之间划转（权利金支付）
// 不触碰池的锁定/可用会计
func (s *PoolService) TransferErc20(ctx context.Context, caller, from, token, to string, amount decimal.Decimal) error {
	if err := s.requireTrigger(caller); err != nil {
		return err
	}
	if from == "" || token == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	return s.tokens.TransferFrom(ctx, token, s.account, from, to, amount)
}

// GetLockedAmount 查询锁定余额，未知代币返回零
func (s *PoolService) GetLockedAmount(ctx context.Context, token string) (decimal.Decimal, error) {
	bal, err := s.repo.Get(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	if bal == nil {
		return decimal.Zero, nil
	}
	return bal.Locked, nil
}

// GetUnlockedAmount 查询可用余额，未知代币返回零
func (s *PoolService) GetUnlockedAmount(ctx context.Context, token string) (decimal.Decimal, error) {
	bal, err := s.repo.Get(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	if bal == nil {
		return decimal.Zero, nil
	}
	return bal.Unlocked, nil
}

// GetFees 查询累计手续费，未知代币返回零
func (s *PoolService) GetFees(ctx context.Context, token string) (decimal.Decimal, error) {
	bal, err := s.repo.Get(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	if bal == nil {
		return decimal.Zero, nil
	}
	return bal.Fees, nil
}

func (s *PoolService) getOrNew(ctx context.Context, token string) (*domain.TokenBalance, error) {
	bal, err := s.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = domain.NewTokenBalance(token)
	}
	return bal, nil
}

func (s *PoolService) publish(ctx context.Context, key string, event any) {
	if s.publisher == nil {
		return
	}
	// 事件仅供链下观察者消费，发布失败不阻断结算
	if err := s.publisher.Publish(ctx, domain.TopicPoolEvents, key, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish pool event", "error", err)
	}
}
