// Package application 代币账本应用服务
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionstrading/internal/token/domain"
)

// TokenService 代币账本服务，提供 ERC-20 式的转账/授权语义
type TokenService struct {
	repo   domain.LedgerRepository
	logger *slog.Logger
}

// NewTokenService 创建代币账本服务
func NewTokenService(repo domain.LedgerRepository, logger *slog.Logger) *TokenService {
	return &TokenService{
		repo:   repo,
		logger: logger.With("module", "token_service"),
	}
}

// Mint 铸造代币到指定账户（测试抵押品发行入口）
func (s *TokenService) Mint(ctx context.Context, token, to string, amount decimal.Decimal) error {
	if token == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	bal, err := s.getOrNewBalance(ctx, token, to)
	if err != nil {
		return err
	}
	bal.Credit(amount)
	if err := s.repo.SaveBalance(ctx, bal); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens minted", "token", token, "to", to, "amount", amount)
	return nil
}

// BalanceOf 查询余额，未知账户返回零
func (s *TokenService) BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error) {
	bal, err := s.repo.GetBalance(ctx, token, holder)
	if err != nil {
		return decimal.Zero, err
	}
	if bal == nil {
		return decimal.Zero, nil
	}
	return bal.Amount, nil
}

// Allowance 查询授权额度，未授权返回零
func (s *TokenService) Allowance(ctx context.Context, token, owner, spender string) (decimal.Decimal, error) {
	allow, err := s.repo.GetAllowance(ctx, token, owner, spender)
	if err != nil {
		return decimal.Zero, err
	}
	if allow == nil {
		return decimal.Zero, nil
	}
	return allow.Amount, nil
}

// Approve 设置授权额度
func (s *TokenService) Approve(ctx context.Context, token, owner, spender string, amount decimal.Decimal) error {
	if token == "" || owner == "" || spender == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}

	allow, err := s.repo.GetAllowance(ctx, token, owner, spender)
	if err != nil {
		return err
	}
	if allow == nil {
		allow = &domain.Allowance{Token: token, Owner: owner, Spender: spender}
	}
	allow.Amount = amount

	return s.repo.SaveAllowance(ctx, allow)
}

// Transfer 直接转账
func (s *TokenService) Transfer(ctx context.Context, token, from, to string, amount decimal.Decimal) error {
	if token == "" || from == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	return s.move(ctx, token, from, to, amount)
}

// TransferFrom 代扣转账，消耗 owner 对 spender 的授权额度
func (s *TokenService) TransferFrom(ctx context.Context, token, spender, from, to string, amount decimal.Decimal) error {
	if token == "" || spender == "" || from == "" || to == "" {
		return domain.ErrInvalidAddress
	}
	if amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	allow, err := s.repo.GetAllowance(ctx, token, from, spender)
	if err != nil {
		return err
	}
	if allow == nil {
		return domain.ErrInsufficientAllowance
	}
	if err := allow.Spend(amount); err != nil {
		return err
	}
	if err := s.repo.SaveAllowance(ctx, allow); err != nil {
		return err
	}

	return s.move(ctx, token, from, to, amount)
}

func (s *TokenService) move(ctx context.Context, token, from, to string, amount decimal.Decimal) error {
	fromBal, err := s.repo.GetBalance(ctx, token, from)
	if err != nil {
		return err
	}
	if fromBal == nil {
		return domain.ErrInsufficientBalance
	}
	if err := fromBal.Debit(amount); err != nil {
		return err
	}

	toBal, err := s.getOrNewBalance(ctx, token, to)
	if err != nil {
		return err
	}
	toBal.Credit(amount)

	if err := s.repo.SaveBalance(ctx, fromBal); err != nil {
		return err
	}
	return s.repo.SaveBalance(ctx, toBal)
}

func (s *TokenService) getOrNewBalance(ctx context.Context, token, holder string) (*domain.Balance, error) {
	bal, err := s.repo.GetBalance(ctx, token, holder)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = &domain.Balance{Token: token, Holder: holder, Amount: decimal.Zero}
	}
	return bal, nil
}
