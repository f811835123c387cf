// Package mysql 代币账本 MySQL 仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/optionstrading/internal/token/domain"
	"github.com/wyfcoding/optionstrading/pkg/db"
	"gorm.io/gorm"
)

type LedgerRepositoryImpl struct {
	db *gorm.DB
}

func NewLedgerRepository(gdb *gorm.DB) domain.LedgerRepository {
	return &LedgerRepositoryImpl{db: gdb}
}

func (r *LedgerRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *LedgerRepositoryImpl) GetBalance(ctx context.Context, token, holder string) (*domain.Balance, error) {
	var bal domain.Balance
	err := r.getDB(ctx).Where("token = ? AND holder = ?", token, holder).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

func (r *LedgerRepositoryImpl) SaveBalance(ctx context.Context, balance *domain.Balance) error {
	return r.getDB(ctx).Save(balance).Error
}

func (r *LedgerRepositoryImpl) GetAllowance(ctx context.Context, token, owner, spender string) (*domain.Allowance, error) {
	var allow domain.Allowance
	err := r.getDB(ctx).Where("token = ? AND owner = ? AND spender = ?", token, owner, spender).First(&allow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &allow, nil
}

func (r *LedgerRepositoryImpl) SaveAllowance(ctx context.Context, allowance *domain.Allowance) error {
	return r.getDB(ctx).Save(allowance).Error
}
