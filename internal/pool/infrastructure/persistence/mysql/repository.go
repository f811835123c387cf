// Package mysql 资金池余额的 MySQL 持久化实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/optionstrading/internal/pool/domain"
	"github.com/wyfcoding/optionstrading/pkg/db"
)

// BalanceRepositoryImpl 资金池余额仓储实现
type BalanceRepositoryImpl struct {
	db *gorm.DB
}

// NewBalanceRepository 创建资金池余额仓储
func NewBalanceRepository(gdb *gorm.DB) *BalanceRepositoryImpl {
	return &BalanceRepositoryImpl{db: gdb}
}

func (r *BalanceRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Get 按代币查询池余额，不存在时返回 nil
func (r *BalanceRepositoryImpl) Get(ctx context.Context, token string) (*domain.TokenBalance, error) {
	var bal domain.TokenBalance
	err := r.getDB(ctx).Where("token = ?", token).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool balance: %w", err)
	}
	return &bal, nil
}

// Save 保存池余额
func (r *BalanceRepositoryImpl) Save(ctx context.Context, bal *domain.TokenBalance) error {
	if err := r.getDB(ctx).Save(bal).Error; err != nil {
		return fmt.Errorf("failed to save pool balance: %w", err)
	}
	return nil
}
