// Package mysql 期权记录的 MySQL 持久化实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/optionstrading/internal/option/domain"
	"github.com/wyfcoding/optionstrading/pkg/db"
)

// OptionRepositoryImpl 期权仓储实现
type OptionRepositoryImpl struct {
	db *gorm.DB
}

// NewOptionRepository 创建期权仓储
func NewOptionRepository(gdb *gorm.DB) *OptionRepositoryImpl {
	return &OptionRepositoryImpl{db: gdb}
}

func (r *OptionRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Create 创建期权记录，写入后回填自增 ID
func (r *OptionRepositoryImpl) Create(ctx context.Context, option *domain.Option) error {
	if err := r.getDB(ctx).Create(option).Error; err != nil {
		return fmt.Errorf("failed to create option: %w", err)
	}
	return nil
}

// Update 更新期权记录
func (r *OptionRepositoryImpl) Update(ctx context.Context, option *domain.Option) error {
	if err := r.getDB(ctx).Save(option).Error; err != nil {
		return fmt.Errorf("failed to update option: %w", err)
	}
	return nil
}

// Get 按 ID 查询期权，不存在时返回 nil
func (r *OptionRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Option, error) {
	var opt domain.Option
	err := r.getDB(ctx).First(&opt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return &opt, nil
}

// GetAll 查询全部期权，按创建顺序排列
func (r *OptionRepositoryImpl) GetAll(ctx context.Context) ([]*domain.Option, error) {
	var opts []*domain.Option
	if err := r.getDB(ctx).Order("id asc").Find(&opts).Error; err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	return opts, nil
}

// AddHolding 记录地址与期权的持仓关系
func (r *OptionRepositoryImpl) AddHolding(ctx context.Context, holding *domain.OptionHolding) error {
	if err := r.getDB(ctx).Create(holding).Error; err != nil {
		return fmt.Errorf("failed to add option holding: %w", err)
	}
	return nil
}

// GetByHolder 按持仓角色查询某地址关联的期权
func (r *OptionRepositoryImpl) GetByHolder(ctx context.Context, holder string, role domain.HoldingRole) ([]*domain.Option, error) {
	var opts []*domain.Option
	err := r.getDB(ctx).
		Joins("JOIN option_holdings ON option_holdings.option_id = options.id").
		Where("option_holdings.holder = ? AND option_holdings.role = ?", holder, role).
		Order("options.id asc").
		Find(&opts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holder options: %w", err)
	}
	return opts, nil
}
