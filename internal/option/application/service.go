// Package application 期权生命周期应用服务
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	"github.com/wyfcoding/optionstrading/internal/option/domain"
	"github.com/wyfcoding/optionstrading/internal/swap"
	"github.com/wyfcoding/optionstrading/pkg/cache"
	"github.com/wyfcoding/optionstrading/pkg/metrics"
)

const optionCacheTTL = 5 * time.Minute

// TxManager 事务边界，fn 内的所有仓储操作要么全部提交要么全部回滚
type TxManager interface {
	WithTxContext(ctx context.Context, fn func(ctx context.Context) error) error
}

// OptionService 期权状态机服务
// account 是本服务在代币账本中的地址，也是资金池注册的唯一可信触发器
type OptionService struct {
	account string

	repo      domain.OptionRepository
	pool      domain.CollateralPool
	lender    flashloan.Lender
	swapper   swap.Swapper
	publisher domain.EventPublisher
	tx        TxManager
	cache     *cache.RedisCache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// 闪电行权会在事务中途把控制权交给外部出借方，
	// 同一期权的并发结算用该标记拒绝而不是排队
	mu       sync.Mutex
	inFlight map[uint]struct{}
}

// NewOptionService 创建期权服务
func NewOptionService(
	account string,
	repo domain.OptionRepository,
	pool domain.CollateralPool,
	lender flashloan.Lender,
	swapper swap.Swapper,
	publisher domain.EventPublisher,
	tx TxManager,
	rc *cache.RedisCache,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OptionService {
	return &OptionService{
		account:   account,
		repo:      repo,
		pool:      pool,
		lender:    lender,
		swapper:   swapper,
		publisher: publisher,
		tx:        tx,
		cache:     rc,
		metrics:   m,
		logger:    logger.With("module", "option_service"),
		inFlight:  make(map[uint]struct{}),
	}
}

// Account 返回服务的触发器地址
func (s *OptionService) Account() string { return s.account }

func (s *OptionService) beginSettlement(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return domain.ErrOptionBusy
	}
	s.inFlight[id] = struct{}{}
	return nil
}

func (s *OptionService) endSettlement(id uint) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// SellOption 卖方挂出期权，抵押品入池并扣除协议手续费
// 期权记录的 Amount 为净抵押量
func (s *OptionService) SellOption(
	ctx context.Context,
	seller string,
	strike, amount, premium decimal.Decimal,
	period time.Duration,
	paymentToken, optionToken string,
	optionType domain.OptionType,
) (*domain.Option, error) {
	if seller == "" || paymentToken == "" || optionToken == "" {
		return nil, domain.ErrInvalidAddress
	}
	if err := domain.ValidateTerms(strike, amount, premium, period); err != nil {
		return nil, err
	}

	var opt *domain.Option
	err := s.tx.WithTxContext(ctx, func(ctx context.Context) error {
		net, fee, err := s.pool.LockCollateral(ctx, s.account, seller, optionToken, amount)
		if err != nil {
			return err
		}

		opt = domain.NewOption(seller, strike, net, fee, premium, period, paymentToken, optionToken, optionType, time.Now())
		if err := s.repo.Create(ctx, opt); err != nil {
			return err
		}
		return s.repo.AddHolding(ctx, &domain.OptionHolding{
			Holder:   seller,
			Role:     domain.RoleSeller,
			OptionID: opt.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, opt.ID, domain.OptionCreatedEvent{
		OptionID:  opt.ID,
		Seller:    seller,
		Type:      opt.Type,
		Timestamp: time.Now(),
	})
	if s.metrics != nil {
		s.metrics.OptionsCreatedTotal.Inc()
		s.metrics.OptionsOutstanding.Inc()
	}

	s.logger.InfoContext(ctx, "option created",
		"option_id", opt.ID, "seller", seller, "type", opt.Type.String(),
		"strike", strike, "net_amount", opt.Amount, "fee", opt.Fee, "end_date", opt.EndDate)
	return opt, nil
}

// BuyOption 买入期权，权利金直接从买方付给卖方，不经过抵押品会计
func (s *OptionService) BuyOption(ctx context.Context, buyer string, id uint, paymentToken string, premium decimal.Decimal) (*domain.Option, error) {
	if buyer == "" {
		return nil, domain.ErrInvalidAddress
	}

	var opt *domain.Option
	err := s.tx.WithTxContext(ctx, func(ctx context.Context) error {
		var err error
		opt, err = s.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if err := opt.Lock(buyer, paymentToken, premium); err != nil {
			return err
		}
		if err := s.pool.TransferErc20(ctx, s.account, buyer, paymentToken, opt.Seller, premium); err != nil {
			return fmt.Errorf("premium payment failed: %w", err)
		}
		if err := s.repo.Update(ctx, opt); err != nil {
			return err
		}
		return s.repo.AddHolding(ctx, &domain.OptionHolding{
			Holder:   buyer,
			Role:     domain.RoleBuyer,
			OptionID: opt.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.publish(ctx, id, domain.OptionLockedEvent{OptionID: id, Buyer: buyer, Timestamp: time.Now()})
	if s.metrics != nil {
		s.metrics.OptionsBoughtTotal.Inc()
	}

	s.logger.InfoContext(ctx, "option bought", "option_id", id, "buyer", buyer, "premium", premium)
	return opt, nil
}

// ExerciseOption 买方在到期前行权
// amount 必须与期权记录的净抵押量一致
func (s *OptionService) ExerciseOption(ctx context.Context, caller string, id uint, paymentToken string, amount decimal.Decimal) (*domain.Option, error) {
	if err := s.beginSettlement(id); err != nil {
		return nil, err
	}
	defer s.endSettlement(id)

	var opt *domain.Option
	err := s.tx.WithTxContext(ctx, func(ctx context.Context) error {
		var err error
		opt, err = s.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if err := opt.CheckExercisable(caller, paymentToken, amount, time.Now()); err != nil {
			return err
		}
		return s.settle(ctx, opt)
	})
	if err != nil {
		return nil, err
	}

	s.afterExercise(ctx, id)
	if s.metrics != nil {
		s.metrics.OptionsExercisedTotal.Inc()
	}
	s.logger.InfoContext(ctx, "option exercised", "option_id", id, "buyer", caller)
	return opt, nil
}

// ExerciseOptionFlashLoan 闪电行权
// 行权款由出借方垫付，买方收到的抵押品换成支付代币后偿还本金加出借手续费，
// 整个序列在同一事务内，任何一步失败全部回滚
func (s *OptionService) ExerciseOptionFlashLoan(ctx context.Context, caller string, id uint, paymentToken string, amount decimal.Decimal) (*domain.Option, error) {
	if err := s.beginSettlement(id); err != nil {
		return nil, err
	}
	defer s.endSettlement(id)

	var opt *domain.Option
	err := s.tx.WithTxContext(ctx, func(ctx context.Context) error {
		var err error
		opt, err = s.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if err := opt.CheckExercisable(caller, paymentToken, amount, time.Now()); err != nil {
			return err
		}

		strike := opt.Strike
		owed := strike.Add(s.lender.Fee(strike))

		return s.lender.Advance(ctx, caller, paymentToken, strike, func(ctx context.Context) error {
			if err := s.settle(ctx, opt); err != nil {
				return err
			}
			// 把到手的抵押品换成支付代币，至少要覆盖还款额
			if _, err := s.swapper.Swap(ctx, caller, opt.OptionToken, paymentToken, opt.Amount, owed); err != nil {
				return err
			}
			if err := s.pool.TransferErc20(ctx, s.account, caller, paymentToken, s.lender.Account(), owed); err != nil {
				return fmt.Errorf("flash repayment failed: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterExercise(ctx, id)
	if s.metrics != nil {
		s.metrics.OptionsExercisedTotal.Inc()
		s.metrics.FlashLoanExercises.Inc()
	}
	s.logger.InfoContext(ctx, "option exercised via flash advance", "option_id", id, "buyer", caller)
	return opt, nil
}

// settle 状态先行提交，再驱动资金池放款
// 外部出借方在闪电路径上拿到控制权时，期权已处于终态，嵌套调用无法重复结算
func (s *OptionService) settle(ctx context.Context, opt *domain.Option) error {
	if err := opt.Exercise(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, opt); err != nil {
		return err
	}

	if err := s.pool.UnlockCollateral(ctx, s.account, opt.OptionToken, opt.Amount); err != nil {
		return err
	}
	return s.pool.SettleExercise(ctx, s.account,
		opt.Buyer, opt.Seller, opt.Buyer,
		opt.PaymentToken, opt.Strike,
		opt.OptionToken, opt.Amount,
	)
}

func (s *OptionService) afterExercise(ctx context.Context, id uint) {
	s.invalidate(ctx, id)
	s.publish(ctx, id, domain.OptionExecutedEvent{OptionID: id, Timestamp: time.Now()})
	if s.metrics != nil {
		s.metrics.OptionsOutstanding.Dec()
	}
}

// CancelOption 卖方在售出前撤回期权，抵押品连同手续费全额退还
func (s *OptionService) CancelOption(ctx context.Context, caller string, id uint) (*domain.Option, error) {
	if err := s.beginSettlement(id); err != nil {
		return nil, err
	}
	defer s.endSettlement(id)

	var opt *domain.Option
	err := s.tx.WithTxContext(ctx, func(ctx context.Context) error {
		var err error
		opt, err = s.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if err := opt.Cancel(caller); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, opt); err != nil {
			return err
		}
		return s.pool.RefundCollateral(ctx, s.account, opt.OptionToken, opt.Seller, opt.Amount, opt.Fee)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.publish(ctx, id, domain.OptionCanceledEvent{OptionID: id, Timestamp: time.Now()})
	if s.metrics != nil {
		s.metrics.OptionsCanceledTotal.Inc()
		s.metrics.OptionsOutstanding.Dec()
	}

	s.logger.InfoContext(ctx, "option canceled", "option_id", id, "seller", caller)
	return opt, nil
}

// GetOption 查询单个期权，带 redis 读穿缓存
func (s *OptionService) GetOption(ctx context.Context, id uint) (*domain.Option, error) {
	if s.cache != nil {
		var cached domain.Option
		if err := s.cache.GetJSON(ctx, optionCacheKey(id), &cached); err == nil && cached.ID != 0 {
			return &cached, nil
		}
	}

	opt, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, optionCacheKey(id), opt, optionCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache option", "option_id", id, "error", err)
		}
	}
	return opt, nil
}

// GetAllOptions 查询全部期权
func (s *OptionService) GetAllOptions(ctx context.Context) ([]*domain.Option, error) {
	return s.repo.GetAll(ctx)
}

// GetSellerOptions 查询某地址卖出的期权
func (s *OptionService) GetSellerOptions(ctx context.Context, seller string) ([]*domain.Option, error) {
	return s.repo.GetByHolder(ctx, seller, domain.RoleSeller)
}

// GetBuyerOptions 查询某地址买入的期权
func (s *OptionService) GetBuyerOptions(ctx context.Context, buyer string) ([]*domain.Option, error) {
	return s.repo.GetByHolder(ctx, buyer, domain.RoleBuyer)
}

func (s *OptionService) mustGet(ctx context.Context, id uint) (*domain.Option, error) {
	opt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if opt == nil {
		return nil, domain.ErrNotFound
	}
	return opt, nil
}

func optionCacheKey(id uint) string {
	return fmt.Sprintf("option:%d", id)
}

func (s *OptionService) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, optionCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate option cache", "option_id", id, "error", err)
	}
}

func (s *OptionService) publish(ctx context.Context, id uint, event any) {
	if s.publisher == nil {
		return
	}
	// 事件是只追加的观察流，正确性不依赖消费方
	if err := s.publisher.Publish(ctx, domain.TopicOptionEvents, fmt.Sprintf("%d", id), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish option event", "option_id", id, "error", err)
	}
}
