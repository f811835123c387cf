// Package testsupport 测试用的内存实现
// Store 同时充当代币账本、资金池余额与期权记录的仓储，
// 事务通过整库快照加回滚模拟，保证失败路径的全有或全无语义。
package testsupport

import (
	"context"
	"sync"

	optiondomain "github.com/wyfcoding/optionstrading/internal/option/domain"
	pooldomain "github.com/wyfcoding/optionstrading/internal/pool/domain"
	tokendomain "github.com/wyfcoding/optionstrading/internal/token/domain"
)

type storeState struct {
	balances     map[string]*tokendomain.Balance
	allowances   map[string]*tokendomain.Allowance
	poolBalances map[string]*pooldomain.TokenBalance
	options      map[uint]*optiondomain.Option
	holdings     []*optiondomain.OptionHolding
	nextOptionID uint
	nextRowID    uint
}

func newStoreState() *storeState {
	return &storeState{
		balances:     make(map[string]*tokendomain.Balance),
		allowances:   make(map[string]*tokendomain.Allowance),
		poolBalances: make(map[string]*pooldomain.TokenBalance),
		options:      make(map[uint]*optiondomain.Option),
		nextOptionID: 1,
		nextRowID:    1,
	}
}

func (s *storeState) clone() *storeState {
	c := newStoreState()
	c.nextOptionID = s.nextOptionID
	c.nextRowID = s.nextRowID
	for k, v := range s.balances {
		cp := *v
		c.balances[k] = &cp
	}
	for k, v := range s.allowances {
		cp := *v
		c.allowances[k] = &cp
	}
	for k, v := range s.poolBalances {
		cp := *v
		c.poolBalances[k] = &cp
	}
	for k, v := range s.options {
		cp := *v
		c.options[k] = &cp
	}
	c.holdings = make([]*optiondomain.OptionHolding, len(s.holdings))
	for i, h := range s.holdings {
		cp := *h
		c.holdings[i] = &cp
	}
	return c
}

// Store 内存仓储，各上下文的仓储视图共享同一份状态
type Store struct {
	mu    sync.Mutex
	state *storeState
}

// NewStore 创建空仓储
func NewStore() *Store {
	return &Store{state: newStoreState()}
}

// TokenLedger 代币账本仓储视图
func (s *Store) TokenLedger() tokendomain.LedgerRepository { return &tokenRepo{s} }

// PoolBalances 资金池余额仓储视图
func (s *Store) PoolBalances() pooldomain.BalanceRepository { return &poolRepo{s} }

// Options 期权仓储视图
func (s *Store) Options() optiondomain.OptionRepository { return &optionRepo{s} }

// WithTxContext 整库快照事务，fn 出错时回滚到快照
func (s *Store) WithTxContext(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) nextRow() uint {
	id := s.state.nextRowID
	s.state.nextRowID++
	return id
}

func balanceKey(token, holder string) string { return token + "/" + holder }

func allowanceKey(token, owner, spender string) string { return token + "/" + owner + "/" + spender }

type tokenRepo struct{ s *Store }

func (r *tokenRepo) GetBalance(ctx context.Context, token, holder string) (*tokendomain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.state.balances[balanceKey(token, holder)]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *tokenRepo) SaveBalance(ctx context.Context, balance *tokendomain.Balance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if balance.ID == 0 {
		balance.ID = r.s.nextRow()
	}
	cp := *balance
	r.s.state.balances[balanceKey(balance.Token, balance.Holder)] = &cp
	return nil
}

func (r *tokenRepo) GetAllowance(ctx context.Context, token, owner, spender string) (*tokendomain.Allowance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.state.allowances[allowanceKey(token, owner, spender)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r *tokenRepo) SaveAllowance(ctx context.Context, allowance *tokendomain.Allowance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if allowance.ID == 0 {
		allowance.ID = r.s.nextRow()
	}
	cp := *allowance
	r.s.state.allowances[allowanceKey(allowance.Token, allowance.Owner, allowance.Spender)] = &cp
	return nil
}

type poolRepo struct{ s *Store }

func (r *poolRepo) Get(ctx context.Context, token string) (*pooldomain.TokenBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.state.poolBalances[token]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *poolRepo) Save(ctx context.Context, balance *pooldomain.TokenBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if balance.ID == 0 {
		balance.ID = r.s.nextRow()
	}
	cp := *balance
	r.s.state.poolBalances[balance.Token] = &cp
	return nil
}

type optionRepo struct{ s *Store }

func (r *optionRepo) Create(ctx context.Context, option *optiondomain.Option) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	option.ID = r.s.state.nextOptionID
	r.s.state.nextOptionID++
	cp := *option
	r.s.state.options[option.ID] = &cp
	return nil
}

func (r *optionRepo) Update(ctx context.Context, option *optiondomain.Option) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *option
	r.s.state.options[option.ID] = &cp
	return nil
}

func (r *optionRepo) Get(ctx context.Context, id uint) (*optiondomain.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.state.options[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *optionRepo) GetAll(ctx context.Context) ([]*optiondomain.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*optiondomain.Option, 0, len(r.s.state.options))
	for id := uint(1); id < r.s.state.nextOptionID; id++ {
		if o, ok := r.s.state.options[id]; ok {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *optionRepo) AddHolding(ctx context.Context, holding *optiondomain.OptionHolding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if holding.ID == 0 {
		holding.ID = r.s.nextRow()
	}
	cp := *holding
	r.s.state.holdings = append(r.s.state.holdings, &cp)
	return nil
}

func (r *optionRepo) GetByHolder(ctx context.Context, holder string, role optiondomain.HoldingRole) ([]*optiondomain.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*optiondomain.Option
	for _, h := range r.s.state.holdings {
		if h.Holder != holder || h.Role != role {
			continue
		}
		if o, ok := r.s.state.options[h.OptionID]; ok {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}
