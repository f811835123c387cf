package testsupport

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	optionapp "github.com/wyfcoding/optionstrading/internal/option/application"
	poolapp "github.com/wyfcoding/optionstrading/internal/pool/application"
	"github.com/wyfcoding/optionstrading/internal/swap"
	tokenapp "github.com/wyfcoding/optionstrading/internal/token/application"
)

// 测试环境固定账户
const (
	Owner          = "0xPoolOwner"
	PoolAccount    = "0xErc20Pool"
	TriggerAccount = "0xOptionTrigger"
	LenderAccount  = "0xFlashLender"
	SwapAccount    = "0xSwapRouter"
)

// PublishedEvent 记录的已发布事件
type PublishedEvent struct {
	Topic string
	Key   string
	Event any
}

// RecordingPublisher 把事件记在内存里供断言
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// Publish 记录事件
func (p *RecordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

// All 返回全部已记录事件
func (p *RecordingPublisher) All() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ForTopic 返回指定主题下的事件
func (p *RecordingPublisher) ForTopic(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// World 一套完整接线的协议环境
type World struct {
	Store   *Store
	Events  *RecordingPublisher
	Tokens  *tokenapp.TokenService
	Pool    *poolapp.PoolService
	Lender  *flashloan.TokenLender
	Swapper *swap.FixedRateSwapper
	Options *optionapp.OptionService
}

// NewWorld 组装全套服务，触发器已绑定到资金池
func NewWorld() *World {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewStore()
	events := &RecordingPublisher{}

	tokens := tokenapp.NewTokenService(store.TokenLedger(), logger)
	pool := poolapp.NewPoolService(Owner, PoolAccount, store.PoolBalances(), tokens, events, logger)
	if err := pool.SetOptionTrigger(context.Background(), Owner, TriggerAccount); err != nil {
		panic(err)
	}

	lender := flashloan.NewTokenLender(LenderAccount, tokens, logger)
	swapper := swap.NewFixedRateSwapper(SwapAccount, tokens, logger)
	options := optionapp.NewOptionService(
		TriggerAccount, store.Options(), pool, lender, swapper, events, store, nil, nil, logger)

	return &World{
		Store:   store,
		Events:  events,
		Tokens:  tokens,
		Pool:    pool,
		Lender:  lender,
		Swapper: swapper,
		Options: options,
	}
}
