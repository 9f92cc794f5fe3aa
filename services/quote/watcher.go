package quote

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// State 报价状态机状态
type State string

const (
	StateIdle        State = "idle"
	StateTyping      State = "typing"
	StateFetching    State = "fetching"
	StateQuoted      State = "quoted"
	StateNoLiquidity State = "no_liquidity"
	StateError       State = "error"
)

// Update 状态机通知
type Update struct {
	State State
	// Quote 仅 StateQuoted 时携带
	Quote *types.SwapQuote
	// Err 仅 StateError 时携带
	Err error
}

// WatcherConfig 报价监视器配置
type WatcherConfig struct {
	SellToken common.Address
	BuyToken  common.Address
	Taker     common.Address
	// Decimals 输入金额按此精度转换为最小单位
	Decimals    uint8
	SlippageBps int
	FeeBps      int

	// Debounce 防抖窗口（默认 400ms）
	Debounce time.Duration
}

// Watcher 防抖报价监视器
//
// **状态机**：Idle → Typing（防抖）→ Fetching → {Quoted | NoLiquidity | Error}
//
// **取消语义**：
// - Fetching 期间的新输入使在途请求的结果失效：请求照常等待返回，
//   但到达时 AsOfAmount 与当前输入不一致就直接丢弃，不渲染
// - 取消是协作式的，只作用于报价请求，从不作用于已广播的交易
type Watcher struct {
	service  Service
	config   *WatcherConfig
	onUpdate func(Update)

	mu      sync.Mutex
	current string // 当前输入金额（十进制字符串）
	state   State
	timer   *time.Timer
	closed  bool
}

// NewWatcher 创建报价监视器
func NewWatcher(service Service, config *WatcherConfig, onUpdate func(Update)) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 400 * time.Millisecond
	}

	return &Watcher{
		service:  service,
		config:   config,
		onUpdate: onUpdate,
		state:    StateIdle,
	}
}

// SetInput 输入变化（每次按键调用）
//
// 进入 Typing 状态并重置防抖定时器；防抖窗口结束后仍未变化的输入
// 才会触发报价请求。
func (w *Watcher) SetInput(amount string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.current = amount

	if w.timer != nil {
		w.timer.Stop()
	}

	if amount == "" {
		w.state = StateIdle
		w.notify(Update{State: StateIdle})
		return
	}

	w.state = StateTyping
	w.notify(Update{State: StateTyping})

	w.timer = time.AfterFunc(w.config.Debounce, func() {
		w.fire(amount)
	})
}

// Close 停止监视器，之后的输入被忽略
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// State 当前状态
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// fire 防抖窗口结束，发起报价请求
func (w *Watcher) fire(amount string) {
	w.mu.Lock()
	if w.closed || amount != w.current {
		// 窗口期间输入又变了，这次触发作废
		w.mu.Unlock()
		return
	}

	sellAmount, err := utils.ParseDecimalAmount(amount, w.config.Decimals)
	if err != nil || sellAmount.Sign() == 0 {
		w.state = StateError
		w.notify(Update{
			State: StateError,
			Err:   types.NewError(types.ErrKindInvalidAmount, "invalid amount %q", amount),
		})
		w.mu.Unlock()
		return
	}

	w.state = StateFetching
	w.notify(Update{State: StateFetching})
	w.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		swapQuote, err := w.service.GetSwapQuote(ctx, &QuoteRequest{
			SellToken:   w.config.SellToken,
			BuyToken:    w.config.BuyToken,
			SellAmount:  sellAmount,
			Taker:       w.config.Taker,
			SlippageBps: w.config.SlippageBps,
			FeeBps:      w.config.FeeBps,
		})

		w.mu.Lock()
		defer w.mu.Unlock()

		if w.closed {
			return
		}

		// 过期结果检测：请求在途期间输入已变化则丢弃
		if w.isStale(amount) {
			return
		}

		if err != nil {
			w.state = StateError
			w.notify(Update{State: StateError, Err: err})
			return
		}

		if !swapQuote.LiquidityAvailable {
			w.state = StateNoLiquidity
			w.notify(Update{State: StateNoLiquidity})
			return
		}

		w.state = StateQuoted
		w.notify(Update{State: StateQuoted, Quote: swapQuote})
	}()
}

// isStale 检查报价对应的输入是否已过期（调用方持锁）
func (w *Watcher) isStale(asOfInput string) bool {
	return asOfInput != w.current
}

// notify 发出状态通知（调用方持锁；回调不得重入 Watcher）
func (w *Watcher) notify(update Update) {
	if w.onUpdate != nil {
		w.onUpdate(update)
	}
}
