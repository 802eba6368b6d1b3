package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"meridian/internal/book"
	"meridian/internal/merrors"
	"meridian/internal/order"
	"meridian/internal/telemetry"
)

// journalCapacity bounds the rolling trade history kept in memory.
const journalCapacity = 10000

// metricsLogInterval periodically logs aggregate latency figures and
// resets the latency sample.
const metricsLogInterval = 1000

// CallbackHandle identifies a registered TradeCallback for later
// removal via UnregisterTradeCallback.
type CallbackHandle uint64

// Engine is the matching core for every symbol it has seen an order
// for. One coarse-grained mutex serializes all access; per-symbol
// locking would raise throughput but complicates cross-symbol
// statistics and the trade journal, so it stays out until profiling
// says otherwise.
type Engine struct {
	mu sync.Mutex

	books   map[string]*book.OrderBook
	journal *journal

	callbacks  map[CallbackHandle]TradeCallback
	nextHandle CallbackHandle
	stats      Statistics
	latencies  []float64
}

// New creates an empty engine with no symbols registered yet; order
// books are created lazily on first submission per symbol. The trade
// journal is sized to journalCapacity; use NewWithCapacity to override.
func New() *Engine {
	return NewWithCapacity(journalCapacity)
}

// NewWithCapacity is New with an explicit trade journal ring buffer
// size, for callers wiring it to config.Config.JournalCapacity.
func NewWithCapacity(capacity int) *Engine {
	return &Engine{
		books:     make(map[string]*book.OrderBook),
		journal:   newJournal(capacity),
		callbacks: make(map[CallbackHandle]TradeCallback),
	}
}

// Submit validates and processes an order, returning its final state and
// any trades it generated. The order's own Status/Filled fields are
// mutated in place.
func (e *Engine) Submit(o *order.Order) (Result, error) {
	start := time.Now()

	if err := o.Validate(); err != nil {
		return Result{}, err
	}

	telemetry.WithOrder(log.Info(), o.Symbol, o.ID.String()).
		Str(telemetry.FieldOrderType, o.Type.String()).
		Str(telemetry.FieldSide, o.Side.String()).
		Str("quantity", o.Quantity.String()).
		Msg("order submitted")

	e.mu.Lock()
	defer e.mu.Unlock()

	o.ExchTimestamp = time.Now().UTC()
	ob := e.getOrCreateBook(o.Symbol)

	var (
		trades []order.Trade
		err    error
	)
	switch o.Type {
	case order.Market:
		trades, err = e.processMarket(o, ob)
	case order.Limit:
		trades, err = e.processLimit(o, ob)
	case order.IOC:
		trades, err = e.processIOC(o, ob)
	case order.FOK:
		trades, err = e.processFOK(o, ob)
	default:
		err = fmt.Errorf("%w: unsupported order type %s", merrors.ErrInvalidOrder, o.Type)
	}
	if err != nil {
		return Result{}, err
	}

	e.stats.OrdersProcessed++
	switch {
	case o.IsFullyFilled():
		e.stats.OrdersFilled++
	case o.Filled.Sign() > 0:
		e.stats.OrdersPartial++
	case o.Status == order.Cancelled:
		e.stats.OrdersCancelled++
	}

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	e.recordLatency(latencyMs)
	if e.stats.OrdersProcessed%metricsLogInterval == 0 {
		e.logPerformanceMetrics()
	}

	return Result{
		Order:     o,
		Trades:    trades,
		Message:   generateResultMessage(o, trades),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Cancel removes a resting order from its book. Fails with
// ErrOrderNotFound if the symbol has no book, the order is unknown, or
// the order is no longer resting (already filled, cancelled, or never
// rested in the first place).
func (e *Engine) Cancel(symbol string, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[symbol]
	if !ok {
		return fmt.Errorf("%w: no order book for symbol %s", merrors.ErrOrderNotFound, symbol)
	}
	o, ok := ob.DetachFromBook(id)
	if !ok {
		return fmt.Errorf("%w: order %s", merrors.ErrOrderNotFound, id)
	}
	o.Status = order.Cancelled

	telemetry.WithOrder(log.Info(), symbol, id.String()).Msg("order cancelled")
	return nil
}

// GetOrderStatus returns the current state of an order, resting or not.
func (e *Engine) GetOrderStatus(symbol string, id uuid.UUID) (*order.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[symbol]
	if !ok {
		return nil, false
	}
	return ob.Get(id)
}

// GetOrderBook returns the order book for symbol, if one has been
// created.
func (e *Engine) GetOrderBook(symbol string) (*book.OrderBook, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[symbol]
	return ob, ok
}

// RegisterTradeCallback subscribes cb to every future trade execution,
// across all symbols. Returns a handle for UnregisterTradeCallback.
func (e *Engine) RegisterTradeCallback(cb TradeCallback) CallbackHandle {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextHandle++
	h := e.nextHandle
	e.callbacks[h] = cb

	log.Info().Int("total_callbacks", len(e.callbacks)).Msg("registered trade callback")
	return h
}

// UnregisterTradeCallback removes a previously registered callback. A
// stale or unknown handle is a no-op.
func (e *Engine) UnregisterTradeCallback(h CallbackHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.callbacks, h)
	log.Info().Int("total_callbacks", len(e.callbacks)).Msg("unregistered trade callback")
}

func (e *Engine) notifyCallbacks(trade order.Trade, takerID uuid.UUID) {
	for handle, cb := range e.callbacks {
		safeInvoke(handle, cb, trade, takerID)
	}
}

func safeInvoke(handle CallbackHandle, cb TradeCallback, trade order.Trade, takerID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Uint64("handle", uint64(handle)).
				Str("trade_id", trade.ID.String()).
				Interface("panic", r).
				Msg("trade callback panicked")
		}
	}()
	cb(trade, takerID)
}

// Statistics returns a snapshot of engine-wide counters and latency
// aggregates.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.stats
	if len(e.latencies) > 0 {
		stats.AvgLatencyMillis, stats.MaxLatencyMillis, stats.MinLatencyMillis = latencyAggregates(e.latencies)
	}
	return stats
}

// RecentTrades returns up to n of the most recently executed trades
// across all symbols, oldest first.
func (e *Engine) RecentTrades(n int) []order.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.journal.Recent(n)
}

func (e *Engine) getOrCreateBook(symbol string) *book.OrderBook {
	ob, ok := e.books[symbol]
	if ok {
		return ob
	}
	ob = book.New(symbol)
	e.books[symbol] = ob
	log.Info().Str("symbol", symbol).Msg("created new order book")
	return ob
}

func (e *Engine) recordLatency(ms float64) {
	e.latencies = append(e.latencies, ms)
}

func (e *Engine) logPerformanceMetrics() {
	if len(e.latencies) == 0 {
		return
	}
	avg, max, _ := latencyAggregates(e.latencies)
	log.Info().
		Uint64("orders_processed", e.stats.OrdersProcessed).
		Uint64("trades_executed", e.stats.TradesExecuted).
		Float64("avg_latency_ms", avg).
		Float64("max_latency_ms", max).
		Msg("performance metrics")
	e.latencies = nil
}

func latencyAggregates(samples []float64) (avg, max, min float64) {
	sum := 0.0
	max = samples[0]
	min = samples[0]
	for _, s := range samples {
		sum += s
		if s > max {
			max = s
		}
		if s < min {
			min = s
		}
	}
	return sum / float64(len(samples)), max, min
}
