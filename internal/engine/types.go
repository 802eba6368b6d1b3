// Package engine implements the matching core: one order book per
// symbol, price-time priority matching for all four order types, a
// bounded trade journal, and execution-callback fan-out, all serialized
// behind a single engine-wide mutex.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/order"
)

// Result is returned from Submit: the order's final state plus every
// trade it generated, with a short human-readable summary.
type Result struct {
	Order     *order.Order
	Trades    []order.Trade
	Message   string
	Timestamp time.Time
}

// TradeCallback is invoked synchronously, under the engine lock, for
// every trade executed. The taker order id is carried alongside the
// trade so a subscriber can correlate fills to the triggering
// submission without re-deriving aggressor identity from the trade
// alone.
type TradeCallback func(trade order.Trade, takerOrderID uuid.UUID)

// Statistics is a point-in-time snapshot of engine-wide counters.
type Statistics struct {
	OrdersProcessed  uint64
	TradesExecuted   uint64
	TotalVolume      decimal.Decimal
	OrdersFilled     uint64
	OrdersPartial    uint64
	OrdersCancelled  uint64
	OrdersRejected   uint64
	AvgLatencyMillis float64
	MaxLatencyMillis float64
	MinLatencyMillis float64
}

func generateResultMessage(o *order.Order, trades []order.Trade) string {
	switch {
	case o.IsFullyFilled():
		return "order fully filled"
	case o.Filled.Sign() > 0:
		return "order partially filled: " + o.Filled.String() + "/" + o.Quantity.String()
	case o.Status == order.Cancelled:
		return "order cancelled - no fill"
	case o.Status == order.Pending:
		return "order added to book"
	default:
		return "order processed"
	}
}
