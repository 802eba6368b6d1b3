package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"meridian/internal/book"
	"meridian/internal/order"
	"meridian/internal/telemetry"
)

// fokPlanStep is one leg of a Fill-Or-Kill execution plan: a maker to
// trade against and the quantity to take from it.
type fokPlanStep struct {
	maker *order.Order
	price decimal.Decimal
	qty   decimal.Decimal
}

func (e *Engine) processMarket(o *order.Order, ob *book.OrderBook) ([]order.Trade, error) {
	trades := e.fillAgainstBook(o, ob, nil)
	if err := ob.RegisterOnly(o); err != nil {
		return trades, err
	}
	if !o.IsFullyFilled() && len(trades) == 0 {
		o.Status = order.Cancelled
	}
	return trades, nil
}

func (e *Engine) processLimit(o *order.Order, ob *book.OrderBook) ([]order.Trade, error) {
	var trades []order.Trade
	if o.IsMarketable(ob.BestBid(), ob.BestAsk()) {
		price := o.Price
		trades = e.fillAgainstBook(o, ob, &price)
	}
	if o.IsFullyFilled() {
		if err := ob.RegisterOnly(o); err != nil {
			return trades, err
		}
		return trades, nil
	}
	if err := ob.Add(o); err != nil {
		return trades, err
	}
	return trades, nil
}

func (e *Engine) processIOC(o *order.Order, ob *book.OrderBook) ([]order.Trade, error) {
	price := o.Price
	trades := e.fillAgainstBook(o, ob, &price)
	if err := ob.RegisterOnly(o); err != nil {
		return trades, err
	}
	if !o.IsFullyFilled() && len(trades) == 0 {
		o.Status = order.Cancelled
	}
	return trades, nil
}

func (e *Engine) processFOK(o *order.Order, ob *book.OrderBook) ([]order.Trade, error) {
	if err := ob.RegisterOnly(o); err != nil {
		return nil, err
	}

	plan, canFill := e.planFOK(o, ob)
	if !canFill {
		o.Status = order.Cancelled
		telemetry.WithOrder(log.Info(), o.Symbol, o.ID.String()).Msg("fok order killed: insufficient liquidity")
		return nil, nil
	}

	trades := make([]order.Trade, 0, len(plan))
	for _, step := range plan {
		trade := e.executeMatch(o, step.maker, step.qty, step.price, ob)
		trades = append(trades, trade)
	}
	return trades, nil
}

// planFOK scans the opposing book without mutating it, returning the
// full set of (maker, quantity) legs needed to fill o completely. Called
// under the engine lock, so the book cannot change between planning and
// execution; the plan is guaranteed to still be valid when applied.
func (e *Engine) planFOK(o *order.Order, ob *book.OrderBook) ([]fokPlanStep, bool) {
	var plan []fokPlanStep
	remaining := o.Quantity

	for _, level := range ob.OpposingSnapshot(o.Side) {
		if remaining.Sign() == 0 {
			break
		}
		if o.Side == order.Buy && level.Price.GreaterThan(o.Price) {
			break
		}
		if o.Side == order.Sell && level.Price.LessThan(o.Price) {
			break
		}
		for _, maker := range level.Orders() {
			if remaining.Sign() == 0 {
				break
			}
			qty := decimal.Min(remaining, maker.Remaining())
			plan = append(plan, fokPlanStep{maker: maker, price: level.Price, qty: qty})
			remaining = remaining.Sub(qty)
		}
	}

	return plan, remaining.Sign() == 0
}

// fillAgainstBook walks the opposing side of ob in best-price-first
// order, matching o against resting makers until o is fully filled or
// limitPrice (nil for Market orders) would be breached.
func (e *Engine) fillAgainstBook(o *order.Order, ob *book.OrderBook, limitPrice *decimal.Decimal) []order.Trade {
	var trades []order.Trade

	for _, level := range ob.OpposingSnapshot(o.Side) {
		if o.IsFullyFilled() {
			break
		}
		if limitPrice != nil {
			if o.Side == order.Buy && level.Price.GreaterThan(*limitPrice) {
				break
			}
			if o.Side == order.Sell && level.Price.LessThan(*limitPrice) {
				break
			}
		}

		for !level.IsEmpty() && !o.IsFullyFilled() {
			maker, ok := level.PeekHead()
			if !ok {
				break
			}
			qty := decimal.Min(o.Remaining(), maker.Remaining())
			trade := e.executeMatch(o, maker, qty, level.Price, ob)
			trades = append(trades, trade)
		}
	}

	return trades
}

// executeMatch applies a single fill to both sides, detaches a fully
// filled maker from the book, journals and fans out the resulting trade,
// and updates volume/count statistics. Panics if UpdateFill rejects the
// computed quantity: qty is always min(remaining on both sides), so a
// rejection here means an invariant elsewhere has already broken.
func (e *Engine) executeMatch(taker, maker *order.Order, qty, price decimal.Decimal, ob *book.OrderBook) order.Trade {
	if err := taker.UpdateFill(qty); err != nil {
		panic(fmt.Sprintf("engine: taker fill invariant violated: %v", err))
	}
	if err := maker.UpdateFill(qty); err != nil {
		panic(fmt.Sprintf("engine: maker fill invariant violated: %v", err))
	}
	if maker.IsFullyFilled() {
		ob.DetachFromBook(maker.ID)
	}

	trade, err := order.NewTrade(taker.Symbol, price, qty, taker.Side, maker.ID, taker.ID)
	if err != nil {
		panic(fmt.Sprintf("engine: trade construction invariant violated: %v", err))
	}

	e.journal.Append(trade)
	e.stats.TradesExecuted++
	e.stats.TotalVolume = e.stats.TotalVolume.Add(qty)

	log.Debug().
		Str(telemetry.FieldTradeID, trade.ID.String()).
		Str(telemetry.FieldSymbol, trade.Symbol).
		Str("price", trade.Price.String()).
		Str("quantity", trade.Quantity.String()).
		Str("aggressor", trade.AggressorSide.String()).
		Str("maker_order_id", trade.MakerOrderID.String()).
		Str("taker_order_id", trade.TakerOrderID.String()).
		Msg("trade executed")

	e.notifyCallbacks(trade, taker.ID)

	return trade
}
