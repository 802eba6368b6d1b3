package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/merrors"
)

// Order is the mutable record of a single submission for its lifetime in
// the engine. Fields set at construction (Symbol, Side, Type, Quantity,
// Price, Timestamp) are never mutated after Validate succeeds; Filled,
// Remaining, and Status are mutated by exactly one matching dispatch.
type Order struct {
	ID            uuid.UUID
	Symbol        string
	Side          Side
	Type          Type
	Quantity      decimal.Decimal // total requested quantity
	Price         decimal.Decimal // zero value ignored for Market orders
	Filled        decimal.Decimal
	Status        Status
	Timestamp     time.Time // time of arrival at the submitter
	ExchTimestamp time.Time // time of arrival into the book
	Owner         string
}

// New constructs and validates an Order. Owner is optional.
func New(symbol string, side Side, typ Type, quantity, price decimal.Decimal, owner string) (*Order, error) {
	o := &Order{
		ID:        uuid.New(),
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Side:      side,
		Type:      typ,
		Quantity:  quantity,
		Price:     price,
		Filled:    decimal.Zero,
		Status:    Pending,
		Timestamp: time.Now().UTC(),
		Owner:     owner,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Remaining returns the unfilled quantity: Quantity - Filled.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// IsFullyFilled reports whether no quantity remains to be filled.
func (o *Order) IsFullyFilled() bool {
	return o.Remaining().Sign() <= 0
}

// Validate enforces: positive quantity, non-negative filled not
// exceeding total, a positive price when the order type requires one,
// and a non-empty symbol.
func (o *Order) Validate() error {
	if o.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %s", merrors.ErrInvalidOrder, o.Quantity)
	}
	if o.Filled.Sign() < 0 {
		return fmt.Errorf("%w: filled quantity cannot be negative, got %s", merrors.ErrInvalidOrder, o.Filled)
	}
	if o.Filled.GreaterThan(o.Quantity) {
		return fmt.Errorf("%w: filled %s exceeds total %s", merrors.ErrInvalidOrder, o.Filled, o.Quantity)
	}
	if o.Type.RequiresPrice() {
		if o.Price.Sign() <= 0 {
			return fmt.Errorf("%w: %s orders require a positive price, got %s", merrors.ErrInvalidOrder, o.Type, o.Price)
		}
	}
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", merrors.ErrInvalidOrder)
	}
	return nil
}

// UpdateFill applies a fill of q to the order, advancing Filled/Remaining
// and transitioning Status to Filled or Partial. Preconditions: 0 < q <=
// Remaining(); violating either fails with ErrInvalidFill, which signals
// a bug in the caller, not a user-facing validation failure.
func (o *Order) UpdateFill(q decimal.Decimal) error {
	if q.Sign() <= 0 {
		return fmt.Errorf("%w: fill quantity must be positive, got %s", merrors.ErrInvalidFill, q)
	}
	remaining := o.Remaining()
	if q.GreaterThan(remaining) {
		return fmt.Errorf("%w: fill %s exceeds remaining %s", merrors.ErrInvalidFill, q, remaining)
	}
	o.Filled = o.Filled.Add(q)
	if o.IsFullyFilled() {
		o.Status = Filled
	} else {
		o.Status = Partial
	}
	return nil
}

// IsMarketable reports whether the order can execute immediately against
// the given BBO. Market orders are always marketable. A Buy Limit/IOC/FOK
// is marketable iff bestAsk exists and Price >= bestAsk; a Sell iff
// bestBid exists and Price <= bestBid.
func (o *Order) IsMarketable(bestBid, bestAsk *decimal.Decimal) bool {
	if o.Type == Market {
		return true
	}
	if o.Side == Buy {
		return bestAsk != nil && o.Price.GreaterThanOrEqual(*bestAsk)
	}
	return bestBid != nil && o.Price.LessThanOrEqual(*bestBid)
}

func (o *Order) String() string {
	priceStr := "MARKET"
	if o.Type.RequiresPrice() {
		priceStr = o.Price.String()
	}
	return fmt.Sprintf(
		"Order(id=%s, %s %s %s @ %s, type=%s, status=%s, filled=%s/%s)",
		o.ID, o.Side, o.Quantity, o.Symbol, priceStr, o.Type, o.Status, o.Filled, o.Quantity,
	)
}
