package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/merrors"
)

// Trade is an immutable execution record. Once constructed it is never
// modified or retracted.
type Trade struct {
	ID            uuid.UUID
	Symbol        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Timestamp     time.Time
	AggressorSide Side // taker's side
	MakerOrderID  uuid.UUID
	TakerOrderID  uuid.UUID
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
}

// NewTrade constructs and validates a Trade. MakerFee/TakerFee default to
// zero when not supplied via NewTradeWithFees.
func NewTrade(symbol string, price, quantity decimal.Decimal, aggressor Side, makerID, takerID uuid.UUID) (Trade, error) {
	return NewTradeWithFees(symbol, price, quantity, aggressor, makerID, takerID, decimal.Zero, decimal.Zero)
}

// NewTradeWithFees constructs a Trade carrying explicit maker/taker fees.
func NewTradeWithFees(symbol string, price, quantity decimal.Decimal, aggressor Side, makerID, takerID uuid.UUID, makerFee, takerFee decimal.Decimal) (Trade, error) {
	t := Trade{
		ID:            uuid.New(),
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		Price:         price,
		Quantity:      quantity,
		Timestamp:     time.Now().UTC(),
		AggressorSide: aggressor,
		MakerOrderID:  makerID,
		TakerOrderID:  takerID,
		MakerFee:      makerFee,
		TakerFee:      takerFee,
	}
	if err := t.validate(); err != nil {
		return Trade{}, err
	}
	return t, nil
}

func (t Trade) validate() error {
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive, got %s", merrors.ErrInvalidTrade, t.Price)
	}
	if t.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %s", merrors.ErrInvalidTrade, t.Quantity)
	}
	if t.MakerFee.Sign() < 0 {
		return fmt.Errorf("%w: maker fee cannot be negative, got %s", merrors.ErrInvalidTrade, t.MakerFee)
	}
	if t.TakerFee.Sign() < 0 {
		return fmt.Errorf("%w: taker fee cannot be negative, got %s", merrors.ErrInvalidTrade, t.TakerFee)
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: symbol cannot be empty", merrors.ErrInvalidTrade)
	}
	return nil
}

// TotalValue returns Price * Quantity.
func (t Trade) TotalValue() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade(id=%s, %s, %s @ %s, aggressor=%s, value=%s)",
		t.ID, t.Symbol, t.Quantity, t.Price, t.AggressorSide, t.TotalValue(),
	)
}
