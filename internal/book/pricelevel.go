package book

import (
	"container/list"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/merrors"
	"meridian/internal/order"
)

// PriceLevel holds every live order at one price on one side, in strict
// time priority (FIFO). A doubly linked list gives O(1) append/pop at
// either end; the id->element index gives O(1) remove-by-id, closing the
// O(n) cancel-within-a-level cost a slice-backed level would otherwise pay.
type PriceLevel struct {
	Price decimal.Decimal
	Side  order.Side

	orders *list.List
	index  map[uuid.UUID]*list.Element
}

// NewPriceLevel creates an empty price level for price/side.
func NewPriceLevel(price decimal.Decimal, side order.Side) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Side:   side,
		orders: list.New(),
		index:  make(map[uuid.UUID]*list.Element),
	}
}

// Add appends o to the tail of the FIFO queue. Fails if o's price/side
// doesn't match this level, or o.ID is already present here.
func (pl *PriceLevel) Add(o *order.Order) error {
	if !o.Price.Equal(pl.Price) || o.Side != pl.Side {
		return fmt.Errorf("%w: order %s price/side does not match level %s/%s", merrors.ErrInvalidOrder, o.ID, pl.Price, pl.Side)
	}
	if _, exists := pl.index[o.ID]; exists {
		return fmt.Errorf("%w: order %s already resting at this level", merrors.ErrDuplicateOrder, o.ID)
	}
	el := pl.orders.PushBack(o)
	pl.index[o.ID] = el
	return nil
}

// Remove detaches the order with the given id, wherever it sits in the
// queue. Returns the removed order, or (nil, false) if not present.
func (pl *PriceLevel) Remove(id uuid.UUID) (*order.Order, bool) {
	el, ok := pl.index[id]
	if !ok {
		return nil, false
	}
	o := el.Value.(*order.Order)
	pl.orders.Remove(el)
	delete(pl.index, id)
	return o, true
}

// Has reports whether id is currently resting at this level.
func (pl *PriceLevel) Has(id uuid.UUID) bool {
	_, ok := pl.index[id]
	return ok
}

// PeekHead returns the earliest-arrived live order without removing it.
func (pl *PriceLevel) PeekHead() (*order.Order, bool) {
	el := pl.orders.Front()
	if el == nil {
		return nil, false
	}
	return el.Value.(*order.Order), true
}

// PopHead removes and returns the earliest-arrived live order.
func (pl *PriceLevel) PopHead() (*order.Order, bool) {
	el := pl.orders.Front()
	if el == nil {
		return nil, false
	}
	o := el.Value.(*order.Order)
	pl.orders.Remove(el)
	delete(pl.index, o.ID)
	return o, true
}

// TotalVolume sums the remaining quantity of every order at this level.
// Recomputed on read rather than tracked incrementally: partial fills on
// resting makers happen outside this type, so an incremental counter
// here would need every caller to remember to report them back.
func (pl *PriceLevel) TotalVolume() decimal.Decimal {
	total := decimal.Zero
	for el := pl.orders.Front(); el != nil; el = el.Next() {
		total = total.Add(el.Value.(*order.Order).Remaining())
	}
	return total
}

// Orders returns a snapshot slice of the orders at this level, head
// first. Used for diagnostics and the FOK planning scan.
func (pl *PriceLevel) Orders() []*order.Order {
	out := make([]*order.Order, 0, pl.orders.Len())
	for el := pl.orders.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*order.Order))
	}
	return out
}

// Len reports the number of orders resting at this level.
func (pl *PriceLevel) Len() int {
	return pl.orders.Len()
}

// IsEmpty reports whether no orders remain at this level.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.orders.Len() == 0
}

func (pl *PriceLevel) String() string {
	return fmt.Sprintf("PriceLevel(price=%s, side=%s, orders=%d, volume=%s)", pl.Price, pl.Side, pl.Len(), pl.TotalVolume())
}
