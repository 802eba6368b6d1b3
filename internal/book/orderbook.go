// Package book implements the per-symbol limit order book: two
// price-ordered trees of FIFO price levels, an order registry for O(1)
// lookup/cancel, and a BBO manager kept in sync on every mutation.
package book

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"meridian/internal/bbo"
	"meridian/internal/merrors"
	"meridian/internal/order"
)

// PriceVolume is one aggregated row of a depth snapshot.
type PriceVolume struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// DepthSnapshot is a point-in-time, read-only view of top-of-book and
// aggregated depth on both sides.
type DepthSnapshot struct {
	Symbol  string
	Bids    []PriceVolume
	Asks    []PriceVolume
	BestBid *decimal.Decimal
	BestAsk *decimal.Decimal
	Spread  *decimal.Decimal
}

// OrderBook holds the full resting-order state for one symbol. Bids are
// ordered best (highest price) first, asks best (lowest price) first,
// each as a BTreeG of PriceLevel keyed by decimal.Decimal price.
type OrderBook struct {
	Symbol string

	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	registry map[uuid.UUID]*order.Order

	BBO *bbo.Manager
}

// New creates an empty order book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:   symbol,
		bids:     btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }),
		asks:     btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }),
		registry: make(map[uuid.UUID]*order.Order),
		BBO:      bbo.New(symbol),
	}
}

func (b *OrderBook) treeForSide(side order.Side) *btree.BTreeG[*PriceLevel] {
	if side == order.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) opposingTreeForSide(side order.Side) *btree.BTreeG[*PriceLevel] {
	if side == order.Buy {
		return b.asks
	}
	return b.bids
}

// Add rests o on the book. Fails if o.ID is already registered, o has no
// remaining quantity, or o carries no positive price (Market orders
// never reach here; callers must filter them out before resting).
func (b *OrderBook) Add(o *order.Order) error {
	if _, exists := b.registry[o.ID]; exists {
		return fmt.Errorf("%w: order %s already registered on book %s", merrors.ErrDuplicateOrder, o.ID, b.Symbol)
	}
	if o.Remaining().Sign() <= 0 {
		return fmt.Errorf("%w: order %s has no remaining quantity to rest", merrors.ErrInvalidOrder, o.ID)
	}
	if o.Price.Sign() <= 0 {
		return fmt.Errorf("%w: order %s needs a positive price to rest, got %s", merrors.ErrInvalidOrder, o.ID, o.Price)
	}
	tree := b.treeForSide(o.Side)
	probe := &PriceLevel{Price: o.Price, Side: o.Side}
	level, ok := tree.GetMut(probe)
	if !ok {
		level = NewPriceLevel(o.Price, o.Side)
		tree.Set(level)
	}
	if err := level.Add(o); err != nil {
		return err
	}
	b.registry[o.ID] = o
	b.refreshBBO()
	return nil
}

// Remove cancels a resting order: it must currently be on a price level,
// not merely present in the registry (a Market/IOC/FOK order that never
// rested, or one already fully filled and detached, cannot be "removed"
// again). Returns (nil, false) in either absent case.
func (b *OrderBook) Remove(id uuid.UUID) (*order.Order, bool) {
	o, ok := b.registry[id]
	if !ok {
		return nil, false
	}
	if !b.isResting(o) {
		return nil, false
	}
	b.removeFromLevel(o)
	delete(b.registry, id)
	b.refreshBBO()
	return o, true
}

// DetachFromBook removes an order from its price level (pruning the
// level if it empties) while leaving the registry entry intact, so a
// fully filled maker or a cancelled order remains lookupable by
// GetOrderStatus afterwards.
func (b *OrderBook) DetachFromBook(id uuid.UUID) (*order.Order, bool) {
	o, ok := b.registry[id]
	if !ok {
		return nil, false
	}
	if !b.isResting(o) {
		return o, false
	}
	b.removeFromLevel(o)
	b.refreshBBO()
	return o, true
}

func (b *OrderBook) isResting(o *order.Order) bool {
	level, ok := b.treeForSide(o.Side).GetMut(&PriceLevel{Price: o.Price, Side: o.Side})
	if !ok {
		return false
	}
	return level.Has(o.ID)
}

func (b *OrderBook) removeFromLevel(o *order.Order) {
	tree := b.treeForSide(o.Side)
	probe := &PriceLevel{Price: o.Price, Side: o.Side}
	level, ok := tree.GetMut(probe)
	if !ok {
		return
	}
	level.Remove(o.ID)
	if level.IsEmpty() {
		tree.Delete(level)
	}
}

// RegisterOnly records o in the order registry without resting it on any
// price level. Used for order types that never rest (Market, IOC, FOK)
// so GetOrderStatus can still find them after matching completes.
func (b *OrderBook) RegisterOnly(o *order.Order) error {
	if _, exists := b.registry[o.ID]; exists {
		return fmt.Errorf("%w: order %s already registered on book %s", merrors.ErrDuplicateOrder, o.ID, b.Symbol)
	}
	b.registry[o.ID] = o
	return nil
}

// Get returns the order registered under id, resting or not.
func (b *OrderBook) Get(id uuid.UUID) (*order.Order, bool) {
	o, ok := b.registry[id]
	return o, ok
}

// BestBid returns the highest resting bid price, or nil if there are no
// bids.
func (b *OrderBook) BestBid() *decimal.Decimal {
	lvl, ok := b.bids.Min()
	if !ok {
		return nil
	}
	p := lvl.Price
	return &p
}

// BestAsk returns the lowest resting ask price, or nil if there are no
// asks.
func (b *OrderBook) BestAsk() *decimal.Decimal {
	lvl, ok := b.asks.Min()
	if !ok {
		return nil
	}
	p := lvl.Price
	return &p
}

func (b *OrderBook) refreshBBO() {
	b.BBO.Update(b.BestBid(), b.BestAsk())
}

// VolumeAt returns the total resting quantity at price on side, zero if
// no level exists there.
func (b *OrderBook) VolumeAt(price decimal.Decimal, side order.Side) decimal.Decimal {
	level, ok := b.treeForSide(side).Get(&PriceLevel{Price: price, Side: side})
	if !ok {
		return decimal.Zero
	}
	return level.TotalVolume()
}

// OpposingSnapshot returns every price level an aggressor of side would
// match against, in strict best-price-first order. The slice is a
// point-in-time copy of level pointers; the levels themselves are live
// and may be mutated or pruned by the caller as matching proceeds.
func (b *OrderBook) OpposingSnapshot(side order.Side) []*PriceLevel {
	tree := b.opposingTreeForSide(side)
	out := make([]*PriceLevel, 0, tree.Len())
	tree.Scan(func(lvl *PriceLevel) bool {
		out = append(out, lvl)
		return true
	})
	return out
}

// PruneIfEmpty removes level from its tree if it has no orders left. The
// matching loop does not use it: DetachFromBook already prunes a level
// that its last maker leaves.
func (b *OrderBook) PruneIfEmpty(level *PriceLevel) {
	if level.IsEmpty() {
		b.treeForSide(level.Side).Delete(level)
	}
}

// Depth returns a snapshot of best bid/ask, spread, and up to n
// aggregated price levels per side, best first.
func (b *OrderBook) Depth(n int) DepthSnapshot {
	snap := DepthSnapshot{
		Symbol:  b.Symbol,
		BestBid: b.BestBid(),
		BestAsk: b.BestAsk(),
	}
	if snap.BestBid != nil && snap.BestAsk != nil {
		spread := snap.BestAsk.Sub(*snap.BestBid)
		snap.Spread = &spread
	}
	snap.Bids = b.topLevels(b.bids, n)
	snap.Asks = b.topLevels(b.asks, n)
	return snap
}

func (b *OrderBook) topLevels(tree *btree.BTreeG[*PriceLevel], n int) []PriceVolume {
	out := make([]PriceVolume, 0, n)
	tree.Scan(func(lvl *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, PriceVolume{Price: lvl.Price, Volume: lvl.TotalVolume()})
		return true
	})
	return out
}

// BidLevels returns the number of distinct bid prices with resting
// orders.
func (b *OrderBook) BidLevels() int { return b.bids.Len() }

// AskLevels returns the number of distinct ask prices with resting
// orders.
func (b *OrderBook) AskLevels() int { return b.asks.Len() }

func (b *OrderBook) String() string {
	return fmt.Sprintf("OrderBook(symbol=%s, bid_levels=%d, ask_levels=%d, orders=%d)", b.Symbol, b.bids.Len(), b.asks.Len(), len(b.registry))
}
