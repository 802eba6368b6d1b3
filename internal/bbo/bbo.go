// Package bbo tracks the best bid/offer for one symbol and notifies
// registered observers when it changes, following the observer pattern
// used throughout the matching core for trade and BBO fan-out.
package bbo

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Snapshot is a serializable view of the best bid/offer at one instant.
// BestBid/BestAsk/Spread/Mid are nil when the corresponding side (or
// both sides, for Spread/Mid) of the book is empty.
type Snapshot struct {
	Symbol    string
	BestBid   *decimal.Decimal
	BestAsk   *decimal.Decimal
	Spread    *decimal.Decimal
	Mid       *decimal.Decimal
	Timestamp time.Time
}

// Observer is notified with the new snapshot whenever the BBO changes.
type Observer func(Snapshot)

// Manager maintains the current and previous BBO for a symbol and fans
// out change notifications. Not safe for concurrent use on its own; the
// owning OrderBook is always called under the engine lock.
type Manager struct {
	symbol      string
	current     Snapshot
	previous    Snapshot
	updateCount uint64
	observers   []Observer
}

// New creates a BBO manager for symbol with an empty initial snapshot.
func New(symbol string) *Manager {
	return &Manager{symbol: symbol}
}

// Update recomputes spread/mid from bid/ask, shifts current into
// previous, and notifies observers if best bid or best ask changed. It
// always advances the update counter, even when the values are
// unchanged, so UpdateCount reflects total refresh attempts rather than
// only the ones that actually moved the market.
func (m *Manager) Update(bestBid, bestAsk *decimal.Decimal) {
	m.previous = m.current

	snap := Snapshot{
		Symbol:    m.symbol,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		Timestamp: time.Now().UTC(),
	}
	if bestBid != nil && bestAsk != nil {
		spread := bestAsk.Sub(*bestBid)
		mid := bestBid.Add(*bestAsk).Div(decimal.NewFromInt(2))
		snap.Spread = &spread
		snap.Mid = &mid
	}
	m.current = snap
	m.updateCount++

	if m.changed() {
		m.notify()
	}
}

// Current returns the most recent snapshot.
func (m *Manager) Current() Snapshot {
	return m.current
}

// UpdateCount returns the number of times Update has been called.
func (m *Manager) UpdateCount() uint64 {
	return m.updateCount
}

// RegisterObserver adds an observer notified on future BBO changes.
func (m *Manager) RegisterObserver(obs Observer) {
	m.observers = append(m.observers, obs)
}

func (m *Manager) changed() bool {
	return !decimalPtrEqual(m.current.BestBid, m.previous.BestBid) ||
		!decimalPtrEqual(m.current.BestAsk, m.previous.BestAsk)
}

// notify fans the current snapshot out to every observer. A panicking
// observer is logged and skipped; it must never bring down the engine.
func (m *Manager) notify() {
	for _, obs := range m.observers {
		safeNotify(obs, m.current)
	}
}

func safeNotify(obs Observer, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("symbol", snap.Symbol).
				Interface("panic", r).
				Msg("bbo observer panicked")
		}
	}()
	obs(snap)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}
