package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/merrors"
	"meridian/internal/order"
)

func TestOrderBook_BestBidAsk_EmptyBook(t *testing.T) {
	ob := New("AAPL")
	assert.Nil(t, ob.BestBid())
	assert.Nil(t, ob.BestAsk())
}

func TestOrderBook_Add_OrdersBidsDescendingAsksAscending(t *testing.T) {
	ob := New("AAPL")

	require.NoError(t, ob.Add(newTestOrder(t, order.Buy, "99", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Buy, "101", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Buy, "100", "10")))

	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "105", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "103", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "104", "10")))

	assert.True(t, d("101").Equal(*ob.BestBid()))
	assert.True(t, d("103").Equal(*ob.BestAsk()))

	depth := ob.Depth(10)
	require.Len(t, depth.Bids, 3)
	require.Len(t, depth.Asks, 3)
	assert.True(t, d("101").Equal(depth.Bids[0].Price))
	assert.True(t, d("100").Equal(depth.Bids[1].Price))
	assert.True(t, d("99").Equal(depth.Bids[2].Price))
	assert.True(t, d("103").Equal(depth.Asks[0].Price))
	assert.True(t, d("104").Equal(depth.Asks[1].Price))
	assert.True(t, d("105").Equal(depth.Asks[2].Price))

	require.NotNil(t, depth.Spread)
	assert.True(t, d("2").Equal(*depth.Spread))
}

func TestOrderBook_Remove_OnlyRestingOrders(t *testing.T) {
	ob := New("AAPL")
	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, ob.Add(o))

	removed, ok := ob.Remove(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.ID, removed.ID)
	assert.Nil(t, ob.BestBid())

	// Already removed; a second cancel must fail.
	_, ok = ob.Remove(o.ID)
	assert.False(t, ok)
}

func TestOrderBook_Remove_EmptiesLevelFromTree(t *testing.T) {
	ob := New("AAPL")
	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, ob.Add(o))
	assert.Equal(t, 1, ob.BidLevels())

	_, ok := ob.Remove(o.ID)
	require.True(t, ok)
	assert.Equal(t, 0, ob.BidLevels())
}

func TestOrderBook_DetachFromBook_KeepsRegistryEntry(t *testing.T) {
	ob := New("AAPL")
	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, ob.Add(o))

	detached, ok := ob.DetachFromBook(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.ID, detached.ID)
	assert.Nil(t, ob.BestBid())

	got, ok := ob.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.ID, got.ID)

	// Cancel must no longer succeed: it is not resting anymore.
	_, ok = ob.Remove(o.ID)
	assert.False(t, ok)
}

func TestOrderBook_Add_RejectsDuplicateID(t *testing.T) {
	ob := New("AAPL")
	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, ob.Add(o))

	dup := *o
	err := ob.Add(&dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrDuplicateOrder))
}

func TestOrderBook_RegisterOnly_RejectsDuplicateID(t *testing.T) {
	ob := New("AAPL")
	o, err := order.New("AAPL", order.Buy, order.Market, d("10"), d("0"), "")
	require.NoError(t, err)
	require.NoError(t, ob.RegisterOnly(o))

	err = ob.RegisterOnly(o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrDuplicateOrder))
}

func TestOrderBook_RegisterOnly_NeverRests(t *testing.T) {
	ob := New("AAPL")
	o, err := order.New("AAPL", order.Buy, order.Market, d("10"), d("0"), "")
	require.NoError(t, err)
	require.NoError(t, ob.RegisterOnly(o))

	assert.Nil(t, ob.BestBid())
	got, ok := ob.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.ID, got.ID)
}

func TestOrderBook_OpposingSnapshot_BestFirst(t *testing.T) {
	ob := New("AAPL")
	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "105", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "103", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Sell, "104", "10")))

	levels := ob.OpposingSnapshot(order.Buy)
	require.Len(t, levels, 3)
	assert.True(t, d("103").Equal(levels[0].Price))
	assert.True(t, d("104").Equal(levels[1].Price))
	assert.True(t, d("105").Equal(levels[2].Price))
}

func TestOrderBook_VolumeAt(t *testing.T) {
	ob := New("AAPL")
	require.NoError(t, ob.Add(newTestOrder(t, order.Buy, "100", "10")))
	require.NoError(t, ob.Add(newTestOrder(t, order.Buy, "100", "20")))

	assert.True(t, d("30").Equal(ob.VolumeAt(d("100"), order.Buy)))
	assert.True(t, decimal.Zero.Equal(ob.VolumeAt(d("99"), order.Buy)))
}
