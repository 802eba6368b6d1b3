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

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestOrder(t *testing.T, side order.Side, price, qty string) *order.Order {
	t.Helper()
	o, err := order.New("AAPL", side, order.Limit, d(qty), d(price), "")
	require.NoError(t, err)
	return o
}

func TestPriceLevel_FIFOOrdering(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)

	first := newTestOrder(t, order.Buy, "100", "10")
	second := newTestOrder(t, order.Buy, "100", "20")
	third := newTestOrder(t, order.Buy, "100", "30")

	require.NoError(t, lvl.Add(first))
	require.NoError(t, lvl.Add(second))
	require.NoError(t, lvl.Add(third))

	assert.Equal(t, 3, lvl.Len())
	assert.True(t, d("60").Equal(lvl.TotalVolume()))

	head, ok := lvl.PeekHead()
	require.True(t, ok)
	assert.Equal(t, first.ID, head.ID)

	popped, ok := lvl.PopHead()
	require.True(t, ok)
	assert.Equal(t, first.ID, popped.ID)

	head, ok = lvl.PeekHead()
	require.True(t, ok)
	assert.Equal(t, second.ID, head.ID)
}

func TestPriceLevel_RemoveByID(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Sell)
	first := newTestOrder(t, order.Sell, "100", "10")
	second := newTestOrder(t, order.Sell, "100", "20")
	require.NoError(t, lvl.Add(first))
	require.NoError(t, lvl.Add(second))

	removed, ok := lvl.Remove(first.ID)
	require.True(t, ok)
	assert.Equal(t, first.ID, removed.ID)
	assert.False(t, lvl.Has(first.ID))
	assert.Equal(t, 1, lvl.Len())

	head, ok := lvl.PeekHead()
	require.True(t, ok)
	assert.Equal(t, second.ID, head.ID)
}

func TestPriceLevel_Remove_UnknownID(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)
	_, ok := lvl.Remove(newTestOrder(t, order.Buy, "100", "10").ID)
	assert.False(t, ok)
}

func TestPriceLevel_Add_RejectsPriceSideMismatch(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)

	wrongPrice := newTestOrder(t, order.Buy, "101", "10")
	err := lvl.Add(wrongPrice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrInvalidOrder))

	wrongSide := newTestOrder(t, order.Sell, "100", "10")
	err = lvl.Add(wrongSide)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrInvalidOrder))
}

func TestPriceLevel_Add_RejectsDuplicate(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)
	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, lvl.Add(o))

	err := lvl.Add(o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrDuplicateOrder))
}

func TestPriceLevel_TotalVolume_ReflectsPartialFills(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)
	o := newTestOrder(t, order.Buy, "100", "50")
	require.NoError(t, lvl.Add(o))
	require.NoError(t, o.UpdateFill(d("20")))

	assert.True(t, d("30").Equal(lvl.TotalVolume()))
}

func TestPriceLevel_IsEmpty(t *testing.T) {
	lvl := NewPriceLevel(d("100"), order.Buy)
	assert.True(t, lvl.IsEmpty())

	o := newTestOrder(t, order.Buy, "100", "10")
	require.NoError(t, lvl.Add(o))
	assert.False(t, lvl.IsEmpty())

	_, ok := lvl.PopHead()
	require.True(t, ok)
	assert.True(t, lvl.IsEmpty())
}
