package bbo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestManager_Update_ComputesSpreadAndMid(t *testing.T) {
	m := New("AAPL")
	bid := d("99")
	ask := d("101")

	m.Update(&bid, &ask)

	snap := m.Current()
	require.NotNil(t, snap.Spread)
	require.NotNil(t, snap.Mid)
	assert.True(t, d("2").Equal(*snap.Spread))
	assert.True(t, d("100").Equal(*snap.Mid))
}

func TestManager_Update_NilSidesLeaveSpreadAndMidNil(t *testing.T) {
	m := New("AAPL")
	bid := d("99")

	m.Update(&bid, nil)

	snap := m.Current()
	assert.Nil(t, snap.Spread)
	assert.Nil(t, snap.Mid)
}

func TestManager_Update_AlwaysAdvancesCounter(t *testing.T) {
	m := New("AAPL")
	bid := d("99")

	m.Update(&bid, nil)
	m.Update(&bid, nil) // unchanged values, counter still advances
	m.Update(&bid, nil)

	assert.Equal(t, uint64(3), m.UpdateCount())
}

func TestManager_NotifiesObserversOnlyOnChange(t *testing.T) {
	m := New("AAPL")
	var notifications int
	m.RegisterObserver(func(Snapshot) { notifications++ })

	bid := d("99")
	m.Update(&bid, nil)
	assert.Equal(t, 1, notifications)

	m.Update(&bid, nil) // same bid, no ask change either
	assert.Equal(t, 1, notifications, "unchanged BBO should not notify again")

	higherBid := d("100")
	m.Update(&higherBid, nil)
	assert.Equal(t, 2, notifications)
}

func TestManager_ObserverPanicIsSwallowed(t *testing.T) {
	m := New("AAPL")
	m.RegisterObserver(func(Snapshot) { panic("boom") })

	var secondCalled bool
	m.RegisterObserver(func(Snapshot) { secondCalled = true })

	bid := d("99")
	assert.NotPanics(t, func() { m.Update(&bid, nil) })
	assert.True(t, secondCalled)
}
