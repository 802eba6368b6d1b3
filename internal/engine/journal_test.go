package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/order"
)

func tradeWithQty(t *testing.T, qty string) order.Trade {
	t.Helper()
	trade, err := order.NewTrade("AAPL", d("100"), d(qty), order.Buy, uuid.New(), uuid.New())
	require.NoError(t, err)
	return trade
}

func TestJournal_RecentReturnsOldestFirst(t *testing.T) {
	j := newJournal(5)
	j.Append(tradeWithQty(t, "1"))
	j.Append(tradeWithQty(t, "2"))
	j.Append(tradeWithQty(t, "3"))

	recent := j.Recent(10)
	require.Len(t, recent, 3)
	assert.True(t, d("1").Equal(recent[0].Quantity))
	assert.True(t, d("3").Equal(recent[2].Quantity))
}

func TestJournal_EvictsOldestWhenFull(t *testing.T) {
	j := newJournal(3)
	for i := 1; i <= 5; i++ {
		j.Append(tradeWithQty(t, string(rune('0'+i))))
	}

	assert.Equal(t, 3, j.Len())
	recent := j.Recent(3)
	require.Len(t, recent, 3)
	assert.True(t, d("3").Equal(recent[0].Quantity))
	assert.True(t, d("4").Equal(recent[1].Quantity))
	assert.True(t, d("5").Equal(recent[2].Quantity))
}

func TestJournal_RecentCappedByAvailableSize(t *testing.T) {
	j := newJournal(10)
	j.Append(tradeWithQty(t, "1"))

	assert.Len(t, j.Recent(5), 1)
}
