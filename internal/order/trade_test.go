package order

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/merrors"
)

func TestNewTrade_TotalValue(t *testing.T) {
	trade, err := NewTrade("AAPL", d("100.50"), d("10"), Buy, uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, d("1005.00").Equal(trade.TotalValue()))
}

func TestNewTrade_RejectsNonPositivePrice(t *testing.T) {
	_, err := NewTrade("AAPL", d("0"), d("10"), Buy, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrInvalidTrade))
}

func TestNewTrade_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewTrade("AAPL", d("100"), d("0"), Buy, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrInvalidTrade))
}

func TestNewTradeWithFees_RejectsNegativeFees(t *testing.T) {
	_, err := NewTradeWithFees("AAPL", d("100"), d("10"), Buy, uuid.New(), uuid.New(), d("-1"), d("0"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, merrors.ErrInvalidTrade))
}
