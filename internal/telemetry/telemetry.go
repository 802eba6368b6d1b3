// Package telemetry centralizes the structured log field names used
// across the engine and server, so a field renames in one place
// instead of at every call site.
package telemetry

import "github.com/rs/zerolog"

const (
	FieldOrderID   = "order_id"
	FieldTradeID   = "trade_id"
	FieldSymbol    = "symbol"
	FieldSide      = "side"
	FieldOrderType = "order_type"
	FieldOwner     = "owner"
	FieldLatencyMs = "latency_ms"
	FieldAddress   = "address"
)

// WithOrder attaches the order and symbol fields common to almost
// every matching-path log line.
func WithOrder(e *zerolog.Event, symbol, orderID string) *zerolog.Event {
	return e.Str(FieldSymbol, symbol).Str(FieldOrderID, orderID)
}
