package wire

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/book"
	"meridian/internal/order"
)

// ExecutionReportMessage notifies a client of one trade it participated
// in, as either maker or taker.
type ExecutionReportMessage struct {
	TradeID      uuid.UUID
	Symbol       string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Aggressor    order.Side
	MakerOrderID uuid.UUID
	TakerOrderID uuid.UUID
}

func SerializeExecutionReport(m ExecutionReportMessage) []byte {
	price := m.Price.String()
	qty := m.Quantity.String()

	buf := newBodyBuilder(BaseMessageHeaderLen + 16 + 2 + len(m.Symbol) + 2 + len(price) + 2 + len(qty) + 1 + 16 + 16)
	buf.putUint16(uint16(ExecutionReport))
	buf.putRaw(m.TradeID[:])
	buf.putString16(m.Symbol)
	buf.putString16(price)
	buf.putString16(qty)
	buf.putByte(byte(m.Aggressor))
	buf.putRaw(m.MakerOrderID[:])
	buf.putRaw(m.TakerOrderID[:])
	return buf.bytes()
}

// ExecutionReportFromTrade builds the wire representation of an
// executed trade directly from the engine's trade record.
func ExecutionReportFromTrade(t order.Trade) ExecutionReportMessage {
	return ExecutionReportMessage{
		TradeID:      t.ID,
		Symbol:       t.Symbol,
		Price:        t.Price,
		Quantity:     t.Quantity,
		Aggressor:    t.AggressorSide,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
	}
}

// AckReportMessage confirms a submission or cancellation and carries
// the resulting order state in human-readable form.
type AckReportMessage struct {
	OrderID uuid.UUID
	Status  order.Status
	Filled  decimal.Decimal
	Total   decimal.Decimal
	Message string
}

func SerializeAckReport(m AckReportMessage) []byte {
	filled := m.Filled.String()
	total := m.Total.String()

	buf := newBodyBuilder(BaseMessageHeaderLen + 16 + 1 + 2 + len(filled) + 2 + len(total) + 2 + len(m.Message))
	buf.putUint16(uint16(AckReport))
	buf.putRaw(m.OrderID[:])
	buf.putByte(byte(m.Status))
	buf.putString16(filled)
	buf.putString16(total)
	buf.putString16(m.Message)
	return buf.bytes()
}

// ErrorReportMessage carries a single error string back to the
// submitting client.
type ErrorReportMessage struct {
	Err string
}

func SerializeErrorReport(m ErrorReportMessage) []byte {
	buf := newBodyBuilder(BaseMessageHeaderLen + 2 + len(m.Err))
	buf.putUint16(uint16(ErrorReport))
	buf.putString16(m.Err)
	return buf.bytes()
}

// OrderStatusReportMessage answers an OrderStatusRequestMessage.
type OrderStatusReportMessage struct {
	Found   bool
	OrderID uuid.UUID
	Status  order.Status
	Filled  decimal.Decimal
	Total   decimal.Decimal
}

func SerializeOrderStatusReport(m OrderStatusReportMessage) []byte {
	found := byte(0)
	if m.Found {
		found = 1
	}
	filled := m.Filled.String()
	total := m.Total.String()

	buf := newBodyBuilder(BaseMessageHeaderLen + 1 + 16 + 1 + 2 + len(filled) + 2 + len(total))
	buf.putUint16(uint16(OrderStatusReport))
	buf.putByte(found)
	buf.putRaw(m.OrderID[:])
	buf.putByte(byte(m.Status))
	buf.putString16(filled)
	buf.putString16(total)
	return buf.bytes()
}

// DepthReportMessage answers a DepthRequestMessage with aggregated
// top-of-book levels.
type DepthReportMessage struct {
	Symbol string
	Bids   []book.PriceVolume
	Asks   []book.PriceVolume
}

func SerializeDepthReport(m DepthReportMessage) []byte {
	buf := newBodyBuilder(256)
	buf.putUint16(uint16(DepthReport))
	buf.putString16(m.Symbol)
	buf.putUint16(uint16(len(m.Bids)))
	for _, lvl := range m.Bids {
		buf.putString16(lvl.Price.String())
		buf.putString16(lvl.Volume.String())
	}
	buf.putUint16(uint16(len(m.Asks)))
	for _, lvl := range m.Asks {
		buf.putString16(lvl.Price.String())
		buf.putString16(lvl.Volume.String())
	}
	return buf.bytes()
}
