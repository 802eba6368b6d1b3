// Package wire implements the binary session protocol between
// meridiactl and meridiand: a 2-byte type header followed by a
// type-specific, length-prefixed body. Prices and quantities travel as
// length-prefixed decimal strings rather than fixed-width floats, so
// arbitrary precision survives the wire intact.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/order"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidUUID        = errors.New("invalid uuid")
)

// MessageType identifies a client-to-server request.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	OrderStatusRequest
	DepthRequest
)

// ReportType identifies a server-to-client response.
type ReportType uint16

const (
	ExecutionReport ReportType = iota
	AckReport
	ErrorReport
	OrderStatusReport
	DepthReport
)

// Message is a parsed client request.
type Message interface {
	Type() MessageType
}

// BaseMessageHeaderLen is the fixed 2-byte type tag every message
// starts with.
const BaseMessageHeaderLen = 2

// ParseMessage reads the type header and dispatches to the matching
// body parser.
func ParseMessage(raw []byte) (Message, error) {
	if len(raw) < BaseMessageHeaderLen {
		return nil, fmt.Errorf("%w: need %d bytes for header, got %d", ErrMessageTooShort, BaseMessageHeaderLen, len(raw))
	}
	typeOf := MessageType(binary.BigEndian.Uint16(raw[0:2]))
	body := raw[2:]
	switch typeOf {
	case Heartbeat:
		return HeartbeatMessage{}, nil
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case OrderStatusRequest:
		return parseOrderStatusRequest(body)
	case DepthRequest:
		return parseDepthRequest(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageType, typeOf)
	}
}

// HeartbeatMessage carries no payload; it exists so a session can be
// kept alive without submitting an order.
type HeartbeatMessage struct{}

func (HeartbeatMessage) Type() MessageType { return Heartbeat }

// NewOrderMessage requests a new order submission.
type NewOrderMessage struct {
	OrderType order.Type
	Side      order.Side
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal // zero value when OrderType doesn't require a price
	Username  string
}

func (NewOrderMessage) Type() MessageType { return NewOrder }

// SerializeNewOrder encodes m for transmission, including the 2-byte
// type header.
func SerializeNewOrder(m NewOrderMessage) []byte {
	qty := m.Quantity.String()
	price := ""
	if m.OrderType.RequiresPrice() {
		price = m.Price.String()
	}

	buf := newBodyBuilder(BaseMessageHeaderLen + 1 + 1 +
		2 + len(m.Symbol) +
		2 + len(qty) +
		2 + len(price) +
		1 + len(m.Username))

	buf.putUint16(uint16(NewOrder))
	buf.putByte(byte(m.OrderType))
	buf.putByte(byte(m.Side))
	buf.putString16(m.Symbol)
	buf.putString16(qty)
	buf.putString16(price)
	buf.putString8(m.Username)
	return buf.bytes()
}

func parseNewOrder(body []byte) (NewOrderMessage, error) {
	r := newBodyReader(body)
	m := NewOrderMessage{}

	orderType, err := r.byte()
	if err != nil {
		return m, err
	}
	m.OrderType = order.Type(orderType)

	side, err := r.byte()
	if err != nil {
		return m, err
	}
	m.Side = order.Side(side)

	if m.Symbol, err = r.string16(); err != nil {
		return m, err
	}
	qtyStr, err := r.string16()
	if err != nil {
		return m, err
	}
	m.Quantity, err = decimal.NewFromString(qtyStr)
	if err != nil {
		return m, fmt.Errorf("invalid quantity %q: %w", qtyStr, err)
	}

	priceStr, err := r.string16()
	if err != nil {
		return m, err
	}
	if priceStr != "" {
		m.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return m, fmt.Errorf("invalid price %q: %w", priceStr, err)
		}
	}

	if m.Username, err = r.string8(); err != nil {
		return m, err
	}
	return m, nil
}

// CancelOrderMessage requests cancellation of a resting order.
type CancelOrderMessage struct {
	Symbol  string
	OrderID uuid.UUID
}

func (CancelOrderMessage) Type() MessageType { return CancelOrder }

func SerializeCancelOrder(m CancelOrderMessage) []byte {
	buf := newBodyBuilder(BaseMessageHeaderLen + 2 + len(m.Symbol) + 16)
	buf.putUint16(uint16(CancelOrder))
	buf.putString16(m.Symbol)
	buf.putRaw(m.OrderID[:])
	return buf.bytes()
}

func parseCancelOrder(body []byte) (CancelOrderMessage, error) {
	r := newBodyReader(body)
	m := CancelOrderMessage{}

	var err error
	if m.Symbol, err = r.string16(); err != nil {
		return m, err
	}
	idBytes, err := r.raw(16)
	if err != nil {
		return m, err
	}
	m.OrderID, err = uuid.FromBytes(idBytes)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return m, nil
}

// OrderStatusRequestMessage asks for the current state of one order.
type OrderStatusRequestMessage struct {
	Symbol  string
	OrderID uuid.UUID
}

func (OrderStatusRequestMessage) Type() MessageType { return OrderStatusRequest }

func SerializeOrderStatusRequest(m OrderStatusRequestMessage) []byte {
	buf := newBodyBuilder(BaseMessageHeaderLen + 2 + len(m.Symbol) + 16)
	buf.putUint16(uint16(OrderStatusRequest))
	buf.putString16(m.Symbol)
	buf.putRaw(m.OrderID[:])
	return buf.bytes()
}

func parseOrderStatusRequest(body []byte) (OrderStatusRequestMessage, error) {
	r := newBodyReader(body)
	m := OrderStatusRequestMessage{}

	var err error
	if m.Symbol, err = r.string16(); err != nil {
		return m, err
	}
	idBytes, err := r.raw(16)
	if err != nil {
		return m, err
	}
	m.OrderID, err = uuid.FromBytes(idBytes)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return m, nil
}

// DepthRequestMessage asks for the current depth snapshot of a symbol.
type DepthRequestMessage struct {
	Symbol string
	Levels uint16
}

func (DepthRequestMessage) Type() MessageType { return DepthRequest }

func SerializeDepthRequest(m DepthRequestMessage) []byte {
	buf := newBodyBuilder(BaseMessageHeaderLen + 2 + len(m.Symbol) + 2)
	buf.putUint16(uint16(DepthRequest))
	buf.putString16(m.Symbol)
	buf.putUint16(m.Levels)
	return buf.bytes()
}

func parseDepthRequest(body []byte) (DepthRequestMessage, error) {
	r := newBodyReader(body)
	m := DepthRequestMessage{}

	var err error
	if m.Symbol, err = r.string16(); err != nil {
		return m, err
	}
	if m.Levels, err = r.uint16(); err != nil {
		return m, err
	}
	return m, nil
}
