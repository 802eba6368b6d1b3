// Command meridiactl is a small command-line client for meridiand: it
// places or cancels orders, queries order status or book depth, and
// prints execution reports as they arrive.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/order"
	"meridian/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	owner := flag.String("owner", "", "owner username (compulsory)")
	action := flag.String("action", "place", "action to perform: place, cancel, status, depth")

	symbol := flag.String("symbol", "AAPL", "symbol")
	sideStr := flag.String("side", "buy", "order side: buy or sell")
	typeStr := flag.String("type", "limit", "order type: limit, market, ioc, fok")
	price := flag.String("price", "100.00", "limit price")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list e.g. 10,20,50")
	levels := flag.Int("levels", 5, "depth levels to request")

	orderID := flag.String("id", "", "order UUID, required for cancel and status")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := order.Buy
	if strings.EqualFold(*sideStr, "sell") {
		side = order.Sell
	}

	orderType, err := parseOrderType(*typeStr)
	if err != nil {
		log.Fatal(err)
	}

	switch strings.ToLower(*action) {
	case "place":
		limitPrice := decimal.Zero
		if orderType.RequiresPrice() {
			limitPrice, err = decimal.NewFromString(*price)
			if err != nil {
				log.Fatalf("invalid price %q: %v", *price, err)
			}
		}
		for _, qty := range parseQuantities(*qtyStr) {
			msg := wire.NewOrderMessage{
				OrderType: orderType,
				Side:      side,
				Symbol:    *symbol,
				Quantity:  qty,
				Price:     limitPrice,
				Username:  *owner,
			}
			if _, err := conn.Write(wire.SerializeNewOrder(msg)); err != nil {
				log.Printf("failed to place order (qty %s): %v", qty, err)
			} else {
				fmt.Printf("-> sent %s %s %s %s @ %s\n", strings.ToUpper(*typeStr), strings.ToUpper(*sideStr), qty, *symbol, limitPrice)
			}
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		id := mustParseUUID(*orderID)
		msg := wire.CancelOrderMessage{Symbol: *symbol, OrderID: id}
		if _, err := conn.Write(wire.SerializeCancelOrder(msg)); err != nil {
			log.Printf("failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> sent cancel request for %s\n", id)
		}

	case "status":
		id := mustParseUUID(*orderID)
		msg := wire.OrderStatusRequestMessage{Symbol: *symbol, OrderID: id}
		if _, err := conn.Write(wire.SerializeOrderStatusRequest(msg)); err != nil {
			log.Printf("failed to send status request: %v", err)
		} else {
			fmt.Printf("-> sent status request for %s\n", id)
		}

	case "depth":
		msg := wire.DepthRequestMessage{Symbol: *symbol, Levels: uint16(*levels)}
		if _, err := conn.Write(wire.SerializeDepthRequest(msg)); err != nil {
			log.Printf("failed to send depth request: %v", err)
		} else {
			fmt.Printf("-> sent depth request for %s\n", *symbol)
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (Ctrl+C to exit)")
	select {}
}

func parseOrderType(s string) (order.Type, error) {
	switch strings.ToLower(s) {
	case "limit":
		return order.Limit, nil
	case "market":
		return order.Market, nil
	case "ioc":
		return order.IOC, nil
	case "fok":
		return order.FOK, nil
	default:
		return 0, fmt.Errorf("unknown order type: %s", s)
	}
}

func mustParseUUID(s string) uuid.UUID {
	if s == "" {
		log.Fatal("-id is required for this action")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		log.Fatalf("invalid order id %q: %v", s, err)
	}
	return id
}

func parseQuantities(input string) []decimal.Decimal {
	var result []decimal.Decimal
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		q, err := decimal.NewFromString(p)
		if err != nil {
			log.Printf("warning: invalid quantity %q, skipping", p)
			continue
		}
		result = append(result, q)
	}
	return result
}

// readReports continuously reads and prints report messages pushed
// back by the server until the connection closes.
func readReports(conn net.Conn) {
	buf := make([]byte, 4*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			fmt.Printf("\nconnection closed: %v\n", err)
			os.Exit(0)
		}
		printReport(buf[:n])
	}
}

func printReport(raw []byte) {
	if len(raw) < 2 {
		return
	}
	reportType := wire.ReportType(int(raw[0])<<8 | int(raw[1]))
	switch reportType {
	case wire.ExecutionReport:
		fmt.Printf("\n[EXECUTION] %s\n", describeExecution(raw))
	case wire.AckReport:
		fmt.Printf("\n[ACK] %s\n", describeAck(raw))
	case wire.ErrorReport:
		fmt.Printf("\n[ERROR] %s\n", describeError(raw))
	case wire.OrderStatusReport:
		fmt.Printf("\n[STATUS] %s\n", describeStatus(raw))
	case wire.DepthReport:
		fmt.Printf("\n[DEPTH] %s\n", describeDepth(raw))
	default:
		fmt.Printf("\n[UNKNOWN] %d bytes\n", len(raw))
	}
}

// The parsing helpers below walk the same length-prefixed layout
// wire.Serialize* writes, skipping the 2-byte type header already
// consumed by printReport. They exist only for display: meridiactl
// does not need to round-trip these into Go structs.

func describeExecution(raw []byte) string {
	r := newDisplayReader(raw[2:])
	tradeID := r.uuid()
	symbol := r.string16()
	price := r.string16()
	qty := r.string16()
	aggressor := r.byteVal()
	maker := r.uuid()
	taker := r.uuid()
	side := "BUY"
	if order.Side(aggressor) == order.Sell {
		side = "SELL"
	}
	return fmt.Sprintf("trade=%s %s %s %s @ %s maker=%s taker=%s", tradeID, side, symbol, qty, price, maker, taker)
}

func describeAck(raw []byte) string {
	r := newDisplayReader(raw[2:])
	id := r.uuid()
	status := order.Status(r.byteVal())
	filled := r.string16()
	total := r.string16()
	msg := r.string16()
	return fmt.Sprintf("order=%s status=%s filled=%s/%s %q", id, status, filled, total, msg)
}

func describeError(raw []byte) string {
	r := newDisplayReader(raw[2:])
	return r.string16()
}

func describeStatus(raw []byte) string {
	r := newDisplayReader(raw[2:])
	found := r.byteVal() == 1
	id := r.uuid()
	if !found {
		return fmt.Sprintf("order=%s not found", id)
	}
	status := order.Status(r.byteVal())
	filled := r.string16()
	total := r.string16()
	return fmt.Sprintf("order=%s status=%s filled=%s/%s", id, status, filled, total)
}

func describeDepth(raw []byte) string {
	r := newDisplayReader(raw[2:])
	symbol := r.string16()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", symbol)
	nBids := r.uint16Val()
	sb.WriteString(" bids=[")
	for i := 0; i < int(nBids); i++ {
		price := r.string16()
		vol := r.string16()
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s@%s", vol, price)
	}
	sb.WriteString("] asks=[")
	nAsks := r.uint16Val()
	for i := 0; i < int(nAsks); i++ {
		price := r.string16()
		vol := r.string16()
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s@%s", vol, price)
	}
	sb.WriteString("]")
	return sb.String()
}

// displayReader is a minimal positional byte reader for printing
// report bodies; it assumes well-formed input from a trusted server
// and does not return errors.
type displayReader struct {
	buf []byte
	pos int
}

func newDisplayReader(buf []byte) *displayReader { return &displayReader{buf: buf} }

func (r *displayReader) byteVal() byte {
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *displayReader) uint16Val() uint16 {
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v
}

func (r *displayReader) raw(n int) []byte {
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *displayReader) string16() string {
	n := r.uint16Val()
	return string(r.raw(int(n)))
}

func (r *displayReader) uuid() uuid.UUID {
	id, _ := uuid.FromBytes(r.raw(16))
	return id
}
