// Package server hosts the TCP session server: it accepts client
// connections, decodes wire.Message requests off a worker pool, submits
// them to the matching engine, and pushes back acknowledgements, errors,
// and execution reports to both sides of every trade.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"meridian/internal/engine"
	"meridian/internal/merrors"
	"meridian/internal/order"
	"meridian/internal/telemetry"
	"meridian/internal/wire"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var ErrImproperConversion = errors.New("improper task type conversion")

// clientSession tracks one live TCP connection and, once the client has
// identified itself on a NewOrder, the owner name trade execution
// reports are routed to.
type clientSession struct {
	conn  net.Conn
	owner string
}

// clientMessage links a decoded request to the connection it arrived
// on, so the session loop can reply to the right place.
type clientMessage struct {
	address string
	message wire.Message
}

// Server accepts connections on one TCP address and brokers every
// request to a shared matching engine.
type Server struct {
	address string
	port    int
	engine  *engine.Engine

	pool   WorkerPool
	cancel context.CancelFunc

	mu              sync.Mutex
	sessions        map[string]*clientSession // by remote address
	sessionsByOwner map[string]*clientSession

	messages chan clientMessage
}

// New constructs a server bound to address:port that dispatches every
// decoded request to eng, using the default worker pool size. The
// listener is not opened until Run.
func New(address string, port int, eng *engine.Engine) *Server {
	return NewWithWorkers(address, port, eng, defaultNWorkers)
}

// NewWithWorkers is New with an explicit session worker pool size, for
// callers wiring it to config.Config.WorkerPoolSize.
func NewWithWorkers(address string, port int, eng *engine.Engine, workers int) *Server {
	s := &Server{
		address:         address,
		port:            port,
		engine:          eng,
		pool:            NewWorkerPool(workers),
		sessions:        make(map[string]*clientSession),
		sessionsByOwner: make(map[string]*clientSession),
		messages:        make(chan clientMessage, workers),
	}
	eng.RegisterTradeCallback(s.onTrade)
	return s
}

// Run opens the listener and blocks until ctx is cancelled or a fatal
// worker error occurs.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("error closing listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionLoop(t)
	})

	log.Info().Str(telemetry.FieldAddress, s.address).Int("port", s.port).Msg("server listening")

	for {
		select {
		case <-ctx.Done():
			return t.Wait()
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting connection")
				continue
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown cancels the running server's context, unblocking Run.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) sessionLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.messages:
			if err := s.dispatch(msg); err != nil {
				log.Error().Err(err).Str(telemetry.FieldAddress, msg.address).Msg("error dispatching request")
				s.writeError(msg.address, err)
			}
		}
	}
}

func (s *Server) dispatch(msg clientMessage) error {
	switch m := msg.message.(type) {
	case wire.HeartbeatMessage:
		return nil
	case wire.NewOrderMessage:
		return s.handleNewOrder(msg.address, m)
	case wire.CancelOrderMessage:
		return s.handleCancelOrder(msg.address, m)
	case wire.OrderStatusRequestMessage:
		return s.handleOrderStatusRequest(msg.address, m)
	case wire.DepthRequestMessage:
		return s.handleDepthRequest(msg.address, m)
	default:
		return fmt.Errorf("%w: unhandled message %T", wire.ErrInvalidMessageType, m)
	}
}

func (s *Server) handleNewOrder(address string, m wire.NewOrderMessage) error {
	if m.Username != "" {
		s.associateOwner(address, m.Username)
	}

	o, err := order.New(m.Symbol, m.Side, m.OrderType, m.Quantity, m.Price, m.Username)
	if err != nil {
		return err
	}

	result, err := s.engine.Submit(o)
	if err != nil {
		return err
	}

	return s.writeTo(address, wire.SerializeAckReport(wire.AckReportMessage{
		OrderID: result.Order.ID,
		Status:  result.Order.Status,
		Filled:  result.Order.Filled,
		Total:   result.Order.Quantity,
		Message: result.Message,
	}))
}

func (s *Server) handleCancelOrder(address string, m wire.CancelOrderMessage) error {
	if err := s.engine.Cancel(m.Symbol, m.OrderID); err != nil {
		return err
	}
	return s.writeTo(address, wire.SerializeAckReport(wire.AckReportMessage{
		OrderID: m.OrderID,
		Status:  order.Cancelled,
		Filled:  decimal.Zero,
		Total:   decimal.Zero,
		Message: "order cancelled",
	}))
}

func (s *Server) handleOrderStatusRequest(address string, m wire.OrderStatusRequestMessage) error {
	o, found := s.engine.GetOrderStatus(m.Symbol, m.OrderID)
	report := wire.OrderStatusReportMessage{Found: found, OrderID: m.OrderID}
	if found {
		report.Status = o.Status
		report.Filled = o.Filled
		report.Total = o.Quantity
	}
	return s.writeTo(address, wire.SerializeOrderStatusReport(report))
}

func (s *Server) handleDepthRequest(address string, m wire.DepthRequestMessage) error {
	ob, ok := s.engine.GetOrderBook(m.Symbol)
	if !ok {
		return fmt.Errorf("%w: no order book for symbol %s", merrors.ErrOrderNotFound, m.Symbol)
	}
	depth := ob.Depth(int(m.Levels))
	return s.writeTo(address, wire.SerializeDepthReport(wire.DepthReportMessage{
		Symbol: depth.Symbol,
		Bids:   depth.Bids,
		Asks:   depth.Asks,
	}))
}

// onTrade fans an execution report out to both the maker's and taker's
// sessions, if either is currently connected and has identified itself.
// Registered once at construction; see engine.TradeCallback. The
// callback runs under the engine lock and the owner lookups take that
// lock, so they run on their own goroutine once the submission returns.
func (s *Server) onTrade(trade order.Trade, takerOrderID uuid.UUID) {
	report := wire.SerializeExecutionReport(wire.ExecutionReportFromTrade(trade))

	go func() {
		maker, ok := s.engine.GetOrderStatus(trade.Symbol, trade.MakerOrderID)
		if ok && maker.Owner != "" {
			s.writeToOwner(maker.Owner, report)
		}
		taker, ok := s.engine.GetOrderStatus(trade.Symbol, takerOrderID)
		if ok && taker.Owner != "" {
			s.writeToOwner(taker.Owner, report)
		}
	}()
}

func (s *Server) writeError(address string, cause error) {
	if err := s.writeTo(address, wire.SerializeErrorReport(wire.ErrorReportMessage{Err: cause.Error()})); err != nil {
		log.Error().Err(err).Str(telemetry.FieldAddress, address).Msg("failed writing error report")
	}
}

func (s *Server) writeTo(address string, payload []byte) error {
	s.mu.Lock()
	session, ok := s.sessions[address]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no session for address %s", merrors.ErrOrderNotFound, address)
	}
	_, err := session.conn.Write(payload)
	return err
}

func (s *Server) writeToOwner(owner string, payload []byte) {
	s.mu.Lock()
	session, ok := s.sessionsByOwner[owner]
	s.mu.Unlock()
	if !ok {
		return
	}
	if _, err := session.conn.Write(payload); err != nil {
		log.Error().Err(err).Str("owner", owner).Msg("failed writing execution report")
	}
}

func (s *Server) associateOwner(address, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[address]
	if !ok {
		return
	}
	session.owner = owner
	s.sessionsByOwner[owner] = session
}

func (s *Server) addSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = &clientSession{conn: conn}
}

func (s *Server) removeSession(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[address]
	if !ok {
		return
	}
	if session.owner != "" {
		delete(s.sessionsByOwner, session.owner)
	}
	delete(s.sessions, address)
}

// handleConnection reads exactly one message off conn, forwards it to
// the session loop, and returns the connection to the pool for its next
// read. A read failure tears the session down; a parse failure is
// reported back to the client and the connection stays in the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str(telemetry.FieldAddress, conn.RemoteAddr().String()).Msg("failed setting read deadline")
		s.closeAndRemove(conn)
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	n, err := conn.Read(buffer)
	if err != nil {
		log.Debug().Err(err).Str(telemetry.FieldAddress, conn.RemoteAddr().String()).Msg("connection closed")
		s.closeAndRemove(conn)
		return nil
	}

	message, err := wire.ParseMessage(buffer[:n])
	if err != nil {
		log.Error().Err(err).Str(telemetry.FieldAddress, conn.RemoteAddr().String()).Msg("error parsing message")
		s.writeError(conn.RemoteAddr().String(), err)
		s.pool.AddTask(conn)
		return nil
	}

	s.messages <- clientMessage{address: conn.RemoteAddr().String(), message: message}
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) closeAndRemove(conn net.Conn) {
	address := conn.RemoteAddr().String()
	if err := conn.Close(); err != nil {
		log.Error().Err(err).Str(telemetry.FieldAddress, address).Msg("error closing connection")
	}
	s.removeSession(address)
}
