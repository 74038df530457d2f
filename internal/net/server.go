package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/common"
	"skoll/internal/engine"
	"skoll/internal/utils"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
	eventQueueSize     = 4096
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession tracks one connected TCP session. The session id the
// engine sees is the client's remote address.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a parsed message to the session that sent it.
type ClientMessage struct {
	sessionID string
	message   Message
}

// event is one listener callback queued for asynchronous delivery.
// The engine invokes the listener under the book lock, so the server
// never writes to sockets from inside it.
type event struct {
	order *engine.OrderSnapshot
	trade *engine.Trade
}

type Server struct {
	address            string
	port               int
	engine             *engine.Engine
	feed               *Feed
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
	events             chan event
}

func New(address string, port, workers int) *Server {
	if workers <= 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		pool:           utils.NewWorkerPool(workers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		events:         make(chan event, eventQueueSize),
	}
}

// SetEngine wires the matching engine the server drives.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetFeed attaches a market-data feed that mirrors every event.
func (s *Server) SetFeed(feed *Feed) {
	s.feed = feed
}

// OnOrder implements engine.Listener. Must not block: the queue is
// bounded and overflow is dropped with a log line.
func (s *Server) OnOrder(order engine.OrderSnapshot) {
	select {
	case s.events <- event{order: &order}:
	default:
		log.Warn().Int64("exchange_id", order.ExchangeID).Msg("event queue full, order update dropped")
	}
}

// OnTrade implements engine.Listener.
func (s *Server) OnTrade(trade engine.Trade) {
	select {
	case s.events <- event{trade: &trade}:
	default:
		log.Warn().Int64("exec_id", trade.ExecID).Msg("event queue full, trade dropped")
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	s.pool.Setup(t, s.handleConnection)

	t.Go(func() error {
		return s.sessionHandler(t)
	})
	t.Go(func() error {
		return s.reporter(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler applies client messages to the engine one at a time
// and sends the immediate response back to the submitting session.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.clientMessages:
			s.handleMessage(cm)
		}
	}
}

func (s *Server) handleMessage(cm ClientMessage) {
	switch m := cm.message.(type) {
	case *NewOrderMessage:
		s.handleNewOrder(cm.sessionID, m)
	case *CancelOrderMessage:
		report := Report{TypeOf: OrderAck, ExchangeID: m.ExchangeID}
		if err := s.engine.Cancel(m.ExchangeID, cm.sessionID); err != nil {
			report = Report{TypeOf: RejectReport, ExchangeID: m.ExchangeID, Reason: err.Error()}
		}
		s.sendReport(cm.sessionID, report)
	case *NewQuoteMessage:
		report := Report{TypeOf: QuoteAck, Instrument: m.Instrument}
		err := s.engine.Quote(
			cm.sessionID, m.Instrument,
			common.FixedFromRaw(m.BidPrice), int64(m.BidQuantity),
			common.FixedFromRaw(m.AskPrice), int64(m.AskQuantity),
			m.QuoteID,
		)
		if err != nil {
			report = Report{TypeOf: RejectReport, Instrument: m.Instrument, Reason: err.Error()}
		}
		s.sendReport(cm.sessionID, report)
	case BaseMessage:
		// heartbeat, nothing to do
	default:
		log.Warn().Str("session", cm.sessionID).Msg("unhandled message")
	}
}

func (s *Server) handleNewOrder(sessionID string, m *NewOrderMessage) {
	var id int64
	var err error
	switch {
	case m.Side == common.Buy && m.Market:
		id, err = s.engine.MarketBuy(sessionID, m.Instrument, int64(m.Quantity), m.ClientOrderID)
	case m.Side == common.Buy:
		id, err = s.engine.Buy(sessionID, m.Instrument, common.FixedFromRaw(m.Price), int64(m.Quantity), m.ClientOrderID)
	case m.Market:
		id, err = s.engine.MarketSell(sessionID, m.Instrument, int64(m.Quantity), m.ClientOrderID)
	default:
		id, err = s.engine.Sell(sessionID, m.Instrument, common.FixedFromRaw(m.Price), int64(m.Quantity), m.ClientOrderID)
	}

	if err != nil {
		s.sendReport(sessionID, Report{TypeOf: RejectReport, Instrument: m.Instrument, Reason: err.Error()})
		return
	}
	s.sendReport(sessionID, Report{TypeOf: OrderAck, ExchangeID: id, Instrument: m.Instrument})
}

// reporter drains the listener queue: fills go to both counterparties,
// cancels to their owner, everything mirrors to the feed.
func (s *Server) reporter(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case ev := <-s.events:
			if ev.trade != nil {
				s.reportTrade(*ev.trade)
				if s.feed != nil {
					s.feed.PublishTrade(*ev.trade)
				}
			}
			if ev.order != nil {
				if ev.order.IsCancelled() {
					s.sendReport(ev.order.SessionID, Report{
						TypeOf:     OrderAck,
						ExchangeID: ev.order.ExchangeID,
						Instrument: ev.order.Instrument,
					})
				}
				if s.feed != nil {
					s.feed.PublishOrder(*ev.order)
				}
			}
		}
	}
}

func (s *Server) reportTrade(trade engine.Trade) {
	for _, party := range []engine.OrderSnapshot{trade.Aggressor, trade.Passive} {
		s.sendReport(party.SessionID, Report{
			TypeOf:     ExecutionReport,
			ExchangeID: party.ExchangeID,
			ExecID:     trade.ExecID,
			Price:      trade.Price.Raw(),
			Quantity:   uint64(trade.Quantity),
			Instrument: party.Instrument,
		})
	}
}

func (s *Server) sendReport(sessionID string, report Report) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[sessionID]
	if !ok {
		// Session gone or never connected over TCP (e.g. a test
		// driving the engine directly); nothing to deliver.
		return
	}

	if _, err := client.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("unable to send report")
		delete(s.clientSessions, sessionID)
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection and passes it to sessionHandler. A dead
// connection tears the session down.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	sessionID := conn.RemoteAddr().String()

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("session", sessionID).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			s.dropClientSession(sessionID, conn)
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("session", sessionID).
				Msg("error parsing message")
			s.dropClientSession(sessionID, conn)
			return nil
		}

		s.clientMessages <- ClientMessage{
			sessionID: sessionID,
			message:   message,
		}

		// Push the connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

func (s *Server) dropClientSession(sessionID string, conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if err := conn.Close(); err != nil {
		log.Error().Str("session", sessionID).Err(err).Msg("error closing connection")
	}
	delete(s.clientSessions, sessionID)
}
