package net

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
)

const (
	feedQueueSize    = 1024
	clientQueueSize  = 256
	feedWriteTimeout = 5 * time.Second
)

// TradePrint is the JSON shape pushed to feed subscribers on every
// execution.
type TradePrint struct {
	Type        string `json:"type"`
	Instrument  string `json:"instrument"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	AggressorID int64  `json:"aggressor_id"`
	PassiveID   int64  `json:"passive_id"`
	ExecID      int64  `json:"exec_id"`
}

// OrderUpdate is the JSON shape pushed on order state transitions.
type OrderUpdate struct {
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
	ExchangeID int64  `json:"exchange_id"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Quantity   int64  `json:"quantity"`
	Remaining  int64  `json:"remaining"`
	Filled     int64  `json:"filled"`
	State      string `json:"state"`
}

// Feed broadcasts trade prints and order updates to websocket
// subscribers. Publishers never block: a slow subscriber's queue
// overflows and the subscriber is disconnected.
type Feed struct {
	address     string
	port        int
	upgrader    websocket.Upgrader
	clientsLock sync.Mutex
	clients     map[*feedClient]struct{}
	messages    chan any
}

type feedClient struct {
	conn *websocket.Conn
	send chan any
}

func NewFeed(address string, port int) *Feed {
	return &Feed{
		address:  address,
		port:     port,
		upgrader: websocket.Upgrader{},
		clients:  make(map[*feedClient]struct{}),
		messages: make(chan any, feedQueueSize),
	}
}

func (f *Feed) PublishTrade(trade engine.Trade) {
	f.publish(TradePrint{
		Type:        "trade",
		Instrument:  trade.Aggressor.Instrument,
		Price:       trade.Price.String(),
		Quantity:    trade.Quantity,
		AggressorID: trade.Aggressor.ExchangeID,
		PassiveID:   trade.Passive.ExchangeID,
		ExecID:      trade.ExecID,
	})
}

func (f *Feed) PublishOrder(order engine.OrderSnapshot) {
	f.publish(OrderUpdate{
		Type:       "order",
		Instrument: order.Instrument,
		ExchangeID: order.ExchangeID,
		Side:       order.Side.String(),
		Price:      order.Price.String(),
		Quantity:   order.Quantity,
		Remaining:  order.Remaining,
		Filled:     order.Filled,
		State:      orderState(order),
	})
}

func orderState(order engine.OrderSnapshot) string {
	switch {
	case order.IsFilled():
		return "filled"
	case order.IsCancelled():
		return "cancelled"
	case order.Filled > 0:
		return "partial"
	default:
		return "resting"
	}
}

func (f *Feed) publish(msg any) {
	select {
	case f.messages <- msg:
	default:
		log.Warn().Msg("feed queue full, message dropped")
	}
}

// Run serves the websocket endpoint and fans queued messages out until
// the context ends.
func (f *Feed) Run(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", f.handleSubscribe)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", f.address, f.port),
		Handler: mux,
	}

	go f.broadcast(ctx)
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("error closing feed server")
		}
	}()

	log.Info().Str("address", f.address).Int("port", f.port).Msg("feed running")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("feed server stopped")
	}
}

func (f *Feed) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("feed upgrade failed")
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan any, clientQueueSize),
	}
	f.clientsLock.Lock()
	f.clients[client] = struct{}{}
	f.clientsLock.Unlock()

	log.Info().Str("address", conn.RemoteAddr().String()).Msg("feed subscriber added")
	go f.writer(client)
}

func (f *Feed) broadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.messages:
			f.clientsLock.Lock()
			for client := range f.clients {
				select {
				case client.send <- msg:
				default:
					// Subscriber cannot keep up; cut it loose
					// rather than buffer without bound.
					delete(f.clients, client)
					close(client.send)
				}
			}
			f.clientsLock.Unlock()
		}
	}
}

func (f *Feed) writer(client *feedClient) {
	defer func() {
		f.clientsLock.Lock()
		delete(f.clients, client)
		f.clientsLock.Unlock()
		if err := client.conn.Close(); err != nil {
			log.Error().Err(err).Msg("error closing feed subscriber")
		}
	}()

	for msg := range client.send {
		if err := client.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
			return
		}
		if err := client.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
