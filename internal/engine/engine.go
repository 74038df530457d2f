package engine

import (
	"fmt"
	"sync/atomic"

	"skoll/internal/common"
)

// Engine is the venue façade: it mints exchange ids, admits intents,
// routes them to the instrument's book under that book's lock, and
// fans state changes out to the listener. It is re-entrant across
// instruments; operations on one instrument serialize on its book.
type Engine struct {
	books    bookMap
	orders   *orderMap
	nextID   atomic.Int64
	listener Listener
}

// New builds an engine publishing to listener. A nil listener is
// replaced with a no-op.
func New(listener Listener) *Engine {
	if listener == nil {
		listener = NopListener{}
	}
	return &Engine{
		orders:   newOrderMap(),
		listener: listener,
	}
}

// Buy admits a limit buy and returns its exchange id.
func (e *Engine) Buy(sessionID, instrument string, price common.Fixed, quantity int64, clientOrderID string) (int64, error) {
	return e.submit(sessionID, instrument, common.Limit(price), quantity, common.Buy, clientOrderID)
}

// Sell admits a limit sell and returns its exchange id.
func (e *Engine) Sell(sessionID, instrument string, price common.Fixed, quantity int64, clientOrderID string) (int64, error) {
	return e.submit(sessionID, instrument, common.Limit(price), quantity, common.Sell, clientOrderID)
}

// MarketBuy admits a buy that crosses any finite ask. The unfilled
// remainder, if any, is cancelled before the call returns.
func (e *Engine) MarketBuy(sessionID, instrument string, quantity int64, clientOrderID string) (int64, error) {
	return e.submit(sessionID, instrument, common.MarketBuy, quantity, common.Buy, clientOrderID)
}

// MarketSell admits a sell that crosses any finite bid.
func (e *Engine) MarketSell(sessionID, instrument string, quantity int64, clientOrderID string) (int64, error) {
	return e.submit(sessionID, instrument, common.MarketSell, quantity, common.Sell, clientOrderID)
}

func (e *Engine) submit(sessionID, instrument string, price common.Price, quantity int64, side common.Side, clientOrderID string) (int64, error) {
	if quantity <= 0 {
		return 0, common.ErrInvalidQuantity
	}
	book, err := e.books.getOrCreate(instrument, e.listener)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrAdmission, err)
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	id := e.nextID.Add(1)
	order := newOrder(id, sessionID, clientOrderID, instrument, price, quantity, side, false)
	e.orders.add(order)
	book.insertOrder(order)
	return id, nil
}

// Quote replaces the two-sided (session, quoteId) quote in place. A
// side with zero quantity is withdrawn; negative quantities are
// rejected. Replacement loses time priority.
func (e *Engine) Quote(sessionID, instrument string, bidPrice common.Fixed, bidQuantity int64, askPrice common.Fixed, askQuantity int64, quoteID string) error {
	if bidQuantity < 0 || askQuantity < 0 {
		return common.ErrInvalidQuantity
	}
	book, err := e.books.getOrCreate(instrument, e.listener)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrAdmission, err)
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	book.quote(sessionID, quoteID, bidPrice, bidQuantity, askPrice, askQuantity,
		func(side common.Side, px common.Fixed, qty int64) *Order {
			id := e.nextID.Add(1)
			order := newOrder(id, sessionID, quoteID, instrument, common.Limit(px), qty, side, true)
			e.orders.add(order)
			return order
		})
	return nil
}

// Cancel pulls a resting order. Only the submitting session may cancel;
// terminal or never-listed orders report ErrNotCancelable.
func (e *Engine) Cancel(exchangeID int64, sessionID string) error {
	order := e.orders.get(exchangeID)
	if order == nil {
		return common.ErrUnknownOrder
	}
	if order.sessionID != sessionID {
		return common.ErrSessionMismatch
	}
	book := e.books.get(order.instrument)
	if book == nil {
		return common.ErrUnknownOrder
	}

	book.mu.Lock()
	defer book.mu.Unlock()
	return book.cancelOrder(order)
}

// Order returns a point-in-time snapshot of the order.
func (e *Engine) Order(exchangeID int64) (OrderSnapshot, bool) {
	order := e.orders.get(exchangeID)
	if order == nil {
		return OrderSnapshot{}, false
	}
	book := e.books.get(order.instrument)
	if book == nil {
		return OrderSnapshot{}, false
	}

	book.mu.Lock()
	defer book.mu.Unlock()
	return order.Snapshot(), true
}

// Book returns a point-in-time aggregated snapshot for the instrument.
func (e *Engine) Book(instrument string) (Book, bool) {
	book := e.books.get(instrument)
	if book == nil {
		return Book{}, false
	}

	book.mu.Lock()
	defer book.mu.Unlock()
	return book.snapshot(), true
}

// Instruments lists every instrument that has seen an order.
func (e *Engine) Instruments() []string {
	return e.books.instruments()
}

// Orders snapshots every order ever admitted, in no particular order.
// Each snapshot is taken under its book's lock.
func (e *Engine) Orders() []OrderSnapshot {
	orders := e.orders.all()
	out := make([]OrderSnapshot, 0, len(orders))
	for _, order := range orders {
		book := e.books.get(order.instrument)
		if book == nil {
			continue
		}
		book.mu.Lock()
		out = append(out, order.Snapshot())
		book.mu.Unlock()
	}
	return out
}
