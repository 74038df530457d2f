package engine

import (
	"sync/atomic"
	"time"

	"skoll/internal/common"
)

// Order carries immutable identity plus lifecycle counters. Only the
// owning book mutates the counters, under its lock. The order lives for
// the process lifetime: the order directory and any listener may hold
// references long after it goes terminal.
type Order struct {
	// next chains orders inside an orderMap bucket.
	next atomic.Pointer[Order]
	// node is the FIFO handle while resting on a price level, nil
	// when detached.
	node *levelNode

	exchangeID    int64
	sessionID     string
	clientOrderID string
	instrument    string
	side          common.Side
	submittedAt   time.Time
	quote         bool

	price     common.Price
	quantity  int64
	remaining int64
	filled    int64
	cumQty    int64
	avgPrice  common.Fixed
}

func newOrder(exchangeID int64, sessionID, clientOrderID, instrument string, price common.Price, quantity int64, side common.Side, quote bool) *Order {
	return &Order{
		exchangeID:    exchangeID,
		sessionID:     sessionID,
		clientOrderID: clientOrderID,
		instrument:    instrument,
		side:          side,
		submittedAt:   time.Now(),
		quote:         quote,
		price:         price,
		quantity:      quantity,
		remaining:     quantity,
	}
}

func (o *Order) ExchangeID() int64          { return o.exchangeID }
func (o *Order) SessionID() string          { return o.sessionID }
func (o *Order) ClientOrderID() string      { return o.clientOrderID }
func (o *Order) Instrument() string         { return o.instrument }
func (o *Order) Side() common.Side          { return o.side }
func (o *Order) SubmittedAt() time.Time     { return o.submittedAt }
func (o *Order) IsQuote() bool              { return o.quote }
func (o *Order) Price() common.Price        { return o.price }
func (o *Order) Quantity() int64            { return o.quantity }
func (o *Order) Remaining() int64           { return o.remaining }
func (o *Order) Filled() int64              { return o.filled }
func (o *Order) CumulativeFilled() int64    { return o.cumQty }
func (o *Order) AveragePrice() common.Fixed { return o.avgPrice }

func (o *Order) IsMarket() bool    { return o.price.IsMarket() }
func (o *Order) IsActive() bool    { return o.remaining > 0 }
func (o *Order) IsFilled() bool    { return o.remaining == 0 && o.filled == o.quantity }
func (o *Order) IsCancelled() bool { return o.remaining == 0 && o.filled < o.quantity }

func (o *Order) isListed() bool { return o.node != nil }

// fill records an execution of qty at px. Caller guarantees
// 0 < qty <= remaining.
func (o *Order) fill(qty int64, px common.Fixed) {
	o.remaining -= qty
	o.filled += qty
	o.avgPrice = o.avgPrice.MulInt(o.cumQty).Add(px.MulInt(qty)).DivInt(o.cumQty + qty)
	o.cumQty += qty
}

// cancel zeroes the open quantity without touching filled.
func (o *Order) cancel() {
	o.remaining = 0
}

// relistAs rearms a detached quote order with a new price and size.
// Cumulative fill accounting carries across revisions.
func (o *Order) relistAs(px common.Price, qty int64) {
	o.price = px
	o.quantity = qty
	o.remaining = qty
	o.filled = 0
}

// Snapshot copies the order's current state. Snapshots handed to
// observers are frozen; the live order may move on.
func (o *Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ExchangeID:       o.exchangeID,
		SessionID:        o.sessionID,
		ClientOrderID:    o.clientOrderID,
		Instrument:       o.instrument,
		Side:             o.side,
		SubmittedAt:      o.submittedAt,
		IsQuote:          o.quote,
		Price:            o.price,
		Quantity:         o.quantity,
		Remaining:        o.remaining,
		Filled:           o.filled,
		CumulativeFilled: o.cumQty,
		AveragePrice:     o.avgPrice,
	}
}

type OrderSnapshot struct {
	ExchangeID       int64
	SessionID        string
	ClientOrderID    string
	Instrument       string
	Side             common.Side
	SubmittedAt      time.Time
	IsQuote          bool
	Price            common.Price
	Quantity         int64
	Remaining        int64
	Filled           int64
	CumulativeFilled int64
	AveragePrice     common.Fixed
}

func (s OrderSnapshot) IsActive() bool    { return s.Remaining > 0 }
func (s OrderSnapshot) IsFilled() bool    { return s.Remaining == 0 && s.Filled == s.Quantity }
func (s OrderSnapshot) IsCancelled() bool { return s.Remaining == 0 && s.Filled < s.Quantity }
