package engine

import (
	"sync"
	"time"

	"skoll/internal/common"
)

// BookLevel is one aggregated price level in a snapshot.
type BookLevel struct {
	Price    common.Fixed
	Quantity int64
}

// Book is a point-in-time aggregation of the resting book, best price
// first on both sides.
type Book struct {
	Bids        []BookLevel
	BidOrderIDs []int64
	Asks        []BookLevel
	AskOrderIDs []int64
}

type quoteKey struct {
	sessionID string
	quoteID   string
}

// quotePair tracks the two identity-preserving orders behind a
// (session, quoteId) quote stream. A side is nil until its first
// nonzero quantity.
type quotePair struct {
	bid *Order
	ask *Order
}

// OrderBook matches one instrument. All mutation and every read runs
// under mu; callbacks fire while it is held, so one operation's events
// never interleave with another's on the same book.
type OrderBook struct {
	instrument string
	mu         sync.Mutex
	bids       *ladder
	asks       *ladder
	quotes     map[quoteKey]*quotePair
	listener   Listener
	lastExecID int64
}

func newOrderBook(instrument string, listener Listener) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       newLadder(common.Buy),
		asks:       newLadder(common.Sell),
		quotes:     make(map[quoteKey]*quotePair),
		listener:   listener,
	}
}

func (b *OrderBook) Instrument() string {
	return b.instrument
}

func (b *OrderBook) sideLadder(side common.Side) *ladder {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// insertOrder rests the order on its side and runs the match. Caller
// holds mu.
func (b *OrderBook) insertOrder(o *Order) {
	if o == nil || o.remaining <= 0 {
		return
	}
	b.sideLadder(o.side).insert(o)
	b.listener.OnOrder(o.Snapshot())
	b.match(o.side)
}

// match consumes crossing fronts in price-time priority. Each trade
// prices at the passive (resting) front's limit price; a market
// aggressor therefore takes whatever finite price it crosses into.
// Any market-order remainder left at the front afterwards is cancelled:
// market orders never rest.
func (b *OrderBook) match(aggressorSide common.Side) {
	for {
		bid := b.bids.front()
		ask := b.asks.front()
		if bid == nil || ask == nil || bid.price.Cmp(ask.price) < 0 {
			break
		}

		aggressor, passive := bid, ask
		if aggressorSide == common.Sell {
			aggressor, passive = ask, bid
		}

		qty := min(bid.remaining, ask.remaining)
		px := passive.price.Value()

		bid.fill(qty, px)
		ask.fill(qty, px)

		if bid.remaining == 0 {
			b.bids.remove(bid)
		}
		if ask.remaining == 0 {
			b.asks.remove(ask)
		}

		b.listener.OnOrder(passive.Snapshot())
		b.listener.OnOrder(aggressor.Snapshot())
		b.listener.OnTrade(Trade{
			Price:     px,
			Quantity:  qty,
			Aggressor: aggressor.Snapshot(),
			Passive:   passive.Snapshot(),
			ExecID:    b.nextExecID(),
		})
	}

	own := b.sideLadder(aggressorSide)
	if front := own.front(); front != nil && front.IsMarket() {
		front.cancel()
		own.remove(front)
		b.listener.OnOrder(front.Snapshot())
	}
}

// nextExecID derives the execution id from the wall clock, monotonized
// per book.
func (b *OrderBook) nextExecID() int64 {
	now := time.Now().UnixNano()
	if now <= b.lastExecID {
		now = b.lastExecID + 1
	}
	b.lastExecID = now
	return now
}

// cancelOrder removes a live resting order. Terminal or never-listed
// orders are reported not-cancelable. Caller holds mu.
func (b *OrderBook) cancelOrder(o *Order) error {
	if o == nil || o.remaining <= 0 || !o.isListed() {
		return common.ErrNotCancelable
	}
	o.cancel()
	b.sideLadder(o.side).remove(o)
	b.listener.OnOrder(o.Snapshot())
	return nil
}

// quote replaces the (session, quoteId) pair in place. Listed sides are
// detached without a cancel event, then each side with nonzero quantity
// is relisted at the back of its level and matched. A side with zero
// quantity stays detached until a later quote revives it. alloc mints a
// registered quote order for a side the pair has not used before.
// Caller holds mu.
func (b *OrderBook) quote(sessionID, quoteID string, bidPx common.Fixed, bidQty int64, askPx common.Fixed, askQty int64, alloc func(common.Side, common.Fixed, int64) *Order) {
	key := quoteKey{sessionID: sessionID, quoteID: quoteID}
	pair, ok := b.quotes[key]
	if !ok {
		pair = &quotePair{}
		b.quotes[key] = pair
	}

	if pair.bid != nil && pair.bid.isListed() {
		b.bids.remove(pair.bid)
	}
	if pair.ask != nil && pair.ask.isListed() {
		b.asks.remove(pair.ask)
	}

	if bidQty != 0 {
		if pair.bid == nil {
			pair.bid = alloc(common.Buy, bidPx, bidQty)
		}
		pair.bid.relistAs(common.Limit(bidPx), bidQty)
		b.bids.insert(pair.bid)
		b.listener.OnOrder(pair.bid.Snapshot())
		b.match(common.Buy)
	}
	if askQty != 0 {
		if pair.ask == nil {
			pair.ask = alloc(common.Sell, askPx, askQty)
		}
		pair.ask.relistAs(common.Limit(askPx), askQty)
		b.asks.insert(pair.ask)
		b.listener.OnOrder(pair.ask.Snapshot())
		b.match(common.Sell)
	}
}

// snapshot aggregates remaining quantity per level, best to worst.
// Caller holds mu.
func (b *OrderBook) snapshot() Book {
	var book Book
	book.Bids, book.BidOrderIDs = sideSnapshot(b.bids)
	book.Asks, book.AskOrderIDs = sideSnapshot(b.asks)
	return book
}

func sideSnapshot(l *ladder) ([]BookLevel, []int64) {
	levels := make([]BookLevel, 0, l.size())
	ids := make([]int64, 0, l.size())
	l.scan(func(lv *level) bool {
		var qty int64
		lv.each(func(o *Order) {
			if o.IsMarket() {
				return
			}
			qty += o.remaining
			ids = append(ids, o.exchangeID)
		})
		levels = append(levels, BookLevel{Price: lv.price.Value(), Quantity: qty})
		return true
	})
	return levels, ids
}
