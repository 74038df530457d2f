package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
)

func limitOrder(id int64, side common.Side, price string, qty int64) *Order {
	return newOrder(id, "s1", "", "X", common.Limit(px(price)), qty, side, false)
}

func TestLevel_FIFO(t *testing.T) {
	lv := &level{price: common.Limit(px("1.00"))}

	first := limitOrder(1, common.Buy, "1.00", 10)
	second := limitOrder(2, common.Buy, "1.00", 10)
	third := limitOrder(3, common.Buy, "1.00", 10)
	for _, o := range []*Order{first, second, third} {
		lv.pushBack(o)
	}

	assert.Equal(t, 3, lv.count)
	assert.Same(t, first, lv.front())
	assert.True(t, first.isListed())

	// Removal from the middle keeps head order intact.
	lv.remove(second)
	assert.False(t, second.isListed())
	assert.Same(t, first, lv.front())

	var ids []int64
	lv.each(func(o *Order) { ids = append(ids, o.exchangeID) })
	assert.Equal(t, []int64{1, 3}, ids)

	lv.remove(first)
	assert.Same(t, third, lv.front())
	lv.remove(third)
	assert.True(t, lv.empty())
	assert.Nil(t, lv.front())
}

func TestLevel_RemoveUnlistedPanics(t *testing.T) {
	lv := &level{price: common.Limit(px("1.00"))}
	o := limitOrder(1, common.Buy, "1.00", 10)
	assert.Panics(t, func() { lv.remove(o) })
}

func TestLadder_BidsBestIsHighest(t *testing.T) {
	l := newLadder(common.Buy)

	l.insert(limitOrder(1, common.Buy, "1.00", 10))
	l.insert(limitOrder(2, common.Buy, "3.00", 10))
	l.insert(limitOrder(3, common.Buy, "2.00", 10))

	require.NotNil(t, l.front())
	assert.EqualValues(t, 2, l.front().exchangeID)
	assert.Equal(t, 3, l.size())

	var prices []string
	l.scan(func(lv *level) bool {
		prices = append(prices, lv.price.String())
		return true
	})
	assert.Equal(t, []string{"3.0000000", "2.0000000", "1.0000000"}, prices)
}

func TestLadder_AsksBestIsLowest(t *testing.T) {
	l := newLadder(common.Sell)

	l.insert(limitOrder(1, common.Sell, "3.00", 10))
	l.insert(limitOrder(2, common.Sell, "1.00", 10))

	require.NotNil(t, l.front())
	assert.EqualValues(t, 2, l.front().exchangeID)
}

func TestLadder_LevelCollapsesWhenEmpty(t *testing.T) {
	l := newLadder(common.Buy)

	a := limitOrder(1, common.Buy, "1.00", 10)
	b := limitOrder(2, common.Buy, "1.00", 10)
	l.insert(a)
	l.insert(b)
	assert.Equal(t, 1, l.size())

	l.remove(a)
	assert.Equal(t, 1, l.size())
	l.remove(b)
	assert.Equal(t, 0, l.size())
	assert.True(t, l.empty())
	assert.Nil(t, l.front())
}

func TestLadder_FrontIsFIFOHeadOfBestLevel(t *testing.T) {
	l := newLadder(common.Sell)

	l.insert(limitOrder(1, common.Sell, "2.00", 10))
	l.insert(limitOrder(2, common.Sell, "1.00", 10))
	l.insert(limitOrder(3, common.Sell, "1.00", 10))

	assert.EqualValues(t, 2, l.front().exchangeID)
	l.remove(l.front())
	assert.EqualValues(t, 3, l.front().exchangeID)
	l.remove(l.front())
	assert.EqualValues(t, 1, l.front().exchangeID)
}

func TestLadder_MarketPriceSortsToFront(t *testing.T) {
	bids := newLadder(common.Buy)
	bids.insert(limitOrder(1, common.Buy, "100.00", 10))
	market := newOrder(2, "s1", "", "X", common.MarketBuy, 10, common.Buy, false)
	bids.insert(market)
	assert.Same(t, market, bids.front())

	asks := newLadder(common.Sell)
	asks.insert(limitOrder(3, common.Sell, "0.01", 10))
	marketSell := newOrder(4, "s1", "", "X", common.MarketSell, 10, common.Sell, false)
	asks.insert(marketSell)
	assert.Same(t, marketSell, asks.front())
}
