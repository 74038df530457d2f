package engine

import (
	"github.com/tidwall/btree"

	"skoll/internal/common"
)

// ladder holds one side's non-empty price levels, sorted so that the
// tree minimum is always the best price: bids descending, asks
// ascending. Levels appear when the first order arrives at a price and
// collapse as soon as they empty.
type ladder struct {
	side   common.Side
	levels *btree.BTreeG[*level]
}

func newLadder(side common.Side) *ladder {
	less := func(a, b *level) bool {
		if side == common.Buy {
			return a.price.Cmp(b.price) > 0
		}
		return a.price.Cmp(b.price) < 0
	}
	return &ladder{
		side:   side,
		levels: btree.NewBTreeG(less),
	}
}

func (l *ladder) insert(o *Order) {
	lv, ok := l.levels.Get(&level{price: o.price})
	if !ok {
		lv = &level{price: o.price}
		l.levels.Set(lv)
	}
	lv.pushBack(o)
}

func (l *ladder) remove(o *Order) {
	lv, ok := l.levels.Get(&level{price: o.price})
	if !ok {
		panic("engine: ladder has no level for listed order")
	}
	lv.remove(o)
	if lv.empty() {
		l.levels.Delete(lv)
	}
}

// front returns the FIFO head of the best level, or nil.
func (l *ladder) front() *Order {
	lv, ok := l.levels.Min()
	if !ok {
		return nil
	}
	return lv.front()
}

func (l *ladder) empty() bool {
	return l.levels.Len() == 0
}

func (l *ladder) size() int {
	return l.levels.Len()
}

// scan visits levels best to worst until fn returns false.
func (l *ladder) scan(fn func(*level) bool) {
	l.levels.Scan(fn)
}
