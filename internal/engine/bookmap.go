package engine

import (
	"hash/fnv"
	"sync/atomic"

	"skoll/internal/common"
)

// maxBooks bounds the number of instruments. Power of two.
const maxBooks = 1024

// bookMap is a fixed-capacity open-addressed table of instrument to
// book. Slots are installed with a compare-and-swap and never move or
// free, so a returned book pointer stays valid for the process
// lifetime. Reads are lock-free.
type bookMap struct {
	table [maxBooks]atomic.Pointer[OrderBook]
}

func bookSlot(instrument string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(instrument))
	return h.Sum32() & (maxBooks - 1)
}

// getOrCreate returns the instrument's book, installing a fresh one on
// first use. Returns ErrBooksFull once every slot is taken.
func (m *bookMap) getOrCreate(instrument string, listener Listener) (*OrderBook, error) {
	start := bookSlot(instrument)
	idx := start
	var created *OrderBook
	for {
		book := m.table[idx].Load()
		if book == nil {
			if created == nil {
				created = newOrderBook(instrument, listener)
			}
			if m.table[idx].CompareAndSwap(nil, created) {
				return created, nil
			}
			book = m.table[idx].Load()
		}
		if book.instrument == instrument {
			return book, nil
		}
		idx = (idx + 1) & (maxBooks - 1)
		if idx == start {
			return nil, common.ErrBooksFull
		}
	}
}

// get probes without creating.
func (m *bookMap) get(instrument string) *OrderBook {
	start := bookSlot(instrument)
	idx := start
	for {
		book := m.table[idx].Load()
		if book == nil {
			return nil
		}
		if book.instrument == instrument {
			return book
		}
		idx = (idx + 1) & (maxBooks - 1)
		if idx == start {
			return nil
		}
	}
}

// instruments enumerates the installed books in slot order.
func (m *bookMap) instruments() []string {
	var out []string
	for i := range m.table {
		if book := m.table[i].Load(); book != nil {
			out = append(out, book.instrument)
		}
	}
	return out
}
