package engine

import "sync/atomic"

// orderMapBuckets is sized well past any expected live order count so
// bucket chains stay short. Power of two.
const orderMapBuckets = 1 << 20

// orderMap maps exchange id to order. Insert prepends to the bucket
// chain with a compare-and-swap on the head; lookups and enumeration
// are lock-free. Orders are never removed, they are retained for audit.
type orderMap struct {
	buckets []atomic.Pointer[Order]
}

func newOrderMap() *orderMap {
	return &orderMap{
		buckets: make([]atomic.Pointer[Order], orderMapBuckets),
	}
}

func (m *orderMap) add(o *Order) {
	bucket := &m.buckets[uint64(o.exchangeID)&(orderMapBuckets-1)]
	for {
		head := bucket.Load()
		o.next.Store(head)
		if bucket.CompareAndSwap(head, o) {
			return
		}
	}
}

func (m *orderMap) get(exchangeID int64) *Order {
	bucket := &m.buckets[uint64(exchangeID)&(orderMapBuckets-1)]
	for o := bucket.Load(); o != nil; o = o.next.Load() {
		if o.exchangeID == exchangeID {
			return o
		}
	}
	return nil
}

// all walks every bucket chain. Orders inserted concurrently with the
// walk may or may not appear.
func (m *orderMap) all() []*Order {
	var out []*Order
	for i := range m.buckets {
		for o := m.buckets[i].Load(); o != nil; o = o.next.Load() {
			out = append(out, o)
		}
	}
	return out
}
