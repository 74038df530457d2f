package engine

// Listener receives order state transitions and trades, synchronously
// and under the owning book's lock. Implementations must be fast,
// must not block, and must not re-enter the engine for the same
// instrument on the same goroutine. Within one operation the emission
// order is: new-resting OnOrder, then per trade passive OnOrder,
// aggressor OnOrder, OnTrade, then a final OnOrder if a market
// remainder was cancelled. Callers may rely on that order.
type Listener interface {
	OnOrder(OrderSnapshot)
	OnTrade(Trade)
}

// NopListener discards everything.
type NopListener struct{}

func (NopListener) OnOrder(OrderSnapshot) {}
func (NopListener) OnTrade(Trade)         {}
