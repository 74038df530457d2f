package engine

import "skoll/internal/common"

// Trade reports one execution. Aggressor is the order whose arrival
// triggered the match; Passive was resting. Price is always the passive
// order's limit price. ExecID is nondecreasing, strictly increasing per
// instrument; ties are possible across instruments.
type Trade struct {
	Price     common.Fixed
	Quantity  int64
	Aggressor OrderSnapshot
	Passive   OrderSnapshot
	ExecID    int64
}
