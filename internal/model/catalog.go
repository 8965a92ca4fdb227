package model

// DefaultMaxStack is used when an item's stack size is unknown.
const DefaultMaxStack = 64

// ItemDescriptor describes a resolvable item kind. A zero price means the
// server does not buy (SellPrice) or sell (BuyPrice) the item.
type ItemDescriptor struct {
	Key       string `json:"key" yaml:"key"`
	MaxStack  int    `json:"max_stack" yaml:"max_stack"`
	SellPrice int64  `json:"sell_price" yaml:"sell_price"`
	BuyPrice  int64  `json:"buy_price" yaml:"buy_price"`
	Category  string `json:"category,omitempty" yaml:"category"`
}

// StackSize returns MaxStack or DefaultMaxStack when unset.
func (d ItemDescriptor) StackSize() int {
	if d.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return d.MaxStack
}
