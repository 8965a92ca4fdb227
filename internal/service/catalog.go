package service

import "github.com/StimpyDev/EconomyCraft/internal/model"

// ItemCatalog resolves item keys to descriptors.
type ItemCatalog interface {
	Resolve(key string) (model.ItemDescriptor, bool)
}

// ItemInspector decides whether an item payload may be sold (damaged tools
// or filled containers are typically refused).
type ItemInspector interface {
	Sellable(item model.Item) bool
}

type emptyCatalog struct{}

func (emptyCatalog) Resolve(string) (model.ItemDescriptor, bool) { return model.ItemDescriptor{}, false }

// stackSize returns the max stack of kind, or the default when unknown.
func stackSize(c ItemCatalog, kind string) int {
	if d, ok := c.Resolve(kind); ok {
		return d.StackSize()
	}
	return model.DefaultMaxStack
}
