package model

import "bytes"

// Item is an immutable item payload: a kind, a stack count and an opaque
// metadata blob (enchantments, custom names, container contents...).
// Values are copied whenever they cross a registry boundary.
type Item struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
	Meta  []byte `json:"meta,omitempty"`
}

// NewItem creates an item, copying meta.
func NewItem(kind string, count int, meta []byte) Item {
	return Item{Kind: kind, Count: count, Meta: cloneBytes(meta)}
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	return Item{Kind: i.Kind, Count: i.Count, Meta: cloneBytes(i.Meta)}
}

// WithCount returns a copy with a different stack count.
func (i Item) WithCount(count int) Item {
	c := i.Clone()
	c.Count = count
	return c
}

// SameKind reports whether two items stack together (same kind and metadata).
func (i Item) SameKind(o Item) bool {
	return i.Kind == o.Kind && bytes.Equal(i.Meta, o.Meta)
}

// Equal reports whether two items are identical including count.
func (i Item) Equal(o Item) bool {
	return i.Count == o.Count && i.SameKind(o)
}

// IsEmpty reports whether the item carries nothing.
func (i Item) IsEmpty() bool {
	return i.Kind == "" || i.Count <= 0
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
