package book

import "sort"

// PriceQty is one displayed level.
type PriceQty struct {
	Prc float64
	Qty float64
}

// PriceBook is a sorted price -> quantity map for one side of the book.
// Prices are kept in ascending order; no price ever carries qty <= 0.
type PriceBook struct {
	prcs []float64
	qtys []float64
}

func (b *PriceBook) Len() int { return len(b.prcs) }

func (b *PriceBook) Clear() {
	b.prcs = b.prcs[:0]
	b.qtys = b.qtys[:0]
}

// Qty returns the displayed quantity at a price.
func (b *PriceBook) Qty(prc float64) (float64, bool) {
	i := sort.SearchFloat64s(b.prcs, prc)
	if i < len(b.prcs) && b.prcs[i] == prc {
		return b.qtys[i], true
	}
	return 0, false
}

// Set upserts a level. A quantity <= 0 removes the price.
func (b *PriceBook) Set(prc, qty float64) {
	i := sort.SearchFloat64s(b.prcs, prc)
	found := i < len(b.prcs) && b.prcs[i] == prc
	if qty <= 0 {
		if found {
			b.removeAt(i)
		}
		return
	}
	if found {
		b.qtys[i] = qty
		return
	}
	b.prcs = append(b.prcs, 0)
	b.qtys = append(b.qtys, 0)
	copy(b.prcs[i+1:], b.prcs[i:])
	copy(b.qtys[i+1:], b.qtys[i:])
	b.prcs[i] = prc
	b.qtys[i] = qty
}

// Sub decrements the level at a price, removing it at or below zero.
func (b *PriceBook) Sub(prc, qty float64) {
	i := sort.SearchFloat64s(b.prcs, prc)
	if i >= len(b.prcs) || b.prcs[i] != prc {
		return
	}
	b.qtys[i] -= qty
	if b.qtys[i] <= 0 {
		b.removeAt(i)
	}
}

// Min returns the lowest-priced level.
func (b *PriceBook) Min() (PriceQty, bool) {
	if len(b.prcs) == 0 {
		return PriceQty{}, false
	}
	return PriceQty{Prc: b.prcs[0], Qty: b.qtys[0]}, true
}

// Max returns the highest-priced level.
func (b *PriceBook) Max() (PriceQty, bool) {
	if len(b.prcs) == 0 {
		return PriceQty{}, false
	}
	n := len(b.prcs) - 1
	return PriceQty{Prc: b.prcs[n], Qty: b.qtys[n]}, true
}

// TrimAbove removes every level priced strictly above prc.
func (b *PriceBook) TrimAbove(prc float64) {
	i := sort.SearchFloat64s(b.prcs, prc)
	if i < len(b.prcs) && b.prcs[i] == prc {
		i++
	}
	b.prcs = b.prcs[:i]
	b.qtys = b.qtys[:i]
}

// TrimBelow removes every level priced strictly below prc.
func (b *PriceBook) TrimBelow(prc float64) {
	i := sort.SearchFloat64s(b.prcs, prc)
	b.prcs = append(b.prcs[:0], b.prcs[i:]...)
	b.qtys = append(b.qtys[:0], b.qtys[i:]...)
}

// Ascend visits levels in ascending price order.
func (b *PriceBook) Ascend(fn func(PriceQty) bool) {
	for i := range b.prcs {
		if !fn(PriceQty{Prc: b.prcs[i], Qty: b.qtys[i]}) {
			return
		}
	}
}

// Levels returns a copy of the side in ascending price order.
func (b *PriceBook) Levels() []PriceQty {
	out := make([]PriceQty, len(b.prcs))
	for i := range b.prcs {
		out[i] = PriceQty{Prc: b.prcs[i], Qty: b.qtys[i]}
	}
	return out
}

func (b *PriceBook) removeAt(i int) {
	b.prcs = append(b.prcs[:i], b.prcs[i+1:]...)
	b.qtys = append(b.qtys[:i], b.qtys[i+1:]...)
}
