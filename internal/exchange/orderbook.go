package exchange

import "github.com/shopspring/decimal"

// Level is one price level of an order book.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook is a normalized snapshot of one market's resting orders. Bids
// are sorted best first (highest price), asks best first (lowest price), as
// exchanges report them. Reversed marks a book derived from the opposite
// orientation of the pair the caller asked for.
type OrderBook struct {
	Bids     []Level
	Asks     []Level
	Reversed bool
}

// Reverse returns the book seen from the opposite orientation: each level's
// price becomes 1/price, its amount becomes price*amount, and the sides
// swap, because a resting bid for the asset is a resting ask for the
// currency. Best-first ordering is preserved by the transform itself: the
// lowest ask maps to the highest reversed bid.
func (b *OrderBook) Reverse() *OrderBook {
	out := &OrderBook{
		Bids:     make([]Level, len(b.Asks)),
		Asks:     make([]Level, len(b.Bids)),
		Reversed: !b.Reversed,
	}
	for i, lvl := range b.Asks {
		out.Bids[i] = lvl.reverse()
	}
	for i, lvl := range b.Bids {
		out.Asks[i] = lvl.reverse()
	}
	return out
}

func (l Level) reverse() Level {
	return Level{
		Price:  Quantize(decimal.New(1, 0).Div(l.Price)),
		Amount: Quantize(l.Price.Mul(l.Amount)),
	}
}

// BestBid returns the highest resting bid, if any.
func (b *OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest resting ask, if any.
func (b *OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}
