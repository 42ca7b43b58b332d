// Package ftx is a live JSON adapter for the FTX websocket feed. It is a
// separate ingestion path from the binary capture pipeline and shares only
// the price-book structure with it.
package ftx

import (
	"math"
	"time"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// OpenOrder mirrors one of our own orders as reported on the orders channel.
type OpenOrder struct {
	ID            uint64
	Type          string
	Side          string
	Price         float64
	Size          float64
	Status        string
	FilledSize    float64
	RemainingSize float64
	ReduceOnly    bool
	PostOnly      bool
	IOC           bool
}

// L2Tracker holds per-market feed state: the level-2 book, the last trade
// and our open orders.
type L2Tracker struct {
	LastTs float64
	Bids   book.PriceBook
	Asks   book.PriceBook

	LastTradeTime        qsbin.UnixMicro
	LastTradePrc         float64
	LastTradeQty         float64 // signed, buy aggressor positive
	LastTradeLiquidation bool

	Orders map[uint64]OpenOrder
}

// NewL2Tracker returns an empty tracker.
func NewL2Tracker() *L2Tracker {
	return &L2Tracker{
		LastTradePrc: math.NaN(),
		Orders:       make(map[uint64]OpenOrder),
	}
}

// OnL2 applies one orderbook frame. Zero quantity removes the level; both
// partial snapshots and incremental updates use the same shape.
func (t *L2Tracker) OnL2(d *l2Data) {
	t.LastTs = d.Time
	for _, upd := range d.Bids {
		t.Bids.Set(upd[0], upd[1])
	}
	for _, upd := range d.Asks {
		t.Asks.Set(upd[0], upd[1])
	}
}

// OnTrades applies a trades frame; the last print wins.
func (t *L2Tracker) OnTrades(trades []tradeData) {
	for _, trd := range trades {
		sign := -1.0
		if trd.Side == "buy" {
			sign = 1.0
		}
		t.LastTradePrc = trd.Price
		t.LastTradeQty = trd.Size * sign
		t.LastTradeLiquidation = trd.Liquidation
		if ts, err := time.Parse(time.RFC3339Nano, trd.Time); err == nil {
			t.LastTradeTime = qsbin.UnixMicro(ts.UnixMicro())
		}
	}
}

// OnOrder applies one of our own order updates; closed orders are dropped.
func (t *L2Tracker) OnOrder(o *orderData) {
	if o.Status == "closed" {
		delete(t.Orders, o.ID)
		return
	}
	t.Orders[o.ID] = OpenOrder{
		ID:            o.ID,
		Type:          o.Type,
		Side:          o.Side,
		Price:         o.Price,
		Size:          o.Size,
		Status:        o.Status,
		FilledSize:    o.FilledSize,
		RemainingSize: o.RemainingSize,
		ReduceOnly:    o.ReduceOnly,
		PostOnly:      o.PostOnly,
		IOC:           o.IOC,
	}
}

// BestBid returns the highest bid.
func (t *L2Tracker) BestBid() (book.PriceQty, bool) { return t.Bids.Max() }

// BestAsk returns the lowest ask.
func (t *L2Tracker) BestAsk() (book.PriceQty, bool) { return t.Asks.Min() }

// Reset clears all state.
func (t *L2Tracker) Reset() {
	t.LastTs = 0
	t.Bids.Clear()
	t.Asks.Clear()
	t.LastTradeTime = 0
	t.LastTradePrc = math.NaN()
	t.LastTradeQty = 0
	t.LastTradeLiquidation = false
	t.Orders = make(map[uint64]OpenOrder)
}
