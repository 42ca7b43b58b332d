package sim

import (
	"sort"

	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// simLevel holds the synthetic orders resting at one price, in time priority.
type simLevel struct {
	prc    float64
	orders []*Order
}

// sideIdx maps a maker side to the levels array index.
func sideIdx(side qsbin.MakerSide) int {
	if side == qsbin.MakerB {
		return 0
	}
	return 1
}

// NoImpactExchange replays a recorded packet sequence and matches synthetic
// resting orders against it without feeding back into the market: the
// replayed book is authoritative and synthetic orders never change displayed
// quantities. Levels priced through by a trade fill in full; the level at the
// trade price fills each order past its tracked queue-ahead quantity.
type NoImpactExchange struct {
	TsPublisher
	queue  *TaskQueue
	logger log.Logger

	// packets filtered and batched by exchange time, cached for reuse
	events [][]qsbin.Packet

	qs     *book.PktHandler
	levels [2][]simLevel // 0 bids ascending, 1 asks ascending
}

// NewNoImpactExchange sorts pkts by (exchange time, send time), drops
// inferred, filtered and stale-sequence packets, and groups the rest into
// same-exchange-time batches.
func NewNoImpactExchange(queue *TaskQueue, pkts []qsbin.Packet, logger log.Logger) *NoImpactExchange {
	sorted := make([]qsbin.Packet, len(pkts))
	copy(sorted, pkts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExchTime != sorted[j].ExchTime {
			return sorted[i].ExchTime < sorted[j].ExchTime
		}
		return sorted[i].QsSendTime < sorted[j].QsSendTime
	})

	e := &NoImpactExchange{
		TsPublisher: NewTsPublisher(queue),
		queue:       queue,
		logger:      logger,
		qs:          book.NewPktHandler(logger),
	}

	var now qsbin.UnixMicro
	var seqNum uint32
	var event []qsbin.Packet
	for i := range sorted {
		pkt := &sorted[i]
		if pkt.Inferred || pkt.Filtered || (len(pkt.Levels) > 0 && pkt.SeqNum <= seqNum) {
			continue
		}
		if len(event) > 0 && now != pkt.ExchTime {
			e.events = append(e.events, event)
			event = nil
		}
		event = append(event, *pkt)
		now = pkt.ExchTime
		seqNum = max(seqNum, pkt.SeqNum)
	}
	if len(event) > 0 {
		e.events = append(e.events, event)
	}
	return e
}

// Reset clears subscribers, the replayed book and all resting orders.
func (e *NoImpactExchange) Reset() {
	e.TsPublisher.Reset()
	e.qs.Reset()
	e.levels[0] = nil
	e.levels[1] = nil
}

// Setup schedules every cached batch at its first packet's send time. A batch
// applies its packets to the replayed book, clears resting orders against the
// batch's final trade and then resynchronizes queue positions.
func (e *NoImpactExchange) Setup() {
	for _, event := range e.events {
		event := event
		e.queue.PostAt(event[0].QsSendTime, func() {
			var lastTrd qsbin.Trade
			for i := range event {
				pkt := &event[i]
				e.qs.OnPacketUnsafe(pkt)
				for _, trd := range pkt.Trades {
					lastTrd = trd
				}
			}
			if lastTrd.Qty > 0 {
				e.handleTrade(lastTrd)
			}
			e.syncQueue()
		})
	}
}

// ReqSubmit schedules a submit request for execution at ts.
func (e *NoImpactExchange) ReqSubmit(req ReqSubmit, ts qsbin.UnixMicro) {
	e.queue.PostAt(ts, func() { e.doSubmit(req) })
}

// ReqCancel schedules a cancel request for execution at ts.
func (e *NoImpactExchange) ReqCancel(req ReqCancel, ts qsbin.UnixMicro) {
	e.queue.PostAt(ts, func() { e.doCancel(req) })
}

func (e *NoImpactExchange) doSubmit(req ReqSubmit) {
	order := Order{
		OID:    req.OID,
		Prc:    req.Prc,
		Qty:    req.Qty,
		Side:   req.Side,
		TIF:    req.TIF,
		Status: StatusNew,
	}
	if _, _, ok := e.findOrder(req.Side, req.Prc, req.OID); ok {
		e.PubAddRej(order, RejectDuplicateOrder)
		return
	}

	crossPrc, crossing := e.crossingPrice(req.Side, req.Prc)
	if crossing {
		if req.TIF == POST {
			order.Status = StatusDone
			order.DoneReason = DonePostOnly
			e.PubOrder(order)
			return
		}
		// taker fill in full at the opposing best
		order.Qty = 0
		order.Status = StatusDone
		order.DoneReason = DoneFullyFilled
		e.PubFill(Fill{OID: order.OID, Prc: crossPrc, Qty: req.Qty, Side: order.Side, IsMaker: false})
		e.PubOrder(order)
		return
	}

	if req.TIF == FAK {
		order.Status = StatusDone
		order.DoneReason = DoneFAK
		e.PubOrder(order)
		return
	}

	order.Status = StatusOpen
	order.Queue = 0 // assumed front of queue regardless of displayed qty
	e.restOrder(&order)
	e.PubOrder(order)
}

func (e *NoImpactExchange) doCancel(req ReqCancel) {
	li, oi, ok := e.findOrder(req.Side, req.Prc, req.OID)
	if !ok {
		e.logger.Warn("cancel failed, order not found",
			"oid", req.OID, "side", req.Side.String(), "prc", req.Prc)
		return
	}
	side := sideIdx(req.Side)
	order := e.levels[side][li].orders[oi]
	order.Status = StatusDone
	order.DoneReason = DoneCancel
	e.PubOrder(*order)
	e.removeOrder(side, li, oi)
}

// crossingPrice reports whether an order at prc on side would cross the
// opposite best, and at what price it would trade.
func (e *NoImpactExchange) crossingPrice(side qsbin.MakerSide, prc float64) (float64, bool) {
	if side == qsbin.MakerB {
		if best, ok := e.qs.BestAsk(); ok && prc >= best.Prc {
			return best.Prc, true
		}
	} else {
		if best, ok := e.qs.BestBid(); ok && prc <= best.Prc {
			return best.Prc, true
		}
	}
	return 0, false
}

// restOrder appends the order to its price level, creating the level in
// ascending price position if absent.
func (e *NoImpactExchange) restOrder(order *Order) {
	side := sideIdx(order.Side)
	lvls := e.levels[side]
	i := sort.Search(len(lvls), func(i int) bool { return lvls[i].prc >= order.Prc })
	if i < len(lvls) && lvls[i].prc == order.Prc {
		lvls[i].orders = append(lvls[i].orders, order)
		return
	}
	lvls = append(lvls, simLevel{})
	copy(lvls[i+1:], lvls[i:])
	lvls[i] = simLevel{prc: order.Prc, orders: []*Order{order}}
	e.levels[side] = lvls
}

// findOrder locates a resting order by side, price and id.
func (e *NoImpactExchange) findOrder(side qsbin.MakerSide, prc float64, oid uint64) (li, oi int, ok bool) {
	lvls := e.levels[sideIdx(side)]
	for li := range lvls {
		if lvls[li].prc != prc {
			continue
		}
		for oi, o := range lvls[li].orders {
			if o.OID == oid {
				return li, oi, true
			}
		}
	}
	return 0, 0, false
}

func (e *NoImpactExchange) removeOrder(side, li, oi int) {
	lvl := &e.levels[side][li]
	lvl.orders = append(lvl.orders[:oi], lvl.orders[oi+1:]...)
	if len(lvl.orders) == 0 {
		e.levels[side] = append(e.levels[side][:li], e.levels[side][li+1:]...)
	}
}

// handleTrade clears resting orders against an aggressor trade. Levels priced
// strictly through fill in full; the level at the trade price fills each
// order past its tracked queue-ahead quantity.
func (e *NoImpactExchange) handleTrade(trd qsbin.Trade) {
	side := sideIdx(trd.Side)
	for li := 0; li < len(e.levels[side]); {
		prc := e.levels[side][li].prc
		through := false
		if trd.Side == qsbin.MakerB {
			through = prc > trd.Prc
		} else {
			through = prc < trd.Prc
		}
		switch {
		case through:
			for _, o := range e.levels[side][li].orders {
				e.PubFill(o.FillOrder(o.Qty))
				e.PubOrder(*o)
			}
			e.levels[side] = append(e.levels[side][:li], e.levels[side][li+1:]...)
		case prc == trd.Prc:
			// Removing an emptied level shifts the next one into this
			// slot; the outer loop must re-classify it, so the level is
			// rebuilt in place and only advanced past while it survives.
			orders := e.levels[side][li].orders
			kept := orders[:0]
			for _, o := range orders {
				if fillQty := o.OnLevelTrade(trd.Qty); fillQty > 0 {
					e.PubFill(o.FillOrder(fillQty))
					if o.Status == StatusDone {
						e.PubOrder(*o)
						continue
					}
				}
				kept = append(kept, o)
			}
			e.levels[side][li].orders = kept
			if len(kept) == 0 {
				e.levels[side] = append(e.levels[side][:li], e.levels[side][li+1:]...)
			} else {
				li++
			}
		default:
			li++
		}
	}
}

// syncQueue clamps every resting order's queue-ahead quantity down to the
// currently displayed quantity at its price. Queue positions only shrink as
// the visible queue empties, never grow.
func (e *NoImpactExchange) syncQueue() {
	for side, prcBook := range []*book.PriceBook{&e.qs.Bids, &e.qs.Asks} {
		for li := range e.levels[side] {
			lvl := &e.levels[side][li]
			displayed, _ := prcBook.Qty(lvl.prc)
			for _, o := range lvl.orders {
				o.Queue = min(o.Queue, displayed)
			}
		}
	}
}

// RestingOrder returns a snapshot of a resting order, for inspection.
func (e *NoImpactExchange) RestingOrder(side qsbin.MakerSide, prc float64, oid uint64) (Order, bool) {
	li, oi, ok := e.findOrder(side, prc, oid)
	if !ok {
		return Order{}, false
	}
	return *e.levels[sideIdx(side)][li].orders[oi], true
}

// Book exposes the replayed book driven by this exchange.
func (e *NoImpactExchange) Book() *book.PktHandler { return e.qs }
