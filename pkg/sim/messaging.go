package sim

import (
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// TIF is an order's time-in-force.
type TIF uint8

const (
	GTC  TIF = iota // rest until cancelled
	FAK             // fill immediately or cancel
	POST            // reject if it would cross
)

// OrderStatus is the lifecycle state of a synthetic order.
type OrderStatus uint8

const (
	StatusNew OrderStatus = iota
	StatusOpen
	StatusDone
)

// DoneReason explains why an order reached StatusDone.
type DoneReason uint8

const (
	DoneNone DoneReason = iota
	DoneCancel
	DoneCancelOnDisconnect
	DoneSelfTradePrevention
	DonePostOnly
	DoneFAK
	DoneFullyFilled
	DoneReset
)

// RejectReason accompanies add/cancel rejects.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectUnknownOrder
	RejectDuplicateOrder
)

// ReqSubmit asks the exchange to place a synthetic order.
type ReqSubmit struct {
	TIF  TIF
	OID  uint64
	Side qsbin.MakerSide
	Prc  float64
	Qty  float64
}

// ReqCancel asks the exchange to cancel a resting order. Side and price are
// not strictly needed but speed up the level lookup.
type ReqCancel struct {
	OID  uint64
	Side qsbin.MakerSide
	Prc  float64
}

// ReqType discriminates Req.
type ReqType uint8

const (
	ReqTypeSubmit ReqType = iota
	ReqTypeCancel
)

// Req is one scripted strategy request, submitted at Ts (plus the algo's
// configured latency).
type Req struct {
	Type   ReqType
	Ts     qsbin.UnixMicro
	Submit ReqSubmit
	Cancel ReqCancel
}

// Fill is an immutable fill event. Qty is always incremental.
type Fill struct {
	OID     uint64
	Prc     float64
	Qty     float64
	Side    qsbin.MakerSide
	IsMaker bool
}

// Order is a synthetic resting order. It is created on submission, mutated
// only by the matching engine and removed from the book once done.
type Order struct {
	OID        uint64
	Prc        float64
	Qty        float64 // remaining
	Queue      float64 // quantity believed resting ahead at this price
	Side       qsbin.MakerSide
	TIF        TIF
	Status     OrderStatus
	DoneReason DoneReason
}

// FillOrder consumes up to fillQty of the remaining quantity, marks the
// order fully filled at zero, and returns the corresponding fill.
func (o *Order) FillOrder(fillQty float64) Fill {
	o.Qty -= min(fillQty, o.Qty)
	if o.Qty == 0 {
		o.Status = StatusDone
		o.DoneReason = DoneFullyFilled
	}
	return Fill{OID: o.OID, Prc: o.Prc, Qty: fillQty, Side: o.Side, IsMaker: true}
}

// OnLevelTrade consumes traded quantity against the order's queue-ahead
// first; the remainder is this order's fill quantity.
func (o *Order) OnLevelTrade(trdQty float64) float64 {
	queueTrd := min(trdQty, o.Queue)
	o.Queue -= queueTrd
	return trdQty - queueTrd
}

// TsSubscriber receives order-flow events from a trade-stream publisher.
type TsSubscriber interface {
	OnFill(Fill)
	OnOrder(Order)
	OnAddRej(Order, RejectReason)
	OnCxlRej(Order, RejectReason)
}

// QsSubscriber receives replayed market-data packets.
type QsSubscriber interface {
	OnPacket(*qsbin.Packet)
}

// tsSub is one subscriber registration with its delivery latency.
type tsSub struct {
	latency qsbin.UnixMicro
	sub     TsSubscriber
}

// TsPublisher fans order-flow events out to subscribers through the task
// queue, delivering to each at now + its registered latency so different
// subscribers observe the same event at different simulated times.
type TsPublisher struct {
	queue *TaskQueue
	subs  []tsSub
}

// NewTsPublisher binds a publisher to a task queue.
func NewTsPublisher(queue *TaskQueue) TsPublisher {
	return TsPublisher{queue: queue}
}

// Subscribe registers a subscriber with its one-way delivery latency.
func (p *TsPublisher) Subscribe(latency qsbin.UnixMicro, sub TsSubscriber) {
	p.subs = append(p.subs, tsSub{latency: latency, sub: sub})
}

// Reset drops all registrations.
func (p *TsPublisher) Reset() { p.subs = nil }

// PubFill schedules OnFill delivery to every subscriber.
func (p *TsPublisher) PubFill(fill Fill) {
	for _, it := range p.subs {
		sub := it.sub
		p.queue.PostAt(p.queue.Now()+it.latency, func() { sub.OnFill(fill) })
	}
}

// PubOrder schedules OnOrder delivery to every subscriber.
func (p *TsPublisher) PubOrder(order Order) {
	for _, it := range p.subs {
		sub := it.sub
		p.queue.PostAt(p.queue.Now()+it.latency, func() { sub.OnOrder(order) })
	}
}

// PubAddRej schedules OnAddRej delivery to every subscriber.
func (p *TsPublisher) PubAddRej(order Order, reason RejectReason) {
	for _, it := range p.subs {
		sub := it.sub
		p.queue.PostAt(p.queue.Now()+it.latency, func() { sub.OnAddRej(order, reason) })
	}
}

// PubCxlRej schedules OnCxlRej delivery to every subscriber.
func (p *TsPublisher) PubCxlRej(order Order, reason RejectReason) {
	for _, it := range p.subs {
		sub := it.sub
		p.queue.PostAt(p.queue.Now()+it.latency, func() { sub.OnCxlRej(order, reason) })
	}
}

// QsPublisher replays a packet sequence to market-data subscribers, each
// packet delivered at its send time plus the subscriber's latency.
type QsPublisher struct {
	pkts  []qsbin.Packet
	queue *TaskQueue
	subs  []struct {
		latency qsbin.UnixMicro
		sub     QsSubscriber
	}
}

// NewQsPublisher binds a packet sequence to a task queue.
func NewQsPublisher(queue *TaskQueue, pkts []qsbin.Packet) *QsPublisher {
	return &QsPublisher{pkts: pkts, queue: queue}
}

// Subscribe registers a market-data subscriber with its latency.
func (p *QsPublisher) Subscribe(latency qsbin.UnixMicro, sub QsSubscriber) {
	p.subs = append(p.subs, struct {
		latency qsbin.UnixMicro
		sub     QsSubscriber
	}{latency, sub})
}

// Reset drops all registrations.
func (p *QsPublisher) Reset() { p.subs = nil }

// Setup schedules every packet for every subscriber.
func (p *QsPublisher) Setup() {
	for i := range p.pkts {
		pkt := &p.pkts[i]
		for _, it := range p.subs {
			sub := it.sub
			p.queue.PostAt(pkt.QsSendTime+it.latency, func() { sub.OnPacket(pkt) })
		}
	}
}
