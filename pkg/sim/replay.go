package sim

import (
	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// OrderGateway is the order-entry surface a strategy drives.
type OrderGateway interface {
	ReqSubmit(ReqSubmit, qsbin.UnixMicro)
	ReqCancel(ReqCancel, qsbin.UnixMicro)
}

// ReplayAlgo drives a scripted request sequence against an exchange while
// mirroring the market-data stream into its own book. Each request is
// scheduled at its recorded time plus the algo's one-way latency. Fills and
// order updates are counted; book states are emitted as diagnostics.
type ReplayAlgo struct {
	queue   *TaskQueue
	gateway OrderGateway
	logger  log.Logger

	qs      *book.PktHandler
	diag    *book.DiagWriter
	reqs    []Req
	latency qsbin.UnixMicro

	Fills   []Fill
	Updates []Order
}

// NewReplayAlgo builds a replay strategy. diag may be nil to disable
// diagnostics output.
func NewReplayAlgo(queue *TaskQueue, gateway OrderGateway, reqs []Req, latency qsbin.UnixMicro, diag *book.DiagWriter, logger log.Logger) *ReplayAlgo {
	return &ReplayAlgo{
		queue:   queue,
		gateway: gateway,
		logger:  logger,
		qs:      book.NewPktHandler(logger),
		diag:    diag,
		reqs:    reqs,
		latency: latency,
	}
}

// Reset clears the mirrored book and collected events.
func (a *ReplayAlgo) Reset() {
	a.qs.Reset()
	a.Fills = nil
	a.Updates = nil
}

// Setup forwards every scripted request to the gateway at request time plus
// latency.
func (a *ReplayAlgo) Setup() {
	for _, req := range a.reqs {
		switch req.Type {
		case ReqTypeSubmit:
			a.gateway.ReqSubmit(req.Submit, req.Ts+a.latency)
		case ReqTypeCancel:
			a.gateway.ReqCancel(req.Cancel, req.Ts+a.latency)
		}
	}
}

// OnFill implements TsSubscriber.
func (a *ReplayAlgo) OnFill(fill Fill) { a.Fills = append(a.Fills, fill) }

// OnOrder implements TsSubscriber.
func (a *ReplayAlgo) OnOrder(order Order) { a.Updates = append(a.Updates, order) }

// OnAddRej implements TsSubscriber.
func (a *ReplayAlgo) OnAddRej(order Order, reason RejectReason) {
	a.logger.Warn("submit rejected", "oid", order.OID, "reason", reason)
}

// OnCxlRej implements TsSubscriber.
func (a *ReplayAlgo) OnCxlRej(order Order, reason RejectReason) {
	a.logger.Warn("cancel rejected", "oid", order.OID, "reason", reason)
}

// OnPacket implements QsSubscriber. The packet is applied with full sequence
// arbitration and a top-of-book snapshot is emitted.
func (a *ReplayAlgo) OnPacket(pkt *qsbin.Packet) {
	a.qs.OnPacket(pkt)
	if a.diag != nil {
		a.diag.Snapshot(a.qs)
	}
}

// Book exposes the algo's mirrored book.
func (a *ReplayAlgo) Book() *book.PktHandler { return a.qs }
