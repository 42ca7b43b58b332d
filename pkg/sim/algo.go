package sim

import (
	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// SimAlgo is a passive observer: it mirrors the market-data stream into its
// own book and emits top-of-book diagnostics, placing no orders. Useful for
// validating a replay before pointing a real strategy at it.
type SimAlgo struct {
	queue  *TaskQueue
	logger log.Logger
	qs     *book.PktHandler
	diag   *book.DiagWriter
}

// NewSimAlgo builds a passive observer. diag may be nil.
func NewSimAlgo(queue *TaskQueue, diag *book.DiagWriter, logger log.Logger) *SimAlgo {
	return &SimAlgo{
		queue:  queue,
		logger: logger,
		qs:     book.NewPktHandler(logger),
		diag:   diag,
	}
}

// Reset clears the mirrored book.
func (a *SimAlgo) Reset() { a.qs.Reset() }

// Setup implements the session lifecycle; a passive observer has nothing to
// schedule.
func (a *SimAlgo) Setup() {}

// OnFill implements TsSubscriber.
func (a *SimAlgo) OnFill(Fill) {}

// OnOrder implements TsSubscriber.
func (a *SimAlgo) OnOrder(Order) {}

// OnAddRej implements TsSubscriber.
func (a *SimAlgo) OnAddRej(Order, RejectReason) {}

// OnCxlRej implements TsSubscriber.
func (a *SimAlgo) OnCxlRej(Order, RejectReason) {}

// OnPacket implements QsSubscriber.
func (a *SimAlgo) OnPacket(pkt *qsbin.Packet) {
	a.qs.OnPacket(pkt)
	if a.diag != nil {
		a.diag.Snapshot(a.qs)
	}
}

// Book exposes the mirrored book.
func (a *SimAlgo) Book() *book.PktHandler { return a.qs }
