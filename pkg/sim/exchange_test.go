package sim

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

func simLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

// recorder captures delivered events together with the simulated time they
// arrived at.
type recorder struct {
	q       *TaskQueue
	fills   []Fill
	updates []Order
	addRej  []RejectReason
	cxlRej  []RejectReason
	at      []qsbin.UnixMicro
}

func (r *recorder) OnFill(f Fill) {
	r.fills = append(r.fills, f)
	r.at = append(r.at, r.q.Now())
}

func (r *recorder) OnOrder(o Order) {
	r.updates = append(r.updates, o)
	r.at = append(r.at, r.q.Now())
}

func (r *recorder) OnAddRej(_ Order, reason RejectReason) { r.addRej = append(r.addRej, reason) }
func (r *recorder) OnCxlRej(_ Order, reason RejectReason) { r.cxlRej = append(r.cxlRej, reason) }

func seedPkts(extra ...qsbin.Packet) []qsbin.Packet {
	pkts := []qsbin.Packet{{
		Kind:       qsbin.KindSnapshot,
		Snapshot:   true,
		SeqNum:     1,
		ExchTime:   100,
		QsSendTime: 100,
		Levels: []qsbin.Level{
			{Prc: 100, Qty: 5, Side: qsbin.MakerB},
			{Prc: 101, Qty: 3, Side: qsbin.MakerS},
		},
	}}
	return append(pkts, extra...)
}

func newExchange(pkts []qsbin.Packet) (*NoImpactExchange, *TaskQueue, *recorder) {
	q := NewTaskQueue()
	e := NewNoImpactExchange(q, pkts, simLogger())
	rec := &recorder{q: q}
	e.Subscribe(10, rec)
	e.Setup()
	return e, q, rec
}

func TestSubmitGTCRests(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	q.RunUntilDone()

	require.Len(t, rec.updates, 1)
	assert.Equal(t, StatusOpen, rec.updates[0].Status)
	assert.Equal(t, 0.0, rec.updates[0].Queue)
	assert.Empty(t, rec.fills)

	o, ok := e.RestingOrder(qsbin.MakerB, 99, 1)
	require.True(t, ok)
	assert.Equal(t, 2.0, o.Qty)
}

func TestSubmitCrossingFillsAtBest(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 102, Qty: 2}, 200)
	q.RunUntilDone()

	require.Len(t, rec.fills, 1)
	assert.Equal(t, 101.0, rec.fills[0].Prc)
	assert.Equal(t, 2.0, rec.fills[0].Qty)
	assert.False(t, rec.fills[0].IsMaker)

	require.Len(t, rec.updates, 1)
	assert.Equal(t, StatusDone, rec.updates[0].Status)
	assert.Equal(t, DoneFullyFilled, rec.updates[0].DoneReason)
	_, ok := e.RestingOrder(qsbin.MakerB, 102, 1)
	assert.False(t, ok)
}

func TestSubmitPostCrossingRejected(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: POST, OID: 1, Side: qsbin.MakerB, Prc: 101, Qty: 2}, 200)
	q.RunUntilDone()

	require.Len(t, rec.updates, 1)
	assert.Equal(t, StatusDone, rec.updates[0].Status)
	assert.Equal(t, DonePostOnly, rec.updates[0].DoneReason)
	assert.Empty(t, rec.fills)
}

func TestSubmitFAKNonCrossingDone(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: FAK, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	q.RunUntilDone()

	require.Len(t, rec.updates, 1)
	assert.Equal(t, StatusDone, rec.updates[0].Status)
	assert.Equal(t, DoneFAK, rec.updates[0].DoneReason)
	assert.Empty(t, rec.fills)
	_, ok := e.RestingOrder(qsbin.MakerB, 99, 1)
	assert.False(t, ok)
}

func TestSubmitDuplicateOIDRejected(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 1}, 210)
	q.RunUntilDone()

	require.Len(t, rec.addRej, 1)
	assert.Equal(t, RejectDuplicateOrder, rec.addRej[0])
	require.Len(t, rec.updates, 1)
}

func TestCancelResting(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	e.ReqCancel(ReqCancel{OID: 1, Side: qsbin.MakerB, Prc: 99}, 250)
	q.RunUntilDone()

	require.Len(t, rec.updates, 2)
	assert.Equal(t, StatusDone, rec.updates[1].Status)
	assert.Equal(t, DoneCancel, rec.updates[1].DoneReason)
	_, ok := e.RestingOrder(qsbin.MakerB, 99, 1)
	assert.False(t, ok)
}

func TestCancelUnknownNoEvent(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqCancel(ReqCancel{OID: 42, Side: qsbin.MakerB, Prc: 99}, 200)
	q.RunUntilDone()

	assert.Empty(t, rec.updates)
	assert.Empty(t, rec.fills)
	assert.Empty(t, rec.cxlRej)
}

func TestTradeFillsRestingAtPrice(t *testing.T) {
	pkts := seedPkts(qsbin.Packet{
		Kind:       qsbin.KindTradeList,
		ExchTime:   300,
		QsSendTime: 300,
		Trades:     []qsbin.Trade{{Prc: 100, Qty: 2, Side: qsbin.MakerB}},
	})
	e, q, rec := newExchange(pkts)
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 100, Qty: 3}, 200)
	q.RunUntilDone()

	require.Len(t, rec.fills, 1)
	assert.Equal(t, 100.0, rec.fills[0].Prc)
	assert.Equal(t, 2.0, rec.fills[0].Qty)
	assert.True(t, rec.fills[0].IsMaker)

	o, ok := e.RestingOrder(qsbin.MakerB, 100, 1)
	require.True(t, ok)
	assert.Equal(t, 1.0, o.Qty)
	assert.Equal(t, StatusOpen, o.Status)
}

func TestTradeClearsPricedThroughLevels(t *testing.T) {
	pkts := seedPkts(qsbin.Packet{
		Kind:       qsbin.KindTradeList,
		ExchTime:   300,
		QsSendTime: 300,
		Trades:     []qsbin.Trade{{Prc: 99, Qty: 1, Side: qsbin.MakerB}},
	})
	e, q, rec := newExchange(pkts)
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 100, Qty: 3}, 200)
	q.RunUntilDone()

	require.Len(t, rec.fills, 1)
	assert.Equal(t, 3.0, rec.fills[0].Qty)
	assert.Equal(t, 100.0, rec.fills[0].Prc)

	require.Len(t, rec.updates, 2)
	assert.Equal(t, DoneFullyFilled, rec.updates[1].DoneReason)
	_, ok := e.RestingOrder(qsbin.MakerB, 100, 1)
	assert.False(t, ok)
}

func TestTradeEmptyingLevelStillClearsThroughLevels(t *testing.T) {
	pkts := seedPkts(qsbin.Packet{
		Kind:       qsbin.KindTradeList,
		ExchTime:   300,
		QsSendTime: 300,
		Trades:     []qsbin.Trade{{Prc: 99, Qty: 5, Side: qsbin.MakerB}},
	})
	e, q, rec := newExchange(pkts)
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 5}, 200)
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 2, Side: qsbin.MakerB, Prc: 100, Qty: 10}, 210)
	q.RunUntilDone()

	require.Len(t, rec.fills, 2)
	assert.Equal(t, 99.0, rec.fills[0].Prc)
	assert.Equal(t, 5.0, rec.fills[0].Qty)
	assert.Equal(t, 100.0, rec.fills[1].Prc)
	assert.Equal(t, 10.0, rec.fills[1].Qty)

	_, ok := e.RestingOrder(qsbin.MakerB, 99, 1)
	assert.False(t, ok)
	_, ok = e.RestingOrder(qsbin.MakerB, 100, 2)
	assert.False(t, ok)
}

func TestSyncQueueClampsToDisplayed(t *testing.T) {
	e, q, _ := newExchange(seedPkts())
	q.RunUntilDone()

	o := &Order{OID: 1, Prc: 100, Qty: 1, Queue: 9, Side: qsbin.MakerB, Status: StatusOpen}
	e.restOrder(o)

	e.syncQueue()
	assert.Equal(t, 5.0, o.Queue)

	e.qs.Bids.Set(100, 8)
	e.syncQueue()
	assert.Equal(t, 5.0, o.Queue)

	e.qs.Bids.Set(100, 2)
	e.syncQueue()
	assert.Equal(t, 2.0, o.Queue)
}

func TestSubscriberLatency(t *testing.T) {
	e, q, rec := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	q.RunUntilDone()

	require.Len(t, rec.at, 1)
	assert.Equal(t, qsbin.UnixMicro(210), rec.at[0])
}

func TestResetClearsRestingOrders(t *testing.T) {
	e, q, _ := newExchange(seedPkts())
	e.ReqSubmit(ReqSubmit{TIF: GTC, OID: 1, Side: qsbin.MakerB, Prc: 99, Qty: 2}, 200)
	q.RunUntilDone()

	e.Reset()
	_, ok := e.RestingOrder(qsbin.MakerB, 99, 1)
	assert.False(t, ok)
}
