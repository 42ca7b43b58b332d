package book

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

func newHandler(t *testing.T) *PktHandler {
	t.Helper()
	level, _ := log.ToLevel("error")
	return NewPktHandler(log.NewTestLogger(level))
}

func bookPkt(seq uint32, exchTime qsbin.UnixMicro, snapshot bool, levels ...qsbin.Level) *qsbin.Packet {
	return &qsbin.Packet{
		Kind:     qsbin.KindDelta,
		Snapshot: snapshot,
		SeqNum:   seq,
		ExchTime: exchTime,
		Levels:   levels,
	}
}

func tradePkt(exchTime qsbin.UnixMicro, trades ...qsbin.Trade) *qsbin.Packet {
	return &qsbin.Packet{Kind: qsbin.KindTradeList, ExchTime: exchTime, Trades: trades}
}

func TestOnPacketAppliesLevelsInSequence(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(1, 100, true,
		qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB},
		qsbin.Level{Prc: 101, Qty: 3, Side: qsbin.MakerS},
	))
	h.OnPacket(bookPkt(2, 101, false,
		qsbin.Level{Prc: 99, Qty: 2, Side: qsbin.MakerB},
	))

	bid, ok := h.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid.Prc)
	assert.Equal(t, 2, h.Bids.Len())
	assert.Equal(t, uint32(2), h.SeqNum)
	assert.Equal(t, qsbin.UnixMicro(101), h.ExchTime)
}

func TestOnPacketZeroQtyRemovesLevel(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(1, 100, true, qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB}))
	h.OnPacket(bookPkt(2, 101, false, qsbin.Level{Prc: 100, Qty: 0, Side: qsbin.MakerB}))
	assert.Equal(t, 0, h.Bids.Len())
}

func TestOnPacketRejectsDuplicateSeq(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(5, 100, true, qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB}))
	// Same sequence again: dropped entirely, including metadata.
	h.OnPacket(bookPkt(5, 200, false, qsbin.Level{Prc: 100, Qty: 9, Side: qsbin.MakerB}))

	qty, ok := h.Bids.Qty(100)
	require.True(t, ok)
	assert.Equal(t, 5.0, qty)
	assert.Equal(t, qsbin.UnixMicro(100), h.ExchTime)
}

func TestOnPacketSkipsOutOfSequenceLevels(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(1, 100, true, qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB}))
	// Gap: 1 -> 3. Levels dropped, metadata still advances.
	h.OnPacket(bookPkt(3, 102, false, qsbin.Level{Prc: 98, Qty: 1, Side: qsbin.MakerB}))

	assert.Equal(t, 1, h.Bids.Len())
	assert.Equal(t, uint32(3), h.SeqNum)
	assert.Equal(t, qsbin.UnixMicro(102), h.ExchTime)
}

func TestOnPacketIgnoresInferredAndFiltered(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(1, 100, true, qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB}))

	inferred := tradePkt(200, qsbin.Trade{Prc: 100, Qty: 1, Side: qsbin.MakerB})
	inferred.Inferred = true
	h.OnPacket(inferred)
	assert.Equal(t, 0.0, h.LastTradeQty)

	filtered := bookPkt(2, 101, false, qsbin.Level{Prc: 99, Qty: 1, Side: qsbin.MakerB})
	filtered.Filtered = true
	h.OnPacket(filtered)
	assert.Equal(t, 1, h.Bids.Len())
}

func TestSnapshotResetsState(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(bookPkt(1, 100, true,
		qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB},
		qsbin.Level{Prc: 101, Qty: 5, Side: qsbin.MakerS},
	))
	h.OnPacket(bookPkt(9, 200, true, qsbin.Level{Prc: 50, Qty: 1, Side: qsbin.MakerB}))

	assert.Equal(t, 1, h.Bids.Len())
	assert.Equal(t, 0, h.Asks.Len())
	bid, _ := h.BestBid()
	assert.Equal(t, 50.0, bid.Prc)
	assert.Equal(t, uint32(9), h.SeqNum)
}

func TestTradeAggregationVWAP(t *testing.T) {
	h := newHandler(t)
	// Two prints in one packet at the same exchange time aggregate.
	h.OnPacket(tradePkt(100,
		qsbin.Trade{Prc: 10, Qty: 1, Side: qsbin.MakerS},
		qsbin.Trade{Prc: 20, Qty: 1, Side: qsbin.MakerS},
	))
	assert.Equal(t, 2.0, h.LastTradeQty)
	assert.InDelta(t, 15.0, h.LastTradePrc, 1e-12)

	// A second packet at the same exchange time keeps aggregating.
	h.OnPacket(tradePkt(100, qsbin.Trade{Prc: 30, Qty: 2, Side: qsbin.MakerS}))
	assert.Equal(t, 4.0, h.LastTradeQty)
	assert.InDelta(t, 22.5, h.LastTradePrc, 1e-12)

	// A later timestamp starts a fresh aggregate.
	h.OnPacket(tradePkt(200, qsbin.Trade{Prc: 30, Qty: 3, Side: qsbin.MakerS}))
	assert.Equal(t, 3.0, h.LastTradeQty)
	assert.InDelta(t, 30.0, h.LastTradePrc, 1e-12)
}

func TestFlushBookBidSide(t *testing.T) {
	h := newHandler(t)
	h.Bids.Set(100, 5)
	h.Bids.Set(99, 3)

	// Sell aggressor at 99 for 2: 100 is priced through, 99 decrements.
	h.FlushBook(&qsbin.Trade{Prc: 99, Qty: 2, Side: qsbin.MakerB})

	assert.Equal(t, 1, h.Bids.Len())
	qty, ok := h.Bids.Qty(99)
	require.True(t, ok)
	assert.Equal(t, 1.0, qty)
}

func TestFlushBookAskSide(t *testing.T) {
	h := newHandler(t)
	h.Asks.Set(101, 4)
	h.Asks.Set(102, 2)

	h.FlushBook(&qsbin.Trade{Prc: 102, Qty: 2, Side: qsbin.MakerS})

	// 101 traded through; 102 decremented to zero and removed.
	assert.Equal(t, 0, h.Asks.Len())
}

func TestFlushBookLeavesFarSide(t *testing.T) {
	h := newHandler(t)
	h.Bids.Set(100, 5)
	h.Asks.Set(101, 4)
	h.FlushBook(&qsbin.Trade{Prc: 101, Qty: 1, Side: qsbin.MakerS})
	assert.Equal(t, 1, h.Bids.Len())
	qty, _ := h.Asks.Qty(101)
	assert.Equal(t, 3.0, qty)
}

func TestReplayEqualsDirectApplication(t *testing.T) {
	// Strictly increasing sequence numbers: OnPacket equals applying the
	// same levels directly.
	h := newHandler(t)
	direct := newHandler(t)

	lvls := []qsbin.Level{
		{Prc: 100, Qty: 5, Side: qsbin.MakerB},
		{Prc: 99, Qty: 2, Side: qsbin.MakerB},
		{Prc: 101, Qty: 4, Side: qsbin.MakerS},
		{Prc: 100, Qty: 7, Side: qsbin.MakerB},
		{Prc: 99, Qty: 0, Side: qsbin.MakerB},
	}
	for i, lvl := range lvls {
		h.OnPacket(bookPkt(uint32(i+1), qsbin.UnixMicro(100+i), i == 0, lvl))
		direct.OnLevel(&lvl)
	}

	assert.Equal(t, direct.Bids.Levels(), h.Bids.Levels())
	assert.Equal(t, direct.Asks.Levels(), h.Asks.Levels())
}

func TestOnPacketUnsafeAppliesUnconditionally(t *testing.T) {
	h := newHandler(t)
	// Out-of-order sequence numbers are applied as-is in unsafe mode.
	h.OnPacketUnsafe(bookPkt(10, 100, false, qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB}))
	h.OnPacketUnsafe(bookPkt(3, 101, false, qsbin.Level{Prc: 101, Qty: 2, Side: qsbin.MakerB}))

	assert.Equal(t, uint32(3), h.SeqNum)
	assert.Equal(t, 2, h.Bids.Len())
}

func TestResetClearsTradeState(t *testing.T) {
	h := newHandler(t)
	h.OnPacket(tradePkt(100, qsbin.Trade{Prc: 10, Qty: 1, Side: qsbin.MakerB}))
	h.Reset()
	assert.True(t, math.IsNaN(h.LastTradePrc))
	assert.Equal(t, qsbin.MakerX, h.LastTradeSide)
	assert.Equal(t, 0.0, h.LastTradeQty)
}

func TestDiagWriterRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.csv")
	d, err := NewDiagWriter(path)
	require.NoError(t, err)

	h := newHandler(t)
	d.Snapshot(h) // one-sided book: no row

	h.OnPacket(bookPkt(1, 100, true,
		qsbin.Level{Prc: 100, Qty: 5, Side: qsbin.MakerB},
		qsbin.Level{Prc: 101, Qty: 3, Side: qsbin.MakerS},
	))
	d.Snapshot(h)
	require.NoError(t, d.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(diagHeader, ","), lines[0])
	assert.Contains(t, lines[1], "100,5,101,3")
}
