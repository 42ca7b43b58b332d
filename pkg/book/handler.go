// Package book reconstructs top-of-book state from a decoded packet stream.
// One PktHandler owns the authoritative book for a single (exchange, symbol)
// pair; sequencing and staleness arbitration happen here.
package book

import (
	"math"

	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// PktHandler consumes packets and maintains bid/ask price maps plus a
// running last-trade aggregate. Staleness and sequence gaps are diagnostics
// only; the handler keeps serving its best current state.
type PktHandler struct {
	logger log.Logger

	// ordering
	SeqNum     uint32
	QsSendTime qsbin.UnixMicro
	ExchTime   qsbin.UnixMicro
	MdID       uint64

	// book
	LastBookTime qsbin.UnixMicro
	Bids         PriceBook
	Asks         PriceBook

	// trade
	LastTradeTime qsbin.UnixMicro
	LastTradeSide qsbin.MakerSide
	LastTradePrc  float64
	LastTradeQty  float64
}

// NewPktHandler returns a reset handler.
func NewPktHandler(logger log.Logger) *PktHandler {
	h := &PktHandler{logger: logger}
	h.Reset()
	return h
}

// Reset clears all book, trade and sequencing state.
func (h *PktHandler) Reset() {
	h.SeqNum = 0
	h.QsSendTime = 0
	h.ExchTime = 0
	h.MdID = 0
	h.LastBookTime = 0
	h.Bids.Clear()
	h.Asks.Clear()
	h.LastTradeTime = 0
	h.LastTradeSide = qsbin.MakerX
	h.LastTradePrc = math.NaN()
	h.LastTradeQty = 0
}

// OnPacket applies a packet with full sequencing and staleness checks.
//
// Inferred, filtered and duplicate-sequence packets are dropped silently —
// they are expected feed noise. Level updates are applied whenever the
// packet is in sequence, regardless of trade-time freshness; stale levels
// and trades are logged but never raise errors.
func (h *PktHandler) OnPacket(pkt *qsbin.Packet) {
	if pkt.Inferred || pkt.Filtered || (len(pkt.Levels) > 0 && pkt.SeqNum <= h.SeqNum) {
		return
	}
	if pkt.Snapshot {
		h.Reset()
	}

	bookSeq := h.SeqNum == 0 || pkt.SeqNum == h.SeqNum+1
	trdFresh := pkt.ExchTime > h.LastBookTime
	if !trdFresh && len(pkt.Trades) > 0 {
		h.logger.Info("got stale trade",
			"current", h.LastBookTime, "received", pkt.ExchTime, "md_id", pkt.MdID)
	}

	h.MdID = pkt.MdID
	h.ExchTime = max(h.ExchTime, pkt.ExchTime)
	h.QsSendTime = max(h.QsSendTime, pkt.QsSendTime)
	h.SeqNum = max(h.SeqNum, pkt.SeqNum)

	if len(pkt.Levels) > 0 {
		h.LastBookTime = max(pkt.ExchTime, h.LastBookTime)
		if bookSeq {
			for i := range pkt.Levels {
				h.OnLevel(&pkt.Levels[i])
			}
		} else {
			h.logger.Warn("got oos packet", "current", h.SeqNum, "received", pkt.SeqNum)
		}
	}

	if len(pkt.Trades) > 0 {
		// Aggregation continues only across packets sharing the same
		// exchange timestamp, so the flag is taken before the clock moves.
		continued := h.LastTradeTime == pkt.ExchTime
		h.LastTradeTime = max(pkt.ExchTime, h.LastTradeTime)
		for i := range pkt.Trades {
			h.OnTrade(&pkt.Trades[i], continued)
			continued = true
		}
		if trdFresh {
			h.FlushBook(&pkt.Trades[len(pkt.Trades)-1])
		}
	}
}

// OnPacketUnsafe applies every field and level unconditionally. Only for
// callers that already validated and ordered the stream; it must never see
// externally-sourced, unordered data.
func (h *PktHandler) OnPacketUnsafe(pkt *qsbin.Packet) {
	h.SeqNum = pkt.SeqNum
	h.MdID = pkt.MdID
	h.ExchTime = pkt.ExchTime
	h.QsSendTime = pkt.QsSendTime
	for i := range pkt.Levels {
		h.LastBookTime = pkt.ExchTime
		h.OnLevel(&pkt.Levels[i])
	}
	continued := h.LastTradeTime == pkt.ExchTime
	for i := range pkt.Trades {
		h.OnTrade(&pkt.Trades[i], continued)
		h.LastTradeTime = pkt.ExchTime
		continued = true
	}
}

// OnLevel upserts one level; zero quantity removes the price.
func (h *PktHandler) OnLevel(lvl *qsbin.Level) {
	if lvl.Side == qsbin.MakerB {
		h.Bids.Set(lvl.Prc, lvl.Qty)
	} else {
		h.Asks.Set(lvl.Prc, lvl.Qty)
	}
}

// OnTrade merges a print into the running last-trade aggregate. Continued
// trades (same exchange timestamp) accumulate a volume-weighted price and
// summed quantity; otherwise a new aggregate starts.
func (h *PktHandler) OnTrade(trd *qsbin.Trade, continued bool) {
	prevQty := h.LastTradeQty
	prevPrc := h.LastTradePrc
	if !continued {
		prevQty = 0
	}
	if math.IsNaN(prevPrc) {
		prevPrc = 0
	}
	h.LastTradeQty = trd.Qty + prevQty
	h.LastTradePrc = (trd.Prc*trd.Qty + prevPrc*prevQty) / h.LastTradeQty
	h.LastTradeSide = trd.Side
}

// FlushBook prunes levels crossed by a trade print so the book never shows
// levels the trade traded through. Bids traded: every bid above the trade
// price goes, the level at the trade price is decremented. Asks traded:
// symmetric.
func (h *PktHandler) FlushBook(trd *qsbin.Trade) {
	if trd.Side == qsbin.MakerB {
		h.Bids.TrimAbove(trd.Prc)
		h.Bids.Sub(trd.Prc, trd.Qty)
	} else {
		h.Asks.TrimBelow(trd.Prc)
		h.Asks.Sub(trd.Prc, trd.Qty)
	}
}

// BestBid returns the highest bid.
func (h *PktHandler) BestBid() (PriceQty, bool) { return h.Bids.Max() }

// BestAsk returns the lowest ask.
func (h *PktHandler) BestAsk() (PriceQty, bool) { return h.Asks.Min() }
