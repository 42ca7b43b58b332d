// Package qsbin decodes the binary quote-stream capture format: back-to-back
// framed records, each a fixed header followed by a message-kind specific
// payload. All integers and floats are little-endian and read field by field;
// nothing is reinterpreted from raw memory.
package qsbin

import "math"

// UnixMicro is a unix timestamp in microseconds.
type UnixMicro = uint64

// MakerSide identifies which side of the book rested in a trade.
// MakerB means bids traded (sell aggressor), MakerS means asks traded.
type MakerSide int8

const (
	MakerX MakerSide = iota // no trade
	MakerB
	MakerS
)

func (s MakerSide) String() string {
	switch s {
	case MakerB:
		return "B"
	case MakerS:
		return "S"
	default:
		return "X"
	}
}

// MsgKind is the resolved semantic kind of a record.
type MsgKind uint8

const (
	KindUnknown MsgKind = iota
	KindSnapshot
	KindDelta
	KindTrade
	KindTradeList
	KindInferredTradeList
	KindFundingRate
)

func (k MsgKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDelta:
		return "delta"
	case KindTrade:
		return "trade"
	case KindTradeList:
		return "trade_list"
	case KindInferredTradeList:
		return "inferred_trade_list"
	case KindFundingRate:
		return "funding_rate"
	default:
		return "unknown"
	}
}

// Wire discriminants for Header.MsgType's low 7 bits. The trade slot was
// reused between format versions: 3 is a single trade up to v2 and dead in
// v3+, while 4..6 only exist from v3 on.
const (
	msgSnapshot     = 1
	msgDelta        = 2
	msgTradeV2      = 3
	msgTradeList    = 4
	msgInferredList = 5
	msgFundingRate  = 6
)

// ResolveKind maps a (discriminant, version) pair to a MsgKind. It is total:
// combinations with no defined mapping resolve to KindUnknown.
func ResolveKind(disc, version uint8) MsgKind {
	switch disc {
	case msgSnapshot:
		return KindSnapshot
	case msgDelta:
		return KindDelta
	case msgTradeV2:
		if version <= 2 {
			return KindTrade
		}
	case msgTradeList:
		if version >= 3 {
			return KindTradeList
		}
	case msgInferredList:
		if version >= 3 {
			return KindInferredTradeList
		}
	case msgFundingRate:
		if version >= 3 {
			return KindFundingRate
		}
	}
	return KindUnknown
}

// Record sizes on the wire.
const (
	HeaderSize      = 24
	bookHdrSize     = 40
	priceLevelSize  = 24
	tradeV2Size     = 48
	tradeHdrV3Size  = 32
	tradeV3Size     = 16
	fundingRateSize = 80
)

// Header is the fixed frame header carried by every record.
type Header struct {
	Size       uint16 // declared total record size, header included
	Version    uint8  // low 7 bits
	StreamType uint8  // low 7 bits
	MsgType    uint8  // low 7 bits discriminant, bit 7 filtered flag
	Exch       uint8
	Symbol     uint16
	QsType     uint8
	Ts         UnixMicro
}

// PayloadSize returns the declared payload size after the header.
func (h Header) PayloadSize() int { return int(h.Size) - HeaderSize }

// Discriminant returns the 7-bit message-type value.
func (h Header) Discriminant() uint8 { return h.MsgType & 0x7f }

// Filtered reports whether the venue marked this record filtered.
func (h Header) Filtered() bool { return h.MsgType&0x80 != 0 }

// Kind resolves the header's semantic message kind.
func (h Header) Kind() MsgKind { return ResolveKind(h.Discriminant(), h.Version&0x7f) }

// Level is a single decoded book level.
type Level struct {
	Prc  float64
	Qty  float64
	Cnt  uint32
	Side MakerSide // MakerB for a bid level, MakerS for an ask level
}

// Trade is a single decoded trade print.
type Trade struct {
	Prc  float64
	Qty  float64
	Side MakerSide
}

// Funding carries a decoded funding-rate record verbatim. It is not
// interpreted at this layer.
type Funding struct {
	CurrentRate float64
	CurrentTime UnixMicro
	NextRate    float64
	NextTime    UnixMicro
	IndexPrice  float64
	MarkPrice   float64
}

// Packet is one decoded record. It is immutable after ReadPacket returns and
// owned by the caller.
type Packet struct {
	Exch     uint8
	Symbol   uint16
	Kind     MsgKind
	Snapshot bool
	Inferred bool
	Filtered bool

	QsLatency  uint32
	SeqNum     uint32
	MdID       uint64
	QsSendTime UnixMicro
	ExchTime   UnixMicro
	Ts         UnixMicro

	Levels  []Level
	Trades  []Trade
	Funding *Funding
}

// normQty maps a NaN wire quantity to 0 so that callers treat it uniformly
// as a level removal.
func normQty(qty float64) float64 {
	if math.IsNaN(qty) {
		return 0
	}
	return qty
}
