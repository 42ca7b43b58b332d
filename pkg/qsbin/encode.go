package qsbin

import "math"

// Writer-side helpers. The simulator itself never encodes; these exist for
// capture tooling and test fixtures and mirror the layouts in decode.go.

// BookMeta carries the shared sub-header fields of book and trade records.
type BookMeta struct {
	QsLatency  uint32
	SeqNum     uint32
	QsSendTime UnixMicro
	ExchTime   UnixMicro
	MdID       uint64
}

func appendHeader(dst []byte, size int, version, disc uint8, filtered bool, exch uint8, symbol uint16, ts UnixMicro) []byte {
	mt := disc & 0x7f
	if filtered {
		mt |= 0x80
	}
	dst = wire.AppendUint16(dst, uint16(size))
	dst = append(dst, version&0x7f, 0, mt, exch)
	dst = wire.AppendUint16(dst, symbol)
	dst = append(dst, 0, 0, 0, 0, 0, 0, 0, 0) // qs type + reserved
	return wire.AppendUint64(dst, ts)
}

func appendF64(dst []byte, v float64) []byte {
	return wire.AppendUint64(dst, math.Float64bits(v))
}

// AppendBook encodes a snapshot or delta record with the given levels.
func AppendBook(dst []byte, snapshot bool, version uint8, exch uint8, symbol uint16, meta BookMeta, bids, asks []Level) []byte {
	disc := uint8(msgDelta)
	if snapshot {
		disc = msgSnapshot
	}
	size := HeaderSize + bookHdrSize + (len(bids)+len(asks))*priceLevelSize
	dst = appendHeader(dst, size, version, disc, false, exch, symbol, meta.QsSendTime)
	dst = wire.AppendUint16(dst, uint16(len(bids)))
	dst = wire.AppendUint16(dst, uint16(len(asks)))
	dst = wire.AppendUint16(dst, uint16(len(bids)+len(asks)))
	dst = append(dst, 0, 0)
	dst = wire.AppendUint32(dst, meta.QsLatency)
	dst = wire.AppendUint32(dst, meta.SeqNum)
	dst = wire.AppendUint64(dst, meta.QsSendTime)
	dst = wire.AppendUint64(dst, meta.ExchTime)
	dst = wire.AppendUint64(dst, meta.MdID)
	for _, lvl := range append(append([]Level{}, bids...), asks...) {
		dst = appendF64(dst, lvl.Prc)
		dst = appendF64(dst, lvl.Qty)
		dst = wire.AppendUint32(dst, lvl.Cnt)
		dst = append(dst, 0, 0, 0, 0)
	}
	return dst
}

// AppendTradeList encodes a v3 trade-list record. Inferred selects the
// inferred-trade discriminant.
func AppendTradeList(dst []byte, inferred bool, exch uint8, symbol uint16, side MakerSide, meta BookMeta, trades []Trade) []byte {
	disc := uint8(msgTradeList)
	if inferred {
		disc = msgInferredList
	}
	size := HeaderSize + tradeHdrV3Size + len(trades)*tradeV3Size
	dst = appendHeader(dst, size, 3, disc, false, exch, symbol, meta.QsSendTime)
	dst = append(dst, byte(side), 0)
	dst = wire.AppendUint16(dst, uint16(len(trades)))
	dst = wire.AppendUint32(dst, meta.QsLatency)
	dst = wire.AppendUint64(dst, meta.QsSendTime)
	dst = wire.AppendUint64(dst, meta.ExchTime)
	dst = wire.AppendUint64(dst, meta.MdID)
	for _, trd := range trades {
		dst = appendF64(dst, trd.Prc)
		dst = appendF64(dst, trd.Qty)
	}
	return dst
}

// AppendTradeV2 encodes a v2 single-trade record.
func AppendTradeV2(dst []byte, exch uint8, symbol uint16, meta BookMeta, trd Trade) []byte {
	size := HeaderSize + tradeV2Size
	dst = appendHeader(dst, size, 2, msgTradeV2, false, exch, symbol, meta.QsSendTime)
	dst = append(dst, byte(trd.Side), 0, 0, 0)
	dst = wire.AppendUint32(dst, meta.QsLatency)
	dst = wire.AppendUint64(dst, meta.QsSendTime)
	dst = wire.AppendUint64(dst, meta.ExchTime)
	dst = wire.AppendUint64(dst, meta.MdID)
	dst = appendF64(dst, trd.Prc)
	return appendF64(dst, trd.Qty)
}

// AppendFunding encodes a funding-rate record.
func AppendFunding(dst []byte, exch uint8, symbol uint16, meta BookMeta, fr Funding) []byte {
	size := HeaderSize + fundingRateSize
	dst = appendHeader(dst, size, 3, msgFundingRate, false, exch, symbol, meta.QsSendTime)
	dst = wire.AppendUint32(dst, meta.QsLatency)
	dst = append(dst, 0, 0, 0, 0)
	dst = wire.AppendUint64(dst, meta.QsSendTime)
	dst = wire.AppendUint64(dst, meta.ExchTime)
	dst = wire.AppendUint64(dst, meta.MdID)
	dst = appendF64(dst, fr.CurrentRate)
	dst = wire.AppendUint64(dst, fr.CurrentTime)
	dst = appendF64(dst, fr.NextRate)
	dst = wire.AppendUint64(dst, fr.NextTime)
	dst = appendF64(dst, fr.IndexPrice)
	return appendF64(dst, fr.MarkPrice)
}

// AppendUnknown encodes a record with an unmapped discriminant and an opaque
// payload, for exercising the skip path.
func AppendUnknown(dst []byte, disc uint8, version uint8, payload []byte) []byte {
	size := HeaderSize + len(payload)
	dst = appendHeader(dst, size, version, disc, false, 0, 0, 0)
	return append(dst, payload...)
}
