package qsbin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/luxfi/log"
)

// ErrTruncated is returned when a record's payload ends before its declared
// size. The current file load is aborted; previously decoded packets stay
// valid.
var ErrTruncated = errors.New("qsbin: truncated record")

var wire = binary.LittleEndian

func f64(b []byte) float64 { return math.Float64frombits(wire.Uint64(b)) }

// Decoder reads framed records off a byte stream. Each ReadPacket call
// decodes exactly one record. The decoder owns its scratch buffer; nothing
// is shared across instances.
type Decoder struct {
	r      io.Reader
	logger log.Logger
	buf    [fundingRateSize]byte
}

// NewDecoder wraps a stream for packet decoding.
func NewDecoder(r io.Reader, logger log.Logger) *Decoder {
	return &Decoder{r: r, logger: logger}
}

// ReadPacket decodes the next record. It returns io.EOF at a clean end of
// stream and ErrTruncated if the stream ends mid-record.
func (d *Decoder) ReadPacket() (Packet, error) {
	hdr, err := d.readHeader()
	if err != nil {
		return Packet{}, err
	}

	pkt := Packet{
		Exch:     hdr.Exch,
		Symbol:   hdr.Symbol,
		Kind:     hdr.Kind(),
		Filtered: hdr.Filtered(),
		Ts:       hdr.Ts,
	}

	switch pkt.Kind {
	case KindSnapshot, KindDelta:
		pkt.Snapshot = pkt.Kind == KindSnapshot
		if err := d.readBook(&pkt); err != nil {
			return Packet{}, err
		}
	case KindTrade:
		if err := d.readTradeV2(&pkt); err != nil {
			return Packet{}, err
		}
	case KindTradeList, KindInferredTradeList:
		pkt.Inferred = pkt.Kind == KindInferredTradeList
		if err := d.readTradeList(&pkt); err != nil {
			return Packet{}, err
		}
	case KindFundingRate:
		if err := d.readFunding(&pkt); err != nil {
			return Packet{}, err
		}
	default:
		// Unknown kinds never fail the stream: honor the declared size so
		// the next header stays aligned.
		if err := d.skip(hdr.PayloadSize()); err != nil {
			return Packet{}, err
		}
		d.logger.Warn("skipping unknown message",
			"size", hdr.Size,
			"discriminant", hdr.Discriminant(),
			"version", hdr.Version&0x7f,
			"exch", hdr.Exch,
			"symbol", hdr.Symbol)
	}
	return pkt, nil
}

// readHeader returns io.EOF only when the stream ends exactly on a record
// boundary.
func (d *Decoder) readHeader() (Header, error) {
	b := d.buf[:HeaderSize]
	if _, err := io.ReadFull(d.r, b); err != nil {
		if err == io.EOF {
			return Header{}, io.EOF
		}
		return Header{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	return Header{
		Size:       wire.Uint16(b[0:2]),
		Version:    b[2],
		StreamType: b[3],
		MsgType:    b[4],
		Exch:       b[5],
		Symbol:     wire.Uint16(b[6:8]),
		QsType:     b[8],
		Ts:         wire.Uint64(b[16:24]),
	}, nil
}

func (d *Decoder) readBook(pkt *Packet) error {
	b, err := d.fill(bookHdrSize, "book header")
	if err != nil {
		return err
	}
	nBids := int(wire.Uint16(b[0:2]))
	nAsks := int(wire.Uint16(b[2:4]))
	pkt.QsLatency = wire.Uint32(b[8:12])
	pkt.SeqNum = wire.Uint32(b[12:16])
	pkt.QsSendTime = wire.Uint64(b[16:24])
	pkt.ExchTime = wire.Uint64(b[24:32])
	pkt.MdID = wire.Uint64(b[32:40])

	pkt.Levels = make([]Level, 0, nBids+nAsks)
	for i := 0; i < nBids; i++ {
		if err := d.readLevel(pkt, MakerB); err != nil {
			return err
		}
	}
	for i := 0; i < nAsks; i++ {
		if err := d.readLevel(pkt, MakerS); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) readLevel(pkt *Packet, side MakerSide) error {
	b, err := d.fill(priceLevelSize, "price level")
	if err != nil {
		return err
	}
	pkt.Levels = append(pkt.Levels, Level{
		Prc:  f64(b[0:8]),
		Qty:  normQty(f64(b[8:16])),
		Cnt:  wire.Uint32(b[16:20]),
		Side: side,
	})
	return nil
}

func (d *Decoder) readTradeV2(pkt *Packet) error {
	b, err := d.fill(tradeV2Size, "trade")
	if err != nil {
		return err
	}
	side := MakerSide(int8(b[0]))
	pkt.QsLatency = wire.Uint32(b[4:8])
	pkt.QsSendTime = wire.Uint64(b[8:16])
	pkt.ExchTime = wire.Uint64(b[16:24])
	pkt.MdID = wire.Uint64(b[24:32])
	pkt.Trades = []Trade{{
		Prc:  f64(b[32:40]),
		Qty:  f64(b[40:48]),
		Side: side,
	}}
	return nil
}

func (d *Decoder) readTradeList(pkt *Packet) error {
	b, err := d.fill(tradeHdrV3Size, "trade header")
	if err != nil {
		return err
	}
	side := MakerSide(int8(b[0]))
	nTrades := int(wire.Uint16(b[2:4]))
	pkt.QsLatency = wire.Uint32(b[4:8])
	pkt.QsSendTime = wire.Uint64(b[8:16])
	pkt.ExchTime = wire.Uint64(b[16:24])
	pkt.MdID = wire.Uint64(b[24:32])

	pkt.Trades = make([]Trade, 0, nTrades)
	for i := 0; i < nTrades; i++ {
		tb, err := d.fill(tradeV3Size, "trade entry")
		if err != nil {
			return err
		}
		pkt.Trades = append(pkt.Trades, Trade{
			Prc:  f64(tb[0:8]),
			Qty:  f64(tb[8:16]),
			Side: side,
		})
	}
	return nil
}

func (d *Decoder) readFunding(pkt *Packet) error {
	b, err := d.fill(fundingRateSize, "funding rate")
	if err != nil {
		return err
	}
	pkt.QsLatency = wire.Uint32(b[0:4])
	pkt.QsSendTime = wire.Uint64(b[8:16])
	pkt.ExchTime = wire.Uint64(b[16:24])
	pkt.MdID = wire.Uint64(b[24:32])
	pkt.Funding = &Funding{
		CurrentRate: f64(b[32:40]),
		CurrentTime: wire.Uint64(b[40:48]),
		NextRate:    f64(b[48:56]),
		NextTime:    wire.Uint64(b[56:64]),
		IndexPrice:  f64(b[64:72]),
		MarkPrice:   f64(b[72:80]),
	}
	return nil
}

func (d *Decoder) fill(n int, what string) ([]byte, error) {
	b := d.buf[:n]
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTruncated, what, err)
	}
	return b, nil
}

func (d *Decoder) skip(n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, d.r, int64(n)); err != nil {
		return fmt.Errorf("%w: unknown payload: %v", ErrTruncated, err)
	}
	return nil
}
