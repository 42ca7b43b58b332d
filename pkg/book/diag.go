package book

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// diagHeader is the stable column layout consumed by offline analysis.
// Do not reorder.
var diagHeader = []string{
	"seq_num", "qs_send_time", "exch_time", "md_id",
	"last_trade_maker_side", "last_trade_time", "last_trade_prc", "last_trade_qty",
	"bid_prc", "bid_qty", "ask_prc", "ask_qty",
}

// DefaultDiagPath is used when no diagnostic destination is configured.
func DefaultDiagPath() string {
	return filepath.Join(os.TempDir(), "qsdiag.csv")
}

// DiagWriter emits comma-separated top-of-book snapshots.
type DiagWriter struct {
	f *os.File
	w *csv.Writer
}

// NewDiagWriter opens (truncating) the diagnostic file and writes the
// header row.
func NewDiagWriter(path string) (*DiagWriter, error) {
	if path == "" {
		path = DefaultDiagPath()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open diag file: %w", err)
	}
	d := &DiagWriter{f: f, w: csv.NewWriter(f)}
	if err := d.w.Write(diagHeader); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// Snapshot writes one row for the handler's current state. Rows are only
// emitted while both sides of the book are non-empty.
func (d *DiagWriter) Snapshot(h *PktHandler) {
	bid, okBid := h.BestBid()
	ask, okAsk := h.BestAsk()
	if !okBid || !okAsk {
		return
	}
	d.w.Write([]string{
		strconv.FormatUint(uint64(h.SeqNum), 10),
		strconv.FormatUint(h.QsSendTime, 10),
		strconv.FormatUint(h.ExchTime, 10),
		strconv.FormatUint(h.MdID, 10),
		h.LastTradeSide.String(),
		strconv.FormatUint(h.LastTradeTime, 10),
		strconv.FormatFloat(h.LastTradePrc, 'f', -1, 64),
		strconv.FormatFloat(h.LastTradeQty, 'f', -1, 64),
		strconv.FormatFloat(bid.Prc, 'f', -1, 64),
		strconv.FormatFloat(bid.Qty, 'f', -1, 64),
		strconv.FormatFloat(ask.Prc, 'f', -1, 64),
		strconv.FormatFloat(ask.Qty, 'f', -1, 64),
	})
}

// Close flushes and closes the underlying file.
func (d *DiagWriter) Close() error {
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}
