// Package marketdata aggregates replayed trades into OHLCV candles. The
// recorder is driven entirely by simulated timestamps so a given capture
// always produces the same candles; there are no tickers and no wall clock.
package marketdata

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/log"
	"github.com/segmentio/encoding/json"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// Interval is a candle width in simulated microseconds.
type Interval qsbin.UnixMicro

const (
	Interval1s  Interval = 1_000_000
	Interval15s Interval = 15_000_000
	Interval1m  Interval = 60_000_000
	Interval5m  Interval = 300_000_000
	Interval15m Interval = 900_000_000
	Interval1h  Interval = 3_600_000_000
)

func (i Interval) String() string {
	switch i {
	case Interval1s:
		return "1s"
	case Interval15s:
		return "15s"
	case Interval1m:
		return "1m"
	case Interval5m:
		return "5m"
	case Interval15m:
		return "15m"
	case Interval1h:
		return "1h"
	default:
		return fmt.Sprintf("%dus", qsbin.UnixMicro(i))
	}
}

// DefaultIntervals is the recorder's stock interval set.
func DefaultIntervals() []Interval {
	return []Interval{Interval1s, Interval15s, Interval1m, Interval5m, Interval15m, Interval1h}
}

// Candle is one OHLCV bar over simulated time.
type Candle struct {
	Symbol    string          `json:"symbol"`
	Interval  Interval        `json:"interval"`
	OpenTime  qsbin.UnixMicro `json:"openTime"`
	CloseTime qsbin.UnixMicro `json:"closeTime"`
	Open      float64         `json:"open"`
	High      float64         `json:"high"`
	Low       float64         `json:"low"`
	Close     float64         `json:"close"`
	Volume    float64         `json:"volume"`
	Trades    int             `json:"trades"`
	Complete  bool            `json:"complete"`
}

type candleKey struct {
	symbol   string
	interval Interval
}

// Recorder folds trades into one open candle per (symbol, interval) and
// persists completed bars. It is single-threaded like the rest of the
// simulation: calls arrive from inside scheduler callbacks only.
type Recorder struct {
	logger    log.Logger
	db        database.Database
	intervals []Interval

	open        map[candleKey]*Candle
	subscribers map[candleKey][]chan *Candle

	totalTrades  uint64
	totalCandles uint64
}

// NewRecorder builds a recorder over the given intervals; nil selects
// DefaultIntervals.
func NewRecorder(logger log.Logger, db database.Database, intervals []Interval) *Recorder {
	if intervals == nil {
		intervals = DefaultIntervals()
	}
	return &Recorder{
		logger:      logger,
		db:          db,
		intervals:   intervals,
		open:        make(map[candleKey]*Candle),
		subscribers: make(map[candleKey][]chan *Candle),
	}
}

// OnTrade folds one trade into every interval's open candle. A trade past
// an open candle's close boundary completes that candle first.
func (r *Recorder) OnTrade(symbol string, ts qsbin.UnixMicro, prc, qty float64) {
	r.totalTrades++
	for _, interval := range r.intervals {
		key := candleKey{symbol: symbol, interval: interval}
		openTime := ts - ts%qsbin.UnixMicro(interval)

		candle := r.open[key]
		if candle != nil && candle.OpenTime != openTime {
			r.complete(key, candle)
			candle = nil
		}
		if candle == nil {
			r.open[key] = &Candle{
				Symbol:    symbol,
				Interval:  interval,
				OpenTime:  openTime,
				CloseTime: openTime + qsbin.UnixMicro(interval),
				Open:      prc,
				High:      prc,
				Low:       prc,
				Close:     prc,
				Volume:    qty,
				Trades:    1,
			}
			continue
		}
		candle.High = max(candle.High, prc)
		candle.Low = min(candle.Low, prc)
		candle.Close = prc
		candle.Volume += qty
		candle.Trades++
	}
}

// Flush completes every open candle. Call once at end of replay.
func (r *Recorder) Flush() {
	for key, candle := range r.open {
		r.complete(key, candle)
	}
	r.open = make(map[candleKey]*Candle)
}

func (r *Recorder) complete(key candleKey, candle *Candle) {
	candle.Complete = true
	r.totalCandles++
	delete(r.open, key)
	r.store(candle)
	for _, ch := range r.subscribers[key] {
		select {
		case ch <- candle:
		default: // subscriber not keeping up, skip
		}
	}
}

func (r *Recorder) store(candle *Candle) {
	value, err := json.Marshal(candle)
	if err != nil {
		r.logger.Error("failed to marshal candle", "error", err)
		return
	}
	if err := r.db.Put(candleDBKey(candle.Symbol, candle.Interval, candle.OpenTime), value); err != nil {
		r.logger.Error("failed to store candle", "error", err)
	}
}

func candleDBKey(symbol string, interval Interval, openTime qsbin.UnixMicro) []byte {
	return []byte(fmt.Sprintf("candle:%s:%s:%d", symbol, interval, openTime))
}

// Subscribe returns a channel receiving completed candles for one
// (symbol, interval). Slow subscribers drop candles rather than stall the
// replay.
func (r *Recorder) Subscribe(symbol string, interval Interval) <-chan *Candle {
	key := candleKey{symbol: symbol, interval: interval}
	ch := make(chan *Candle, 100)
	r.subscribers[key] = append(r.subscribers[key], ch)
	return ch
}

// Load reads one persisted candle back.
func (r *Recorder) Load(symbol string, interval Interval, openTime qsbin.UnixMicro) (*Candle, error) {
	value, err := r.db.Get(candleDBKey(symbol, interval, openTime))
	if err != nil {
		return nil, err
	}
	var candle Candle
	if err := json.Unmarshal(value, &candle); err != nil {
		return nil, fmt.Errorf("decode candle: %w", err)
	}
	return &candle, nil
}

// OpenCandle returns the in-progress candle, if any.
func (r *Recorder) OpenCandle(symbol string, interval Interval) *Candle {
	return r.open[candleKey{symbol: symbol, interval: interval}]
}

// Stats reports running totals for diagnostics.
func (r *Recorder) Stats() (trades, candles uint64) {
	return r.totalTrades, r.totalCandles
}
