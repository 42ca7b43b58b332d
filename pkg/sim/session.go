package sim

import (
	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/qsbin"
)

// Instrument keys a market-data stream by venue and symbol id.
type Instrument struct {
	Exch   uint8
	Symbol uint16
}

// Session wires packet data, exchanges, data publishers and strategies onto
// one shared task queue and runs the simulation to completion.
type Session struct {
	queue  *TaskQueue
	logger log.Logger

	tsPubs map[Instrument]*NoImpactExchange
	qsPubs map[Instrument]*QsPublisher
	algos  []*ReplayAlgo
}

// NewSession builds an empty session.
func NewSession(logger log.Logger) *Session {
	return &Session{
		queue:  NewTaskQueue(),
		logger: logger,
		tsPubs: make(map[Instrument]*NoImpactExchange),
		qsPubs: make(map[Instrument]*QsPublisher),
	}
}

// AddExchange registers a matching exchange for one instrument. A second
// registration for the same instrument is refused.
func (s *Session) AddExchange(exch uint8, symbol uint16, pkts []qsbin.Packet) {
	key := Instrument{Exch: exch, Symbol: symbol}
	if _, ok := s.tsPubs[key]; ok {
		s.logger.Warn("data already loaded, cowardly refusing to reload",
			"exch", exch, "symbol", symbol)
		return
	}
	s.tsPubs[key] = NewNoImpactExchange(s.queue, pkts, s.logger)
}

// AddDataPublisher registers a market-data publisher for one instrument. A
// second registration for the same instrument is refused.
func (s *Session) AddDataPublisher(exch uint8, symbol uint16, pkts []qsbin.Packet) {
	key := Instrument{Exch: exch, Symbol: symbol}
	if _, ok := s.qsPubs[key]; ok {
		s.logger.Warn("data already loaded, cowardly refusing to reload",
			"exch", exch, "symbol", symbol)
		return
	}
	s.qsPubs[key] = NewQsPublisher(s.queue, pkts)
}

// LoadQsBinFiles loads capture files and registers both the exchange and the
// data publisher for the instrument.
func (s *Session) LoadQsBinFiles(files []string, exch uint8, symbol uint16) error {
	pkts, err := qsbin.LoadBinFiles(files, s.logger)
	if err != nil {
		return err
	}
	s.AddExchange(exch, symbol, pkts)
	s.AddDataPublisher(exch, symbol, pkts)
	return nil
}

// AddAlgo attaches a scripted strategy to an instrument's exchange and data
// feed with a symmetric one-way latency. diag may be nil.
func (s *Session) AddAlgo(exch uint8, symbol uint16, latency qsbin.UnixMicro, reqs []Req, diag *book.DiagWriter) *ReplayAlgo {
	key := Instrument{Exch: exch, Symbol: symbol}
	tsPub, ok := s.tsPubs[key]
	if !ok {
		s.logger.Warn("no exchange registered", "exch", exch, "symbol", symbol)
		return nil
	}
	qsPub, ok := s.qsPubs[key]
	if !ok {
		s.logger.Warn("no data publisher registered", "exch", exch, "symbol", symbol)
	}

	algo := NewReplayAlgo(s.queue, tsPub, reqs, latency, diag, s.logger)
	s.algos = append(s.algos, algo)
	tsPub.Subscribe(latency, algo)
	if qsPub != nil {
		qsPub.Subscribe(latency, algo)
	}
	return algo
}

// Reset clears the task queue, all publishers and all strategies.
func (s *Session) Reset() {
	s.queue.Clear()
	for _, pub := range s.qsPubs {
		pub.Reset()
	}
	for _, pub := range s.tsPubs {
		pub.Reset()
	}
	s.algos = nil
}

// Setup schedules all publishers' initial events and all strategy requests.
func (s *Session) Setup() {
	for _, pub := range s.qsPubs {
		pub.Setup()
	}
	for _, pub := range s.tsPubs {
		pub.Setup()
	}
	for _, algo := range s.algos {
		algo.Setup()
	}
}

// DataPublisher returns the market-data publisher for an instrument, if
// registered. Extra observers (recorders, taps) subscribe through it.
func (s *Session) DataPublisher(exch uint8, symbol uint16) *QsPublisher {
	return s.qsPubs[Instrument{Exch: exch, Symbol: symbol}]
}

// Exchange returns the matching exchange for an instrument, if registered.
// Extra trade-stream observers subscribe through it.
func (s *Session) Exchange(exch uint8, symbol uint16) *NoImpactExchange {
	return s.tsPubs[Instrument{Exch: exch, Symbol: symbol}]
}

// Run drains the task queue.
func (s *Session) Run() { s.queue.RunUntilDone() }

// Queue exposes the shared task queue.
func (s *Session) Queue() *TaskQueue { return s.queue }
