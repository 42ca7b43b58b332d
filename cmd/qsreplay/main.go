// qsreplay runs capture files through the book engine and the no-impact
// matching session, emitting CSV diagnostics, candles and metrics.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/book"
	"github.com/alienczf/cryptobase/pkg/config"
	"github.com/alienczf/cryptobase/pkg/marketdata"
	"github.com/alienczf/cryptobase/pkg/metrics"
	"github.com/alienczf/cryptobase/pkg/qsbin"
	"github.com/alienczf/cryptobase/pkg/sim"
)

// candleTap feeds replayed trades into the candle recorder and counts
// packets for metrics. It rides the market-data stream as one more
// subscriber.
type candleTap struct {
	symbol   string
	recorder *marketdata.Recorder
	metrics  *metrics.ReplayMetrics
}

func (t *candleTap) OnPacket(pkt *qsbin.Packet) {
	for _, trd := range pkt.Trades {
		t.recorder.OnTrade(t.symbol, pkt.ExchTime, trd.Prc, trd.Qty)
		t.metrics.RecordTrade()
	}
}

// executionTap counts fills and order updates as the exchange publishes them.
type executionTap struct {
	metrics *metrics.ReplayMetrics
}

func (t *executionTap) OnFill(sim.Fill)                      { t.metrics.RecordFill() }
func (t *executionTap) OnOrder(sim.Order)                    { t.metrics.RecordOrderUpdate() }
func (t *executionTap) OnAddRej(sim.Order, sim.RejectReason) {}
func (t *executionTap) OnCxlRej(sim.Order, sim.RejectReason) {}

func main() {
	files := flag.String("files", "", "comma-separated capture files (overrides env)")
	diagPath := flag.String("diag", "", "diagnostics CSV path (overrides env)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *files != "" {
		cfg.Replay.Files = strings.Split(*files, ",")
	}
	if *diagPath != "" {
		cfg.App.DiagPath = *diagPath
	}
	if len(cfg.Replay.Files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: qsreplay -files a.bin,b.bin.gz (or REPLAY_FILES env)")
		os.Exit(2)
	}

	level, err := log.ToLevel(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad log level:", err)
		os.Exit(2)
	}
	logger := log.NewTestLogger(level).New("module", "qsreplay")

	m := metrics.NewReplayMetrics("qsreplay")
	if cfg.App.MetricsAddr != "" {
		m.StartServer(cfg.App.MetricsAddr)
	}

	diag, err := book.NewDiagWriter(cfg.App.DiagPath)
	if err != nil {
		logger.Error("diag writer failed", "err", err)
		os.Exit(1)
	}
	defer diag.Close()

	pkts, err := qsbin.LoadBinFiles(cfg.Replay.Files, logger)
	if err != nil {
		logger.Error("load failed", "err", err)
		os.Exit(1)
	}
	m.RecordPackets(len(pkts))

	session := sim.NewSession(logger)
	session.AddExchange(cfg.Replay.Exch, cfg.Replay.Symbol, pkts)
	session.AddDataPublisher(cfg.Replay.Exch, cfg.Replay.Symbol, pkts)

	algo := session.AddAlgo(cfg.Replay.Exch, cfg.Replay.Symbol, cfg.Replay.Latency, nil, diag)
	if algo == nil {
		logger.Error("no instrument registered")
		os.Exit(1)
	}

	recorder := marketdata.NewRecorder(logger, memdb.New(), nil)
	symbol := fmt.Sprintf("%d-%d", cfg.Replay.Exch, cfg.Replay.Symbol)
	session.DataPublisher(cfg.Replay.Exch, cfg.Replay.Symbol).Subscribe(0, &candleTap{
		symbol:   symbol,
		recorder: recorder,
		metrics:  m,
	})
	session.Exchange(cfg.Replay.Exch, cfg.Replay.Symbol).Subscribe(0, &executionTap{metrics: m})

	session.Setup()
	session.Run()
	recorder.Flush()

	trades, candles := recorder.Stats()
	m.RecordCandles(candles)
	m.RecordTasks(session.Queue().Executed())
	m.UpdateBookDepth(symbol, "bid", float64(algo.Book().Bids.Len()))
	m.UpdateBookDepth(symbol, "ask", float64(algo.Book().Asks.Len()))
	if bid, ok := algo.Book().BestBid(); ok {
		logger.Info("final top of book", "bid_prc", bid.Prc, "bid_qty", bid.Qty)
	}
	logger.Info("replay done",
		"packets", len(pkts), "trades", trades, "candles", candles,
		"fills", len(algo.Fills), "updates", len(algo.Updates))
}
