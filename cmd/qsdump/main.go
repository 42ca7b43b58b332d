// qsdump decodes capture files and prints every record.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: qsdump [-log-level level] file...")
		os.Exit(2)
	}

	level, err := log.ToLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad log level:", err)
		os.Exit(2)
	}
	logger := log.NewTestLogger(level).New("module", "qsdump")

	for _, path := range flag.Args() {
		pkts, err := qsbin.LoadBin(path, logger)
		if err != nil {
			logger.Error("load failed", "file", path, "err", err)
			os.Exit(1)
		}
		for i := range pkts {
			dump(&pkts[i])
		}
	}
}

func dump(pkt *qsbin.Packet) {
	fmt.Printf("%d %s exch=%d sym=%d seq=%d md_id=%d exch_time=%d snapshot=%t inferred=%t filtered=%t",
		pkt.QsSendTime, pkt.Kind, pkt.Exch, pkt.Symbol, pkt.SeqNum, pkt.MdID,
		pkt.ExchTime, pkt.Snapshot, pkt.Inferred, pkt.Filtered)
	for _, lvl := range pkt.Levels {
		fmt.Printf(" L[%s %f@%f#%d]", lvl.Side, lvl.Qty, lvl.Prc, lvl.Cnt)
	}
	for _, trd := range pkt.Trades {
		fmt.Printf(" T[%s %f@%f]", trd.Side, trd.Qty, trd.Prc)
	}
	if pkt.Funding != nil {
		fmt.Printf(" F[rate=%f next=%f mark=%f index=%f]",
			pkt.Funding.CurrentRate, pkt.Funding.NextRate,
			pkt.Funding.MarkPrice, pkt.Funding.IndexPrice)
	}
	fmt.Println()
}
