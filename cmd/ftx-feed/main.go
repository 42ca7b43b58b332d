// ftx-feed taps the live websocket feed and prints top-of-book.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"

	"github.com/alienczf/cryptobase/pkg/config"
	"github.com/alienczf/cryptobase/pkg/ftx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	level, err := log.ToLevel(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad log level:", err)
		os.Exit(2)
	}
	logger := log.NewTestLogger(level).New("module", "ftx-feed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := ftx.NewHandler(logger)
	client, err := ftx.Dial(ctx, cfg.Feed.URL, handler, logger)
	if err != nil {
		logger.Error("dial failed", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	for _, market := range cfg.Feed.Markets {
		for _, channel := range []string{"orderbook", "trades"} {
			if err := client.Subscribe(channel, market); err != nil {
				logger.Error("subscribe failed", "market", market, "channel", channel, "err", err)
				os.Exit(1)
			}
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- client.Run(ctx) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, market := range cfg.Feed.Markets {
				top, ok := handler.TopOfBook(market)
				if !ok {
					continue
				}
				fmt.Printf("%s bid %f@%f ask %f@%f last %f\n",
					market, top.Bid.Qty, top.Bid.Prc, top.Ask.Qty, top.Ask.Prc, top.LastTradePrc)
			}
		case err := <-errc:
			if ctx.Err() != nil {
				return
			}
			logger.Error("feed stopped", "err", err)
			os.Exit(1)
		case <-ctx.Done():
			return
		}
	}
}
