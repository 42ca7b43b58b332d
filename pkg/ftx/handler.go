package ftx

import (
	"fmt"
	"strings"
	"sync"

	"github.com/luxfi/log"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"

	"github.com/alienczf/cryptobase/pkg/book"
)

// envelope is the outer frame shared by every feed message.
type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Market  string          `json:"market"`
	Data    json.RawMessage `json:"data"`
}

type l2Data struct {
	Time float64      `json:"time"`
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

type tradeData struct {
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Side        string  `json:"side"`
	Liquidation bool    `json:"liquidation"`
	Time        string  `json:"time"`
}

type orderData struct {
	ID            uint64  `json:"id"`
	Market        string  `json:"market"`
	Type          string  `json:"type"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	Status        string  `json:"status"`
	FilledSize    float64 `json:"filledSize"`
	RemainingSize float64 `json:"remainingSize"`
	ReduceOnly    bool    `json:"reduceOnly"`
	PostOnly      bool    `json:"postOnly"`
	IOC           bool    `json:"ioc"`
}

type fillData struct {
	Market string          `json:"market"`
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
}

// Handler dispatches feed frames into per-market trackers and keeps balance
// accounting from our fills. Balances use exact decimal arithmetic keyed by
// currency.
//
// OnMessage runs on the client's read goroutine; the mutex lets other
// goroutines observe state through TopOfBook while the feed is live.
type Handler struct {
	logger log.Logger

	mu       sync.RWMutex
	books    map[string]*L2Tracker
	Balances map[string]decimal.Decimal
}

// NewHandler returns an empty handler.
func NewHandler(logger log.Logger) *Handler {
	return &Handler{
		logger:   logger,
		books:    make(map[string]*L2Tracker),
		Balances: make(map[string]decimal.Decimal),
	}
}

// Reset drops all books and balances.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.books = make(map[string]*L2Tracker)
	h.Balances = make(map[string]decimal.Decimal)
}

// Book returns the tracker for a market, creating it on first use. The
// tracker itself is not synchronized: callers that share the handler with a
// running client must read through TopOfBook instead.
func (h *Handler) Book(market string) *L2Tracker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.book(market)
}

func (h *Handler) book(market string) *L2Tracker {
	t, ok := h.books[market]
	if !ok {
		t = NewL2Tracker()
		h.books[market] = t
	}
	return t
}

// TopOfBook is a point-in-time view of a market's best levels.
type TopOfBook struct {
	Bid, Ask     book.PriceQty
	LastTradePrc float64
}

// TopOfBook snapshots a market's best bid, best ask and last trade price
// under the handler lock. It reports false until both sides have depth.
func (h *Handler) TopOfBook(market string) (TopOfBook, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.books[market]
	if !ok {
		return TopOfBook{}, false
	}
	bid, okBid := t.BestBid()
	ask, okAsk := t.BestAsk()
	if !okBid || !okAsk {
		return TopOfBook{}, false
	}
	return TopOfBook{Bid: bid, Ask: ask, LastTradePrc: t.LastTradePrc}, true
}

// OnMessage dispatches one raw frame. It reports whether the frame carried
// feed data; subscription acks and pongs return false with no error.
func (h *Handler) OnMessage(msg []byte) (bool, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return false, fmt.Errorf("decode frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch env.Type {
	case "update":
		switch env.Channel {
		case "orderbook":
			var d l2Data
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return false, fmt.Errorf("decode orderbook: %w", err)
			}
			h.book(env.Market).OnL2(&d)
		case "trades":
			var d []tradeData
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return false, fmt.Errorf("decode trades: %w", err)
			}
			h.book(env.Market).OnTrades(d)
		case "orders":
			var d orderData
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return false, fmt.Errorf("decode order: %w", err)
			}
			h.book(d.Market).OnOrder(&d)
		case "fills":
			var d fillData
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return false, fmt.Errorf("decode fill: %w", err)
			}
			h.onFill(&d)
		default:
			return false, nil
		}
		return true, nil
	case "partial": // orderbook snapshot
		var d l2Data
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return false, fmt.Errorf("decode orderbook snapshot: %w", err)
		}
		h.book(env.Market).OnL2(&d)
		return true, nil
	}
	return false, nil
}

// onFill books a fill into the balance map: base currency moves by the
// signed size, quote currency by the signed notional. Markets without a
// quote leg (futures) settle in USD.
func (h *Handler) onFill(fill *fillData) {
	h.logger.Info("got fill",
		"market", fill.Market, "side", fill.Side,
		"prc", fill.Price.String(), "qty", fill.Size.String())

	qty := fill.Size
	if fill.Side != "buy" {
		qty = qty.Neg()
	}
	base, quote, ok := strings.Cut(fill.Market, "/")
	if !ok {
		quote = "USD"
	}
	h.Balances[base] = h.Balances[base].Add(qty)
	h.Balances[quote] = h.Balances[quote].Sub(qty.Mul(fill.Price))
}
