package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/bus"
	"main/internal/schema"
)

const _binanceBaseWsUrl = "wss://stream.binance.com:9443/ws"

// BinanceFeed streams public trades into the event queue for live runs.
type BinanceFeed struct {
	wss   *ws.WebSocket
	queue *bus.Queue
}

// NewBinanceFeed creates a feed publishing into the given queue.
func NewBinanceFeed(ctx context.Context, queue *bus.Queue) *BinanceFeed {
	return &BinanceFeed{
		wss:   ws.New(ctx, _binanceBaseWsUrl),
		queue: queue,
	}
}

func (f *BinanceFeed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

func (f *BinanceFeed) Close() {
	f.wss.Close()
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// SubscribeTrades subscribes the raw trade stream for one symbol.
func (f *BinanceFeed) SubscribeTrades(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@trade", strings.ToLower(strings.ReplaceAll(symbol, "-", ""))),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// ObserveTrades pumps parsed trades into the queue until the context ends.
// Queue-full drops are counted by the queue, not logged per event.
func (f *BinanceFeed) ObserveTrades(ctx context.Context, symbol string) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				trade, ok := ws.ReadMessage[binanceTrade](m)
				if !ok || trade.EventType != "trade" {
					continue
				}

				tick, err := parseTrade(trade, symbol)
				if err != nil {
					logs.Errorf("parse trade: %+v", err)
					continue
				}

				if err := f.queue.TryPublish(schema.TickEvent(tick)); err == bus.ErrQueueClosed {
					return
				}
			}
		}
	}()

	return cancel
}

func parseTrade(trade binanceTrade, symbol string) (schema.Tick, error) {
	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return schema.Tick{}, errors.Wrap(err, "parse price").With("raw", trade.Price)
	}
	size, err := decimal.NewFromString(trade.Quantity)
	if err != nil {
		return schema.Tick{}, errors.Wrap(err, "parse quantity").With("raw", trade.Quantity)
	}

	side := schema.SideBuy
	if trade.BuyerIsMaker {
		side = schema.SideSell
	}

	return schema.Tick{
		Symbol:     symbol,
		Price:      price,
		Size:       size,
		Side:       side,
		ExchangeTS: time.UnixMilli(trade.TradeTime).UTC(),
		ReceivedAt: time.Now().UTC(),
	}, nil
}
