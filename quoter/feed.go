package quoter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	baseDelay = time.Second
	maxDelay  = 30 * time.Second
)

//Ticker is the venue's best bid and ask for a symbol as decimal strings.
type Ticker struct {
	Symbol string
	Bid    string
	Ask    string
	Time   time.Time
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type tickerResponse struct {
	Action string       `json:"action"`
	Arg    subscribeArg `json:"arg"`
	Data   []tickerData `json:"data"`
	Ts     int64        `json:"ts"`
}

type tickerData struct {
	InstID string `json:"instId"`
	BidPr  string `json:"bidPr"`
	AskPr  string `json:"askPr"`
	Ts     string `json:"ts"`
}

func backoff(retry int) time.Duration {
	if retry < 0 {
		return baseDelay
	}
	if retry > 30 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(1<<retry)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

//Feed streams spot tickers for a set of symbols over the venue websocket and reconnects
//with exponential backoff until its context is done.
type Feed struct {
	url     string
	symbols []string
	out     chan<- Ticker

	writeMu sync.Mutex

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func NewFeed(url string, symbols []string, out chan<- Ticker) *Feed {
	return &Feed{
		url:          url,
		symbols:      symbols,
		out:          out,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

func (f *Feed) Run(ctx context.Context) {
	retry := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := f.connect(ctx)
		if err != nil {
			delay := backoff(retry)
			retry++
			log.Warn().Err(err).Str("url", f.url).Int("retry", retry).Dur("delay", delay).Msg("venue websocket connection failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		f.process(ctx, conn)
	}
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, make(http.Header))
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	args := make([]subscribeArg, 0, len(f.symbols))
	for _, symbol := range f.symbols {
		args = append(args, subscribeArg{InstType: "SPOT", Channel: "ticker", InstID: symbol})
	}
	request, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "marshal subscribe request")
	}
	if err := f.write(conn, request); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "subscribe")
	}

	log.Info().Str("url", f.url).Strs("symbols", f.symbols).Msg("venue websocket connected")
	return conn, nil
}

//process reads conn until it fails. Its goroutines only touch conn, never a connection
//opened by a later reconnect.
func (f *Feed) process(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if f.PingInterval > 0 {
		go f.pingLoop(connCtx, conn)
	}
	//unblock ReadMessage on shutdown
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("url", f.url).Msg("venue websocket read failed")
			}
			return
		}
		f.onMessage(ctx, msg)
	}
}

func (f *Feed) onMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}
	var resp tickerResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}
	if resp.Arg.Channel != "ticker" || len(resp.Data) == 0 {
		return
	}

	for _, data := range resp.Data {
		if data.BidPr == "" || data.AskPr == "" {
			continue
		}
		ticker := Ticker{Symbol: data.InstID, Bid: data.BidPr, Ask: data.AskPr, Time: time.UnixMilli(resp.Ts)}
		select {
		case f.out <- ticker:
		case <-ctx.Done():
			return
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(f.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.write(conn, []byte("ping")); err != nil {
				log.Warn().Err(err).Msg("venue websocket ping failed")
				conn.Close()
				return
			}
		}
	}
}

func (f *Feed) write(conn *websocket.Conn, data []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
