package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
)

const (
	DefaultWSURL = "wss://ws.okx.com:8443/ws/v5/business"
	pingEvery    = 20 * time.Second
)

// BarHandler получает каждую закрытую свечу из стрима.
type BarHandler func(symbol string, bar models.Bar)

// Stream: один WebSocket на таймфрейм с пачкой инструментов в args.
type Stream struct {
	url     string
	channel string
	dialer  *websocket.Dialer
	onBar   BarHandler
	log     *zap.Logger

	mu      sync.Mutex
	symbols map[string]struct{}
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewStream(url, timeframe string, onBar BarHandler, log *zap.Logger) (*Stream, error) {
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = DefaultWSURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{
		url:     url,
		channel: "candle" + bar, // "1m" -> "candle1m"
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onBar:   onBar,
		log:     log.Named("ws"),
		symbols: make(map[string]struct{}),
	}, nil
}

// Subscribe adds symbols to the stream. On a live connection the subscription
// is sent right away, otherwise on the next connect.
func (s *Stream) Subscribe(symbols ...string) error {
	s.mu.Lock()
	var fresh []string
	for _, sym := range symbols {
		if _, ok := s.symbols[sym]; ok {
			continue
		}
		s.symbols[sym] = struct{}{}
		fresh = append(fresh, sym)
	}
	conn := s.conn
	s.mu.Unlock()

	if len(fresh) == 0 || conn == nil {
		return nil
	}
	return s.subscribe(conn, fresh)
}

func (s *Stream) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

type subArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subRequest struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

func (s *Stream) subscribe(conn *websocket.Conn, symbols []string) error {
	req := subRequest{Op: "subscribe", Args: make([]subArg, 0, len(symbols))}
	for _, sym := range symbols {
		req.Args = append(req.Args, subArg{Channel: s.channel, InstID: sym})
	}
	payload, err := sonic.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal subscribe")
	}
	return s.write(conn, payload)
}

func (s *Stream) write(conn *websocket.Conn, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return errors.Wrap(conn.WriteMessage(websocket.TextMessage, payload), "ws write")
}

// Run держит соединение до отмены ctx, переподключаясь с бэкоффом.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("stream session ended", zap.String("channel", s.channel), zap.Error(err), zap.Duration("retry_in", backoff))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "ws dial")
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	syms := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		syms = append(syms, sym)
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if len(syms) > 0 {
		sort.Strings(syms)
		if err := s.subscribe(conn, syms); err != nil {
			return err
		}
	}
	s.log.Info("stream connected", zap.String("channel", s.channel), zap.Int("symbols", len(syms)))

	// без ping раз в 20s OKX рвёт соединение
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				if err := s.write(conn, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "ws read")
		}
		s.handle(msg)
	}
}

type candleFrame struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Event string     `json:"event"`
	Msg   string     `json:"msg"`
	Data  [][]string `json:"data"`
}

func (s *Stream) handle(msg []byte) {
	if string(msg) == "pong" {
		return
	}
	var frame candleFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return
	}
	if frame.Event == "error" {
		s.log.Error("stream error event", zap.String("msg", frame.Msg))
		return
	}
	if frame.Arg.Channel != s.channel || len(frame.Data) == 0 {
		return
	}
	// в одном кадре может прийти несколько свечей
	for _, row := range frame.Data {
		bar, confirmed, ok := parseRow(row)
		if !ok || !confirmed {
			continue
		}
		if s.onBar != nil {
			s.onBar(frame.Arg.InstID, bar)
		}
	}
}
