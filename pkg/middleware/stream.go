package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/strategy"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	streamComponentName = "middleware.stream"
	streamBufferSize    = 1024
	streamWriteTimeout  = 5 * time.Second
)

type MessageType string

const (
	MessageTypeOrder  MessageType = "order"
	MessageTypeTrade  MessageType = "trade"
	MessageTypeEquity MessageType = "equity"
)

type Message struct {
	Type MessageType `json:"type"`
	Time time.Time   `json:"ts"`
	Data any         `json:"data"`
}

type OrderMessage struct {
	OrderId    uint64      `json:"order_id"`
	Event      string      `json:"event"`
	Symbol     string      `json:"symbol"`
	Action     string      `json:"action"`
	OrderType  string      `json:"order_type"`
	Quantity   fixed.Point `json:"quantity"`
	Price      fixed.Point `json:"price"`
	Filled     fixed.Point `json:"filled"`
	Commission fixed.Point `json:"commission"`
	Reason     string      `json:"reason,omitempty"`
}

type EquityMessage struct {
	Cash   fixed.Point `json:"cash"`
	Equity fixed.Point `json:"equity"`
}

// Stream broadcasts run events as JSON text frames to websocket clients.
// Publishing never blocks the caller; messages are dropped while the buffer is full.
type Stream struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	dropped uint64

	broadcast chan []byte
}

func NewStream(logger *zap.Logger) *Stream {
	return &Stream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, streamBufferSize),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("component", streamComponentName),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("client connected",
		zap.String("component", streamComponentName),
		zap.String("remote_addr", conn.RemoteAddr().String()))

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.remove(conn)
				return
			}
		}
	}()
}

// Run writes published messages to every client until ctx is canceled.
func (s *Stream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case msg := <-s.broadcast:
			s.write(msg)
		}
	}
}

func (s *Stream) Publish(typ MessageType, t time.Time, data any) {
	msg, err := json.Marshal(Message{Type: typ, Time: t, Data: data})
	if err != nil {
		s.logger.Warn("unable to encode message",
			zap.String("component", streamComponentName),
			zap.String("type", string(typ)),
			zap.Error(err))
		return
	}

	select {
	case s.broadcast <- msg:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

func (s *Stream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Stream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Attach publishes order events, closed trades and equity after every step of st.
func (s *Stream) Attach(st *strategy.Strategy) {
	st.Exchange().OrderEvent.Subscribe(func(_ context.Context, event exchange.OrderEvent) {
		s.Publish(MessageTypeOrder, event.Time, newOrderMessage(event))
	})
	st.PositionClosedEvent.Subscribe(func(_ context.Context, p *strategy.Position) {
		if trade, ok := p.Trade(); ok {
			s.Publish(MessageTypeTrade, trade.ExitTime, trade)
		}
	})
	st.BarsProcessedEvent.Subscribe(func(_ context.Context, bars feed.Values[common.Bar]) {
		s.Publish(MessageTypeEquity, bars.Time, EquityMessage{
			Cash:   st.Exchange().Cash(),
			Equity: st.Exchange().Equity(),
		})
	})
}

func newOrderMessage(event exchange.OrderEvent) OrderMessage {
	order := event.Order
	msg := OrderMessage{
		OrderId:   uint64(event.OrderId),
		Event:     event.Type.String(),
		Symbol:    order.Symbol(),
		Action:    order.Action().String(),
		OrderType: order.Type().String(),
		Quantity:  order.Quantity(),
		Filled:    order.Filled(),
	}
	if event.Info != nil {
		msg.Price = event.Info.Price
		msg.Commission = event.Info.Commission
		if event.Info.Err != nil {
			msg.Reason = event.Info.Err.Error()
		}
	}
	return msg
}

func (s *Stream) write(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Stream) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[conn]; ok {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Stream) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(s.clients, conn)
	}
}
