package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Inbound is a message read from the client; Payload is decoded by the handler.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InboundHandler answers one client message. A nil reply sends nothing back.
type InboundHandler func(ctx context.Context, msg Inbound) *Message

// ErrorPayload is the body of an "error" message.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorMessage builds the error envelope for err.
func ErrorMessage(err error) *Message {
	return &Message{Type: "error", Payload: ErrorPayload{Kind: domain.KindOf(err), Message: err.Error()}}
}

// ClientOptions tunes the inbound rate limit. Zero values keep the defaults.
type ClientOptions struct {
	RatePerSecond float64
	Burst         int
	Logger        logrus.FieldLogger
}

// Client pumps hub events out to one websocket and feeds the client's messages to a
// handler. Only the write pump writes to the connection.
type Client struct {
	conn    *websocket.Conn
	sub     *Subscription
	handle  InboundHandler
	limiter *rate.Limiter
	replies chan Message
	done    chan struct{}
	log     logrus.FieldLogger
}

func NewClient(conn *websocket.Conn, sub *Subscription, handle InboundHandler, opts ClientOptions) *Client {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Client{
		conn:    conn,
		sub:     sub,
		handle:  handle,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		replies: make(chan Message, 8),
		done:    make(chan struct{}),
		log:     opts.Logger,
	}
}

// Run serves the connection until either side goes away, then closes it and the
// subscription.
func (c *Client) Run(ctx context.Context) {
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)
	close(c.done)
	<-writerDone
	c.sub.Close()
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("websocket closed unexpectedly")
			}
			if isDecodeError(err) {
				c.reply(*ErrorMessage(domain.Validationf("malformed message")))
				continue
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(Message{Type: "error", Payload: ErrorPayload{Kind: "rate_limited", Message: "too many messages"}})
			continue
		}
		if out := c.handle(ctx, in); out != nil {
			c.reply(*out)
		}
	}
}

func (c *Client) reply(msg Message) {
	select {
	case c.replies <- msg:
	case <-c.done:
	default:
		c.log.WithField("type", msg.Type).Debug("reply dropped, client is not reading")
	}
}

// writePump owns the connection's write side and closes the connection on exit so a
// blocked read returns.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.sub.C:
			if !ok {
				c.closeWith(websocket.CloseGoingAway, "game closed")
				return
			}
			if err := c.write(Message{Type: string(ev.Type), Payload: ev}); err != nil {
				return
			}
		case msg := <-c.replies:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *Client) write(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("ws write error")
		return err
	}
	return nil
}

func (c *Client) closeWith(code int, text string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
