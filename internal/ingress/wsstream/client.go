// Package wsstream is the second Binary-Stream Ingress instance: the same
// long-lived-subscription behavior as grpcstream, against an independent
// provider reachable over a WebSocket rather than gRPC. The Supervisor
// treats both instances identically and deduplicates across them.
package wsstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
)

const (
	keepaliveInterval = 10 * time.Second
	pongWait          = keepaliveInterval + 5*time.Second
)

// Decoder turns a single WebSocket text/binary message into a Candidate.
// Providers differ wildly in their subscription message shape, so parsing
// is injected rather than assumed.
type Decoder interface {
	Decode(message []byte) (*ingress.Candidate, error)
	// IsResetStream reports whether err (as returned from Decode, or an
	// underlying read error) should trigger the fast reconnect path rather
	// than exponential backoff.
	IsResetStream(err error) bool
	// SubscribeMessage returns the payload to send immediately after
	// connecting, subscribing to program-ID-filtered transaction activity.
	SubscribeMessage() []byte
}

// Client is one WebSocket-backed Binary-Stream Ingress instance.
type Client struct {
	name    string
	url     string
	decoder Decoder

	mu            sync.Mutex
	conn          *websocket.Conn
	connected     bool
	lastMessageAt time.Time
	reconnects    int32
	dropped       int32

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Client that dials url lazily on Start.
func New(name, url string, decoder Decoder) *Client {
	return &Client{name: name, url: url, decoder: decoder}
}

func (c *Client) Start(ctx context.Context, sink chan<- *ingress.Candidate) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, sink)
	return nil
}

func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) Health() ingress.ChannelHealthRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ingress.ChannelHealthRecord{
		Name:          c.name,
		Connected:     c.connected,
		LastMessageAt: c.lastMessageAt,
		Reconnects:    int(atomic.LoadInt32(&c.reconnects)),
	}
}

func (c *Client) run(ctx context.Context, sink chan<- *ingress.Candidate) {
	defer close(c.done)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Warnf("wsstream[%s]: dial failed: %v", c.name, err)
			if !c.sleep(ctx, ingress.NextBackoff(attempt)) {
				return
			}
			attempt++
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, c.decoder.SubscribeMessage()); err != nil {
			log.Warnf("wsstream[%s]: subscribe write failed: %v", c.name, err)
			conn.Close()
			if !c.sleep(ctx, ingress.NextBackoff(attempt)) {
				return
			}
			attempt++
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		attempt = 0

		streamErr := c.receiveLoop(ctx, conn, sink)
		conn.Close()

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		atomic.AddInt32(&c.reconnects, 1)

		if ctx.Err() != nil {
			return
		}

		delay := ingress.NextBackoff(attempt)
		if c.decoder.IsResetStream(streamErr) {
			delay = ingress.FastReconnectDelay
			attempt = 0
		} else {
			attempt++
		}
		log.Debugf("wsstream[%s]: connection ended (%v), reconnecting in %s", c.name, streamErr, delay)
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn, sink chan<- *ingress.Candidate) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(keepaliveInterval)
	defer pingTicker.Stop()

	msgCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return err
			}
		case msg := <-msgCh:
			candidate, err := c.decoder.Decode(msg)
			if err != nil {
				log.Debugf("wsstream[%s]: dropping unparsable message: %v", c.name, err)
				continue
			}
			candidate.ChannelName = c.name
			candidate.ReceivedAt = time.Now()

			c.mu.Lock()
			c.lastMessageAt = candidate.ReceivedAt
			c.mu.Unlock()

			select {
			case sink <- candidate:
			case <-ctx.Done():
				return ctx.Err()
			default:
				atomic.AddInt32(&c.dropped, 1)
				log.Warnf("wsstream[%s]: classifier sink full, dropping candidate", c.name)
			}
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
