// Package grpcstream is a Binary-Stream Ingress channel backed by a
// long-lived gRPC server stream. It owns connection lifecycle, keepalive,
// and reconnect policy only; the provider-specific subscribe RPC and wire
// decoding live behind the Subscriber interface so this package never needs
// that provider's generated stubs.
package grpcstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
)

// keepaliveInterval matches the 10 s user-supplied ping cadence; a server
// ping is answered with a pong automatically by the grpc-go transport.
const keepaliveInterval = 10 * time.Second

// EnvelopeStream is a single subscribed transaction stream. Recv blocks
// until the next envelope or a terminal error (including io.EOF on a clean
// server-side stream close).
type EnvelopeStream interface {
	Recv() (*ingress.Candidate, error)
	CloseSend() error
}

// Subscriber opens the provider-specific subscribe RPC over an established
// connection. Implementations wrap generated protobuf client stubs; this
// package only ever calls Subscribe, never touches the stub directly.
type Subscriber interface {
	Subscribe(ctx context.Context, conn *grpc.ClientConn) (EnvelopeStream, error)
}

// ResetStreamError is implemented by stream errors that report whether they
// are a reset-stream condition, which gets the fast 0.5 s reconnect path
// instead of exponential backoff.
// Providers surface this differently; implementations of Subscriber are
// expected to normalize to a sentinel the caller recognizes, so this is
// intentionally permissive.
type ResetStreamError interface {
	IsResetStream() bool
}

// Client is one instance of the Binary-Stream Ingress. The pipeline runs
// two of these concurrently against independent providers; the Supervisor
// is responsible for deduplicating across them.
type Client struct {
	name       string
	target     string
	subscriber Subscriber

	mu            sync.Mutex
	conn          *grpc.ClientConn
	connected     bool
	lastMessageAt time.Time
	reconnects    int32
	dropped       int32

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Client that dials target lazily on Start.
func New(name, target string, subscriber Subscriber) *Client {
	return &Client{name: name, target: target, subscriber: subscriber}
}

// Start dials the provider and begins the receive loop in a background
// goroutine, forwarding every envelope onto sink. Start returns once the
// goroutine has been launched; it does not wait for the first connection.
func (c *Client) Start(ctx context.Context, sink chan<- *ingress.Candidate) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, sink)
	return nil
}

// Stop cancels the receive loop and waits for it to exit.
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

// Health reports the channel's current connection state.
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

		stream, conn, err := c.dialAndSubscribe(ctx)
		if err != nil {
			log.Warnf("grpcstream[%s]: dial/subscribe failed: %v", c.name, err)
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

		streamErr := c.receiveLoop(ctx, stream, sink)
		stream.CloseSend()

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		atomic.AddInt32(&c.reconnects, 1)

		if ctx.Err() != nil {
			return
		}

		delay := ingress.NextBackoff(attempt)
		if rse, ok := streamErr.(ResetStreamError); ok && rse.IsResetStream() {
			delay = ingress.FastReconnectDelay
			attempt = 0
		} else {
			attempt++
		}
		log.Debugf("grpcstream[%s]: stream ended (%v), reconnecting in %s", c.name, streamErr, delay)
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

func (c *Client) dialAndSubscribe(ctx context.Context) (EnvelopeStream, *grpc.ClientConn, error) {
	conn, err := grpc.DialContext(ctx, c.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                keepaliveInterval,
			Timeout:             keepaliveInterval,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	stream, err := c.subscriber.Subscribe(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return stream, conn, nil
}

func (c *Client) receiveLoop(ctx context.Context, stream EnvelopeStream, sink chan<- *ingress.Candidate) error {
	for {
		candidate, err := stream.Recv()
		if err != nil {
			return err
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
			log.Warnf("grpcstream[%s]: classifier sink full, dropping candidate", c.name)
		}
	}
}

// sleep waits for d or ctx cancellation, reporting false if the context was
// cancelled first.
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
