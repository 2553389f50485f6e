package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/dispatch"
	"github.com/safedep/gatekeeper/metrics"
)

const (
	defaultRequestTimeout   = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultEventBuffer      = 64
	writeWait               = 5 * time.Second
)

// ErrRequestTimeout is returned when the bridge does not acknowledge a
// request in time. The action may or may not have happened.
var ErrRequestTimeout = errors.New("gateway request timed out")

var errClientClosed = errors.New("connection closed by client")

// Config configures the bridge connection.
type Config struct {
	URL              string
	Token            string
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	EventBuffer      int
	Metrics          *metrics.Metrics
}

// Client is a connection to a platform bridge. It implements
// dispatch.Platform.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
	metrics *metrics.Metrics

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan AckPayload

	events    chan *member.JoinEvent
	closed    chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects and identifies to the bridge.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("gateway url is not configured")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bot "+cfg.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to gateway (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	c := &Client{
		conn:    conn,
		timeout: cfg.RequestTimeout,
		metrics: cfg.Metrics,
		pending: make(map[string]chan AckPayload),
		events:  make(chan *member.JoinEvent, cfg.EventBuffer),
		closed:  make(chan struct{}),
	}

	go c.readLoop()

	if err := c.request(ctx, OpIdentify, IdentifyPayload{Token: cfg.Token}); err != nil {
		c.Close()
		return nil, fmt.Errorf("gateway identify failed: %w", err)
	}

	log.Infof("connected to gateway %s", cfg.URL)
	return c, nil
}

// Events returns the stream of join events. It is closed when the
// connection ends.
func (c *Client) Events() <-chan *member.JoinEvent {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	select {
	case <-c.closed:
		return c.err
	default:
		return nil
	}
}

// Kick implements dispatch.Platform.
func (c *Client) Kick(ctx context.Context, guildID, memberID, reason string) error {
	return c.request(ctx, OpKick, KickPayload{GuildID: guildID, MemberID: memberID, Reason: reason})
}

// Post implements dispatch.Platform.
func (c *Client) Post(ctx context.Context, channelID, text string) error {
	return c.request(ctx, OpPost, PostPayload{ChannelID: channelID, Text: text})
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	c.shutdown(errClientClosed)
	return nil
}

func (c *Client) request(ctx context.Context, op string, payload any) error {
	select {
	case <-c.closed:
		return c.unavailable()
	default:
	}

	id := uuid.NewString()
	frame, err := NewFrame(op, id, payload)
	if err != nil {
		return err
	}

	ack := make(chan AckPayload, 1)
	c.mu.Lock()
	c.pending[id] = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		c.shutdown(err)
		return c.unavailable()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case a := <-ack:
		if !a.OK {
			return &ActionError{Op: op, Message: a.Error}
		}
		return nil
	case <-c.closed:
		return c.unavailable()
	case <-timer.C:
		return fmt.Errorf("%s %s: %w", op, id, ErrRequestTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(frame *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.shutdown(err)
			return
		}

		c.metrics.IncrementGatewayFrame(frame.Op)

		switch frame.Op {
		case OpMemberJoin:
			var event member.JoinEvent
			if err := json.Unmarshal(frame.D, &event); err != nil {
				log.Warnf("gateway sent an undecodable member_join frame: %v", err)
				continue
			}

			select {
			case c.events <- &event:
			case <-c.closed:
				return
			}
		case OpAck:
			var ack AckPayload
			if err := json.Unmarshal(frame.D, &ack); err != nil {
				log.Warnf("gateway sent an undecodable ack for %s: %v", frame.ID, err)
				ack = AckPayload{Error: "undecodable ack"}
			}
			c.resolve(frame.ID, ack)
		default:
			log.Debugf("ignoring gateway frame %q", frame.Op)
		}
	}
}

func (c *Client) resolve(id string, ack AckPayload) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()

	if !ok {
		log.Debugf("ack for unknown request %s", id)
		return
	}

	select {
	case ch <- ack:
	default:
		log.Debugf("duplicate ack for request %s", id)
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.closed)
		_ = c.conn.Close()
		if err != nil && !errors.Is(err, errClientClosed) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			log.Warnf("gateway connection lost: %v", err)
		}
	})
}

func (c *Client) unavailable() error {
	<-c.closed
	if c.err != nil && !errors.Is(c.err, errClientClosed) {
		return fmt.Errorf("%w: %v", dispatch.ErrPlatformUnavailable, c.err)
	}
	return dispatch.ErrPlatformUnavailable
}

var _ dispatch.Platform = (*Client)(nil)
