package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/models"
)

const (
	EVENT_JOIN      = "phx_join"
	EVENT_LEAVE     = "phx_leave"
	EVENT_REPLY     = "phx_reply"
	EVENT_ERROR     = "phx_error"
	EVENT_CLOSE     = "phx_close"
	EVENT_HEARTBEAT = "heartbeat"
	EVENT_CHANGES   = "postgres_changes"

	TOPIC_PHOENIX = "phoenix"
)

// Frame is one message on the realtime socket.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// ChangeBinding names one table the channel wants change records for.
type ChangeBinding struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// ChangeHandler receives decoded change records for a subscribed topic.
type ChangeHandler func(models.ChangeEvent)

type subscription struct {
	bindings []ChangeBinding
	handler  ChangeHandler
}

// RealtimeClient keeps one websocket to the platform's change feed and
// multiplexes per-topic subscriptions over it. A dropped socket is redialed
// after a fixed delay and every live topic is rejoined; subscribers only see
// the outage through the connectivity callback.
type RealtimeClient struct {
	wsURL             string
	heartbeatInterval time.Duration
	reconnectDelay    time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	subs      map[string]*subscription
	refSeq    int64
	connected bool
	onConn    func(connected bool)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRealtimeClient(platformURL, key string, heartbeat, reconnect time.Duration) (*RealtimeClient, error) {
	wsURL, err := realtimeURL(platformURL, key)
	if err != nil {
		return nil, err
	}
	return &RealtimeClient{
		wsURL:             wsURL,
		heartbeatInterval: heartbeat,
		reconnectDelay:    reconnect,
		subs:              make(map[string]*subscription),
	}, nil
}

func realtimeURL(platformURL, key string) (string, error) {
	u, err := url.Parse(platformURL)
	if err != nil {
		return "", fmt.Errorf("[RealtimeClient] invalid platform URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + REALTIME_PATH
	q := u.Query()
	q.Set("apikey", key)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OnConnectionChange registers the connectivity callback. Call before
// Connect; the callback fires with true once the socket is up and with
// false every time it drops.
func (c *RealtimeClient) OnConnectionChange(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConn = fn
}

// Connect dials the feed and starts the heartbeat and reconnect machinery.
// The initial dial is synchronous so startup fails loudly; after that the
// client maintains the connection until ctx is cancelled or Close is called.
func (c *RealtimeClient) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if err := c.dial(runCtx); err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

func (c *RealtimeClient) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("[RealtimeClient] failed to dial feed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("[RealtimeClient] Connected to change feed")
	c.setConnected(true)
	return nil
}

func (c *RealtimeClient) run(ctx context.Context) {
	defer close(c.done)

	heartbeat := time.NewTicker(c.heartbeatInterval)
	defer heartbeat.Stop()

	readErr := make(chan error, 1)
	go c.readLoop(readErr)

	for {
		select {
		case <-ctx.Done():
			c.closeConn()
			return

		case <-heartbeat.C:
			if err := c.writeFrame(Frame{
				Topic:   TOPIC_PHOENIX,
				Event:   EVENT_HEARTBEAT,
				Payload: json.RawMessage(`{}`),
				Ref:     c.nextRef(),
			}); err != nil {
				slog.Warn("[RealtimeClient] Heartbeat failed",
					slog.String("error", err.Error()))
			}

		case err := <-readErr:
			if ctx.Err() != nil {
				return
			}
			slog.Warn("[RealtimeClient] Connection lost",
				slog.String("error", err.Error()))
			c.setConnected(false)
			c.closeConn()

			if !c.redial(ctx) {
				return
			}
			c.rejoinAll()
			go c.readLoop(readErr)
		}
	}
}

// redial retries the dial at a fixed cadence until it succeeds or ctx ends.
func (c *RealtimeClient) redial(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectDelay):
		}

		if err := c.dial(ctx); err != nil {
			slog.Warn("[RealtimeClient] Reconnect failed, will retry",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		return true
	}
}

func (c *RealtimeClient) readLoop(readErr chan<- error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		readErr <- fmt.Errorf("[RealtimeClient] no connection")
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("[RealtimeClient] Dropping undecodable frame",
				slog.String("error", err.Error()))
			continue
		}
		c.dispatch(frame)
	}
}

func (c *RealtimeClient) dispatch(frame Frame) {
	switch frame.Event {
	case EVENT_CHANGES:
		c.dispatchChange(frame)

	case EVENT_REPLY:
		slog.Debug("[RealtimeClient] Reply",
			slog.String("topic", frame.Topic),
			slog.String("ref", frame.Ref))

	case EVENT_ERROR, EVENT_CLOSE:
		slog.Warn("[RealtimeClient] Channel-level event",
			slog.String("topic", frame.Topic),
			slog.String("event", frame.Event))
	}
}

func (c *RealtimeClient) dispatchChange(frame Frame) {
	c.mu.Lock()
	sub, ok := c.subs[frame.Topic]
	c.mu.Unlock()
	if !ok {
		slog.Debug("[RealtimeClient] Change for unsubscribed topic",
			slog.String("topic", frame.Topic))
		return
	}

	var payload struct {
		Data models.ChangeEvent `json:"data"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		slog.Warn("[RealtimeClient] Dropping undecodable change record",
			slog.String("topic", frame.Topic),
			slog.String("error", err.Error()))
		return
	}
	sub.handler(payload.Data)
}

// Subscribe registers a handler for a topic and joins its channel. The
// subscription survives reconnects: the topic is rejoined automatically
// whenever the socket comes back.
func (c *RealtimeClient) Subscribe(topic string, bindings []ChangeBinding, handler ChangeHandler) error {
	c.mu.Lock()
	c.subs[topic] = &subscription{bindings: bindings, handler: handler}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.join(topic, bindings)
}

// Unsubscribe leaves the topic's channel and drops its handler.
func (c *RealtimeClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	_, ok := c.subs[topic]
	delete(c.subs, topic)
	connected := c.conn != nil
	c.mu.Unlock()

	if !ok || !connected {
		return nil
	}
	return c.writeFrame(Frame{
		Topic:   topic,
		Event:   EVENT_LEAVE,
		Payload: json.RawMessage(`{}`),
		Ref:     c.nextRef(),
	})
}

func (c *RealtimeClient) join(topic string, bindings []ChangeBinding) error {
	payload, err := json.Marshal(map[string]any{
		"config": map[string]any{
			"postgres_changes": bindings,
		},
	})
	if err != nil {
		return fmt.Errorf("[RealtimeClient] failed to marshal join payload: %w", err)
	}
	return c.writeFrame(Frame{
		Topic:   topic,
		Event:   EVENT_JOIN,
		Payload: payload,
		Ref:     c.nextRef(),
	})
}

func (c *RealtimeClient) rejoinAll() {
	c.mu.Lock()
	topics := make(map[string][]ChangeBinding, len(c.subs))
	for topic, sub := range c.subs {
		topics[topic] = sub.bindings
	}
	c.mu.Unlock()

	for topic, bindings := range topics {
		if err := c.join(topic, bindings); err != nil {
			slog.Warn("[RealtimeClient] Failed to rejoin topic",
				slog.String("topic", topic),
				slog.String("error", err.Error()))
		}
	}
	if len(topics) > 0 {
		slog.Info("[RealtimeClient] Rejoined topics after reconnect",
			slog.Int("count", len(topics)))
	}
}

// writeFrame is the only writer on the socket; gorilla connections do not
// allow concurrent writes.
func (c *RealtimeClient) writeFrame(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("[RealtimeClient] not connected")
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("[RealtimeClient] failed to write %s frame: %w", frame.Event, err)
	}
	return nil
}

func (c *RealtimeClient) nextRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refSeq++
	return strconv.FormatInt(c.refSeq, 10)
}

func (c *RealtimeClient) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	fn := c.onConn
	c.mu.Unlock()

	if changed && fn != nil {
		fn(connected)
	}
}

// Connected reports whether the socket is currently up.
func (c *RealtimeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *RealtimeClient) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close tears the client down and waits for the run loop to exit.
func (c *RealtimeClient) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	c.setConnected(false)
	return nil
}
