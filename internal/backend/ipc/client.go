package ipc

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/status"
)

const (
	// Frames above this size are rejected; pages and media blobs stay well
	// under it.
	maxFrameSize = 64 << 20

	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 15 * time.Second
)

// Client is the unix socket client for the backend daemon. It implements
// backend.Client and republishes server pushes on the event bus.
type Client struct {
	socketPath string
	bus        *bus.Bus
	machine    *status.Machine
	logger     *zap.Logger

	mu      sync.Mutex
	conn    net.Conn
	nextID  uint64
	pending map[uint64]chan frame

	closed    chan struct{}
	closeOnce sync.Once
}

var _ backend.Client = (*Client)(nil)

// New creates a client for the given socket path. Call Connect to
// establish the link.
func New(socketPath string, b *bus.Bus, m *status.Machine, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		socketPath: socketPath,
		bus:        b,
		machine:    m,
		logger:     logger,
		pending:    make(map[uint64]chan frame),
		closed:     make(chan struct{}),
	}
}

// Connect dials the backend socket and starts the read loop. On read
// failure the client reconnects with backoff until Close is called.
func (c *Client) Connect(ctx context.Context) error {
	_ = c.machine.Transition(status.Connecting)

	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		_ = c.machine.Transition(status.Error)
		return fmt.Errorf("dial backend %s: %w", c.socketPath, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Close tears down the link and stops reconnecting.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)

	for sc.Scan() {
		var f frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			c.logger.Warn("malformed frame from backend", zap.Error(err))
			continue
		}
		if f.Event != "" {
			c.handlePush(f)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}

	c.failPending()

	select {
	case <-c.closed:
		return
	default:
	}

	c.logger.Warn("backend link lost", zap.Error(sc.Err()))
	_ = c.machine.Transition(status.Reconnecting)
	c.reconnect()
}

// failPending unblocks every in-flight call when the link drops.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- frame{ID: id, Error: backend.ErrUnavailable.Error()}
	}
	c.conn = nil
}

func (c *Client) reconnect() {
	delay := reconnectBaseDelay
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(delay):
		}

		conn, err := net.Dial("unix", c.socketPath)
		if err != nil {
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		_ = c.machine.Transition(status.Connecting)
		c.logger.Info("backend link restored")
		go c.readLoop(conn)

		// Re-ask for the backend state so the status bar catches up, and
		// trigger a directory refresh for anything missed while down.
		go c.resync()
		return
	}
}

func (c *Client) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var res statusResult
	if err := c.call(ctx, MethodStatusGet, nil, &res); err == nil {
		c.applyBackendState(res.State)
	}
	c.bus.Publish(bus.Event{Kind: bus.KindChatRefresh, Timestamp: time.Now()})
}

func (c *Client) handlePush(f frame) {
	switch f.Event {
	case PushNewMessage:
		var dto MessageDTO
		if err := json.Unmarshal(f.Data, &dto); err != nil {
			c.logger.Warn("bad message push", zap.Error(err))
			return
		}
		msg := dto.Decode()
		c.bus.Publish(bus.Event{
			Kind:      bus.KindNewMessage,
			Timestamp: time.Now(),
			Payload:   bus.NewMessage{ChatID: msg.ChatID, Message: msg},
		})
	case PushAvatarUpdated:
		var p avatarPush
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		c.bus.Publish(bus.Event{
			Kind:      bus.KindAvatarUpdated,
			Timestamp: time.Now(),
			Payload:   bus.AvatarUpdated{ChatID: p.ChatID},
		})
	case PushChatRefresh:
		c.bus.Publish(bus.Event{Kind: bus.KindChatRefresh, Timestamp: time.Now()})
	case PushStatus:
		var res statusResult
		if err := json.Unmarshal(f.Data, &res); err != nil {
			return
		}
		c.applyBackendState(res.State)
	default:
		c.logger.Debug("unknown push event", zap.String("event", f.Event))
	}
}

// applyBackendState maps a reported daemon state onto the link machine.
// Invalid transitions are dropped; the machine keeps its stricter view.
func (c *Client) applyBackendState(state string) {
	switch status.State(state) {
	case status.AuthRequired, status.Syncing, status.Ready, status.Degraded:
		_ = c.machine.Transition(status.State(state))
	}
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = b
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return backend.ErrUnavailable
	}
	c.nextID++
	id := c.nextID
	ch := make(chan frame, 1)
	c.pending[id] = ch

	payload, err := json.Marshal(request{ID: id, Method: method, Params: raw})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return backend.ErrUnavailable
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case f := <-ch:
		if f.Error != "" {
			if f.Error == backend.ErrUnavailable.Error() {
				return backend.ErrUnavailable
			}
			return errors.New(f.Error)
		}
		if result != nil && f.Result != nil {
			return json.Unmarshal(f.Result, result)
		}
		return nil
	}
}

// FetchMessagesPaged implements backend.Client.
func (c *Client) FetchMessagesPaged(ctx context.Context, chatID string, pageSize int, beforeUnixMS int64) ([]model.Message, error) {
	var dtos []MessageDTO
	err := c.call(ctx, MethodMessagePage, pageParams{
		ChatID:   chatID,
		PageSize: pageSize,
		BeforeMS: beforeUnixMS,
	}, &dtos)
	if err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0, len(dtos))
	for _, d := range dtos {
		msgs = append(msgs, d.Decode())
	}
	return msgs, nil
}

// SendMessage implements backend.Client.
func (c *Client) SendMessage(ctx context.Context, chatID string, payload backend.SendPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var res sendResult
	if err := c.call(ctx, MethodMessageSend, sendParams{ChatID: chatID, Payload: raw}, &res); err != nil {
		return "", err
	}
	if res.MessageID == "" {
		return "", errors.New("backend returned empty message id")
	}
	return res.MessageID, nil
}

// FetchChatList implements backend.Client.
func (c *Client) FetchChatList(ctx context.Context) ([]backend.ChatDTO, error) {
	var chats []backend.ChatDTO
	if err := c.call(ctx, MethodChatList, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// DownloadMedia implements backend.Client.
func (c *Client) DownloadMedia(ctx context.Context, chatID, messageID string) ([]byte, error) {
	var res mediaResult
	if err := c.call(ctx, MethodMediaFetch, mediaParams{ChatID: chatID, MessageID: messageID}, &res); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(res.Base64Data)
}

// CachedMediaPath implements backend.Client.
func (c *Client) CachedMediaPath(ctx context.Context, messageID string) (string, error) {
	var res mediaResult
	if err := c.call(ctx, MethodMediaPath, mediaParams{MessageID: messageID}, &res); err != nil {
		return "", err
	}
	return res.Path, nil
}
