package socket

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("socket not connected")
	ErrClosed       = errors.New("socket client closed")
)

// Conn 底层连接，*websocket.Conn 满足该接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc 建立一条新连接
type DialFunc func(ctx context.Context) (Conn, error)

// Handler 事件处理函数，在读循环中按到达顺序同步调用
type Handler func(ctx context.Context, data json.RawMessage)

type Options struct {
	URL               string
	Token             string
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
	// Dial 为空时使用 gorilla/websocket 拨号
	Dial DialFunc
}

// Client 长连接适配器
// 对上只暴露按事件名订阅、发送、房间加入/离开与连接状态，不持有任何业务缓存
type Client struct {
	opts Options

	mu       sync.RWMutex
	conn     Conn
	state    State
	closed   bool
	rooms    map[string]struct{}
	handlers map[string][]Handler
	stateFns []func(State)

	writeMu sync.Mutex
}

func NewClient(opts Options) *Client {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	c := &Client{
		opts:     opts,
		rooms:    make(map[string]struct{}),
		handlers: make(map[string][]Handler),
	}
	if c.opts.Dial == nil {
		c.opts.Dial = c.dialWebsocket
	}
	return c
}

func (c *Client) dialWebsocket(ctx context.Context) (Conn, error) {
	c.mu.RLock()
	raw, token := c.opts.URL, c.opts.Token
	c.mu.RUnlock()

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// SetToken 会话刷新后更新握手凭证，下次重连生效
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Token = token
}

// On 注册事件处理函数
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Subscribe 注册带类型的事件处理函数，解析失败的帧记录日志后丢弃
func Subscribe[T any](c *Client, event string, fn func(ctx context.Context, payload T)) {
	c.On(event, func(ctx context.Context, data json.RawMessage) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			log.WarnContext(ctx, "socket 事件解析失败", "event", event, "err", err)
			return
		}
		fn(ctx, payload)
	})
}

// OnState 注册连接状态监听
func (c *Client) OnState(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	fns := c.transitionLocked(s)
	c.mu.Unlock()
	notify(fns, s)
}

// transitionLocked 切换状态，返回需要在锁外通知的监听函数
func (c *Client) transitionLocked(s State) []func(State) {
	if c.state == s {
		return nil
	}
	c.state = s
	return append(([]func(State))(nil), c.stateFns...)
}

func notify(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}

// Connect 建立连接并重新加入断线前的房间
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	fns := c.transitionLocked(StateConnecting)
	c.mu.Unlock()
	notify(fns, StateConnecting)

	conn, err := c.opts.Dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(StateDisconnected)
		return ErrClosed
	}
	c.conn = conn
	rooms := c.roomsLocked()
	c.mu.Unlock()

	for _, room := range rooms {
		if err := c.write(conn, EventJoinConversation, RoomPayload{ConversationID: room}); err != nil {
			log.WarnContext(ctx, "重新加入会话失败", "conversationID", room, "err", err)
		}
	}
	c.setState(StateConnected)
	return nil
}

// Run 保持连接，断线后按指数退避重连，ctx 取消或 Close 后返回
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.ReconnectMin
	for {
		err := c.Connect(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			log.WarnContext(ctx, "socket 连接失败", "err", err, "retry_in", backoff)
		default:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				backoff = c.opts.ReconnectMin
				log.InfoContext(ctx, "socket 连接已建立", "url", c.opts.URL)
				serveErr := c.serve(ctx, conn)
				c.drop(conn)
				if ctx.Err() != nil || c.isClosed() {
					return nil
				}
				log.WarnContext(ctx, "socket 连接断开", "err", serveErr, "retry_in", backoff)
			}
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff *= 2
		if backoff > c.opts.ReconnectMax {
			backoff = c.opts.ReconnectMax
		}
	}
}

// serve 读循环，连接出错时返回
func (c *Client) serve(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ctx 取消时关闭连接以打断阻塞的读
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go c.heartbeat(connCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.WarnContext(ctx, "socket 帧解析失败", "err", err)
			continue
		}
		c.dispatch(ctx, env)
	}
}

func (c *Client) dispatch(ctx context.Context, env Envelope) {
	if env.Event == EventPong {
		return
	}
	c.mu.RLock()
	hs := append([]Handler(nil), c.handlers[env.Event]...)
	c.mu.RUnlock()

	if len(hs) == 0 {
		log.DebugContext(ctx, "未注册的 socket 事件", "event", env.Event)
		return
	}
	for _, h := range hs {
		h(ctx, env.Data)
	}
}

func (c *Client) heartbeat(ctx context.Context, conn Conn) {
	if c.opts.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, EventPing, nil); err != nil {
				log.WarnContext(ctx, "socket 心跳失败", "err", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) drop(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
	c.setState(StateDisconnected)
}

// Emit 发送事件；未连接时直接返回 ErrNotConnected，不排队
func (c *Client) Emit(event string, payload any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, event, payload)
}

func (c *Client) write(conn Conn, event string, payload any) error {
	env := Envelope{Event: event, Ref: uuid.NewString()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("socket write %s: %w", event, err)
	}
	return nil
}

// Join 加入会话房间；已加入时不发送任何帧，未连接时返回 ErrNotConnected
func (c *Client) Join(conversationID string) error {
	c.mu.Lock()
	if _, ok := c.rooms[conversationID]; ok {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.rooms[conversationID] = struct{}{}
	c.mu.Unlock()

	if err := c.write(conn, EventJoinConversation, RoomPayload{ConversationID: conversationID}); err != nil {
		c.mu.Lock()
		delete(c.rooms, conversationID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Leave 离开会话房间；未加入时不发送任何帧
func (c *Client) Leave(conversationID string) error {
	c.mu.Lock()
	if _, ok := c.rooms[conversationID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.rooms, conversationID)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, EventLeaveConversation, RoomPayload{ConversationID: conversationID})
}

// LeaveAll 离开全部房间，会话结束时调用
func (c *Client) LeaveAll() {
	for _, room := range c.Rooms() {
		if err := c.Leave(room); err != nil {
			log.Warn("离开会话失败", "conversationID", room, "err", err)
		}
	}
}

// Rooms 当前已加入的房间
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomsLocked()
}

func (c *Client) roomsLocked() []string {
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close 关闭连接并清空房间，之后 Run 退出且不再重连
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.rooms = make(map[string]struct{})
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.setState(StateDisconnected)
	return err
}
