// Package wsclient keeps a resilient JSON WebSocket connection to the
// platform.
//
// A Manager reconnects with geometric backoff after unexpected closes,
// queues outbound messages while offline, replays channel subscriptions
// on every successful open and correlates request/response pairs by id.
package wsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/internal/metrics"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = stderrors.New("wsclient: manager closed")

	// ErrTimeout is returned when no response arrives for a request.
	ErrTimeout = stderrors.New("wsclient: request timed out")
)

const writeWait = 10 * time.Second

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event names a lifecycle notification.
type Event string

// Listener payloads: EventDisconnect carries the close code (int),
// EventReconnecting the attempt number (int), EventReconnectFailed and
// EventError an error, EventMessage the Message.
const (
	EventConnect         Event = "connect"
	EventDisconnect      Event = "disconnect"
	EventReconnecting    Event = "reconnecting"
	EventReconnectFailed Event = "reconnect_failed"
	EventError           Event = "error"
	EventMessage         Event = "message"
)

// Listener receives lifecycle events.
type Listener func(payload any)

// HandlerFunc receives inbound messages.
type HandlerFunc func(Message)

type listenerEntry struct {
	id uint64
	fn Listener
}

type handlerEntry struct {
	id uint64
	fn HandlerFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records connection state and message counts on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithHeader sets the handshake request headers.
func WithHeader(h http.Header) Option {
	return func(m *Manager) {
		m.header = h
	}
}

// WithHeartbeat sets the ping interval. Zero disables the heartbeat.
func WithHeartbeat(d time.Duration) Option {
	return func(m *Manager) {
		m.heartbeat = d
	}
}

// WithReconnect sets the backoff base interval and the attempt limit.
func WithReconnect(base time.Duration, maxAttempts int) Option {
	return func(m *Manager) {
		if base > 0 {
			m.reconnectBase = base
		}
		if maxAttempts >= 0 {
			m.maxReconnects = maxAttempts
		}
	}
}

// WithConnectTimeout bounds each dial.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// WithRequestTimeout sets the default Request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.requestTimeout = d
		}
	}
}

// Manager owns one logical socket connection.
type Manager struct {
	url            string
	dialer         *websocket.Dialer
	header         http.Header
	logger         *slog.Logger
	metrics        *metrics.Metrics
	heartbeat      time.Duration
	reconnectBase  time.Duration
	maxReconnects  int
	connectTimeout time.Duration
	requestTimeout time.Duration
	now            func() time.Time

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	stop      chan struct{}
	queue     [][]byte
	subs      map[string]HandlerFunc
	pending   map[string]chan Message
	listeners map[Event][]listenerEntry
	handlers  map[string][]handlerEntry
	nextID    uint64
	attempts  int
	timer     *time.Timer
	timerGen  uint64
	closed    bool

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// New creates a disconnected manager for url.
func New(url string, opts ...Option) *Manager {
	m := &Manager{
		url:            url,
		dialer:         websocket.DefaultDialer,
		logger:         slog.Default().With("component", "socket"),
		heartbeat:      config.DefaultHeartbeat,
		reconnectBase:  config.DefaultReconnectInterval,
		maxReconnects:  config.DefaultMaxReconnects,
		connectTimeout: config.DefaultConnectTimeout,
		requestTimeout: config.DefaultRequestTimeout,
		now:            time.Now,
		subs:           make(map[string]HandlerFunc),
		pending:        make(map[string]chan Message),
		listeners:      make(map[Event][]listenerEntry),
		handlers:       make(map[string][]handlerEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewFromConfig creates a manager from the socket section of the config.
func NewFromConfig(cfg config.SocketConfig, opts ...Option) *Manager {
	base := []Option{
		WithHeartbeat(cfg.HeartbeatInterval),
		WithReconnect(cfg.ReconnectInterval, cfg.MaxReconnectAttempts),
		WithConnectTimeout(cfg.ConnectTimeout),
		WithRequestTimeout(cfg.RequestTimeout),
	}
	return New(cfg.URL, append(base, opts...)...)
}

// URL returns the socket endpoint.
func (m *Manager) URL() string { return m.url }

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the socket is open.
func (m *Manager) Connected() bool {
	return m.State() == Connected
}

// Queued returns the number of messages waiting for a connection.
func (m *Manager) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Subscriptions returns the remembered channels, sorted.
func (m *Manager) Subscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelsLocked()
}

func (m *Manager) channelsLocked() []string {
	out := make([]string, 0, len(m.subs))
	for ch := range m.subs {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Connect opens the socket and returns once it is open, or with an error
// when the dial fails or the connect timeout elapses. A failed dial
// schedules a reconnect unless ctx itself was cancelled. Connect returns
// nil when a connection is already open or being opened.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("E110").Wrap(ErrClosed)
	}
	if m.state == Connected || m.state == Connecting {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.attempts = 0
	m.state = Connecting
	m.mu.Unlock()

	if err := m.dial(ctx); err != nil {
		if ctx.Err() == nil {
			m.scheduleReconnect()
		}
		return err
	}
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	conn, _, err := m.dialer.DialContext(ctx, m.url, m.header)
	if err != nil {
		m.mu.Lock()
		if !m.closed {
			m.state = Disconnected
		}
		m.mu.Unlock()
		return errors.New("E110").WithDetail(m.url).Wrap(err)
	}
	return m.open(conn)
}

// open installs conn, flushes the offline queue, replays subscriptions
// and starts the read and heartbeat loops.
func (m *Manager) open(conn *websocket.Conn) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return errors.New("E110").Wrap(ErrClosed)
	}
	m.conn = conn
	m.state = Connected
	m.attempts = 0
	stop := make(chan struct{})
	m.stop = stop
	queued := m.queue
	m.queue = nil
	channels := m.channelsLocked()
	m.mu.Unlock()

	m.metrics.SocketConnected(true)
	m.logger.Info("socket connected", "url", m.url, "queued", len(queued), "subscriptions", len(channels))

	go m.readLoop(conn)
	go m.heartbeatLoop(conn, stop)

	for i, raw := range queued {
		if err := m.write(conn, raw); err != nil {
			m.logger.Warn("queued message not flushed", "error", err)
			m.mu.Lock()
			m.queue = append(append([][]byte{}, queued[i:]...), m.queue...)
			m.mu.Unlock()
			break
		}
		m.metrics.SocketMessage("out", "queued")
	}
	for _, ch := range channels {
		m.writeControl(conn, TypeSubscribe, map[string]string{"channel": ch})
	}

	m.emit(EventConnect, nil)
	return nil
}

func (m *Manager) write(conn *websocket.Conn, raw []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(m.now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// writeControl sends a protocol message directly on conn, bypassing the
// offline queue.
func (m *Manager) writeControl(conn *websocket.Conn, typ string, data any) {
	raw, err := newMessage(typ, uuid.NewString(), data, m.now())
	if err != nil {
		m.logger.Error("control message not encoded", "type", typ, "error", err)
		return
	}
	if err := m.write(conn, raw); err != nil {
		m.logger.Debug("control message not sent", "type", typ, "error", err)
		return
	}
	m.metrics.SocketMessage("out", typ)
}

func (m *Manager) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	if m.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.writeControl(conn, TypePing, map[string]int64{"timestamp": m.now().UnixMilli()})
		case <-stop:
			return
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		m.handleMessage(conn, raw)
	}
}

func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if stderrors.As(err, &ce) {
		code = ce.Code
	}

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	close(m.stop)
	m.stop = nil
	m.state = Disconnected
	m.mu.Unlock()

	conn.Close()
	m.metrics.SocketConnected(false)
	if code == websocket.CloseNormalClosure {
		m.logger.Info("socket closed by server")
	} else {
		m.logger.Warn("socket connection lost", "code", code, "error", err)
	}
	m.emit(EventDisconnect, code)

	if code != websocket.CloseNormalClosure {
		m.scheduleReconnect()
	}
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed || m.timer != nil || m.state == Connected || m.state == Connecting {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.maxReconnects {
		attempts := m.attempts
		m.state = Disconnected
		m.mu.Unlock()
		m.logger.Error("giving up on socket reconnection", "attempts", attempts)
		m.emit(EventReconnectFailed, errors.New("E111").WithDetail(m.url))
		return
	}
	m.attempts++
	attempt := m.attempts
	delay := Backoff(m.reconnectBase, attempt)
	m.state = Reconnecting
	m.timerGen++
	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() { m.reconnect(gen) })
	m.mu.Unlock()

	m.metrics.SocketReconnect()
	m.logger.Info("socket reconnect scheduled", "attempt", attempt, "delay", delay)
	m.emit(EventReconnecting, attempt)
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.closed || m.state != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.state = Connecting
	m.mu.Unlock()

	if err := m.dial(context.Background()); err != nil {
		m.logger.Debug("socket reconnect attempt failed", "error", err)
		m.scheduleReconnect()
	}
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

// Send transmits a message, or queues it until the next successful
// connect when the socket is not open. It returns the message id.
func (m *Manager) Send(typ string, data any) (string, error) {
	id := uuid.NewString()
	return id, m.send(typ, id, data)
}

func (m *Manager) send(typ, id string, data any) error {
	raw, err := newMessage(typ, id, data, m.now())
	if err != nil {
		return errors.New("E220").WithDetail("socket message could not be encoded").Wrap(err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("E110").Wrap(ErrClosed)
	}
	conn := m.conn
	if conn == nil || m.state != Connected {
		m.queue = append(m.queue, raw)
		m.mu.Unlock()
		m.logger.Debug("socket offline, message queued", "type", typ)
		return nil
	}
	m.mu.Unlock()

	if err := m.write(conn, raw); err != nil {
		m.mu.Lock()
		m.queue = append(m.queue, raw)
		m.mu.Unlock()
		m.logger.Warn("socket write failed, message queued", "type", typ, "error", err)
		return nil
	}
	m.metrics.SocketMessage("out", typ)
	return nil
}

// Request sends a message and waits for the response that names its id.
// A timeout of zero uses the configured request timeout. Error frames
// are returned as errors alongside the message.
func (m *Manager) Request(ctx context.Context, typ string, data any, timeout time.Duration) (Message, error) {
	if timeout <= 0 {
		timeout = m.requestTimeout
	}
	id := uuid.NewString()
	ch := make(chan Message, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Message{}, errors.New("E110").Wrap(ErrClosed)
	}
	m.pending[id] = ch
	m.mu.Unlock()

	if err := m.send(typ, id, data); err != nil {
		m.dropPending(id)
		return Message{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return Message{}, errors.New("E110").Wrap(ErrClosed)
		}
		if msg.Type == TypeError || msg.Error != "" {
			return msg, serverError(msg)
		}
		return msg, nil
	case <-timer.C:
		m.dropPending(id)
		m.metrics.SocketTimeout()
		m.logger.Warn("socket request timed out", "type", typ, "id", id, "timeout", timeout)
		return Message{}, errors.New("E112").WithDetail(typ).Wrap(ErrTimeout)
	case <-ctx.Done():
		m.dropPending(id)
		return Message{}, ctx.Err()
	}
}

func (m *Manager) dropPending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func (m *Manager) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Subscribe remembers channel and routes its subscription data to fn,
// replacing any earlier callback. The subscribe message is sent now if
// the socket is open and on every later open.
func (m *Manager) Subscribe(channel string, fn HandlerFunc) error {
	if channel == "" || fn == nil {
		return errors.New("E220").WithDetail("subscriptions need a channel and a callback")
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("E110").Wrap(ErrClosed)
	}
	m.subs[channel] = fn
	conn := m.conn
	open := m.state == Connected
	m.mu.Unlock()

	if open && conn != nil {
		m.writeControl(conn, TypeSubscribe, map[string]string{"channel": channel})
	}
	return nil
}

// Unsubscribe forgets channel.
func (m *Manager) Unsubscribe(channel string) {
	m.mu.Lock()
	_, ok := m.subs[channel]
	delete(m.subs, channel)
	conn := m.conn
	open := m.state == Connected
	m.mu.Unlock()

	if ok && open && conn != nil {
		m.writeControl(conn, TypeUnsubscribe, map[string]string{"channel": channel})
	}
}

// On registers a lifecycle listener and returns its cancel func.
func (m *Manager) On(ev Event, fn Listener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[ev] = append(m.listeners[ev], listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.listeners[ev]
		for i, l := range list {
			if l.id == id {
				m.listeners[ev] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Handle registers fn for inbound messages of type typ and returns its
// cancel func.
func (m *Manager) Handle(typ string, fn HandlerFunc) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[typ] = append(m.handlers[typ], handlerEntry{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.handlers[typ]
		for i, h := range list {
			if h.id == id {
				m.handlers[typ] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Close terminates the connection and fails pending requests. The
// manager cannot be reconnected afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = Closed
	m.stopTimerLocked()
	conn := m.conn
	m.conn = nil
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	pending := m.pending
	m.pending = make(map[string]chan Message)
	m.queue = nil
	m.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if conn == nil {
		return nil
	}

	m.writeMu.Lock()
	conn.SetWriteDeadline(m.now().Add(writeWait))
	if err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		m.logger.Debug("close frame not sent", "error", err)
	}
	m.writeMu.Unlock()
	err := conn.Close()

	m.metrics.SocketConnected(false)
	m.logger.Info("socket closed")
	m.emit(EventDisconnect, websocket.CloseNormalClosure)
	return err
}
