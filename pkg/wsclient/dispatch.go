package wsclient

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/synthdesk/internal/errors"
)

func (m *Manager) handleMessage(conn *websocket.Conn, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.logger.Warn("dropping undecodable socket frame", "error", err, "bytes", len(raw))
		return
	}
	m.metrics.SocketMessage("in", msg.Type)

	if m.resolve(msg) {
		return
	}

	switch msg.Type {
	case TypePing:
		m.writeControl(conn, TypePong, map[string]int64{"timestamp": msg.Timestamp})
		return
	case TypePong:
		m.logger.Debug("received pong")
		return
	case TypeError:
		m.emit(EventError, serverError(msg))
	case TypeSubscriptionData:
		m.deliver(msg)
	default:
		m.mu.Lock()
		handlers := append([]handlerEntry(nil), m.handlers[msg.Type]...)
		m.mu.Unlock()
		for _, h := range handlers {
			m.call("handler "+msg.Type, func() { h.fn(msg) })
		}
	}
	m.emit(EventMessage, msg)
}

// resolve hands msg to the pending request it answers, if any.
func (m *Manager) resolve(msg Message) bool {
	key := msg.RequestID
	if key == "" {
		key = msg.ID
	}
	if key == "" {
		return false
	}
	m.mu.Lock()
	ch, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	m.mu.Unlock()
	if ok {
		ch <- msg
	}
	return ok
}

// deliver routes subscription data to its channel's callback only.
func (m *Manager) deliver(msg Message) {
	m.mu.Lock()
	fn, ok := m.subs[msg.Channel]
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("data for unknown channel", "channel", msg.Channel)
		return
	}
	m.call("subscription "+msg.Channel, func() { fn(msg) })
}

func (m *Manager) emit(ev Event, payload any) {
	m.mu.Lock()
	listeners := append([]listenerEntry(nil), m.listeners[ev]...)
	m.mu.Unlock()
	for _, l := range listeners {
		m.call(string(ev)+" listener", func() { l.fn(payload) })
	}
}

// call runs a user callback, logging a panic instead of killing the read
// loop.
func (m *Manager) call(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("socket callback panicked", "callback", what, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func serverError(msg Message) error {
	text := msg.Error
	if text == "" {
		var body struct {
			Message string `json:"message"`
		}
		if msg.Decode(&body) == nil {
			text = body.Message
		}
	}
	if text == "" {
		text = "unspecified server error"
	}
	return errors.New("E113").Wrap(stderrors.New(text))
}
