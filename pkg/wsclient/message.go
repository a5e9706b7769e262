package wsclient

import (
	"encoding/json"
	"math"
	"time"
)

// Message types with built-in meaning.
const (
	TypePing             = "ping"
	TypePong             = "pong"
	TypeError            = "error"
	TypeSubscribe        = "subscribe"
	TypeUnsubscribe      = "unsubscribe"
	TypeSubscriptionData = "subscription_data"
)

// Message is the JSON envelope exchanged over the socket. Outbound
// messages always carry ID; responses name the request they answer in
// RequestID or, for older servers, by echoing ID.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

func newMessage(typ, id string, data any, now time.Time) ([]byte, error) {
	msg := Message{Type: typ, ID: id, Timestamp: now.UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

const maxBackoff = 30 * time.Second

// Backoff returns the delay before reconnect attempt n (1-based):
// base * 1.5^(n-1), capped at 30s.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(1.5, float64(attempt-1))
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}
