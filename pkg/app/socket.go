package app

import (
	"github.com/vango-dev/synthdesk/pkg/pages"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/wsclient"
)

// Inbound message types the dashboard reacts to.
const (
	TypeNotification = "notification"
	TypeUsageUpdate  = "usage_update"
	TypeModelStatus  = "model_status"
)

type notification struct {
	Level       string `json:"level"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ActionLabel string `json:"actionLabel"`
	ActionHref  string `json:"actionHref"`
}

type modelStatus struct {
	ID      string `json:"id"`
	ModelID string `json:"modelId"`
	Status  string `json:"status"`
}

func (a *App) wireSocket() {
	cancels := []func(){
		a.socket.Handle(TypeNotification, a.onNotification),
		a.socket.Handle(TypeUsageUpdate, a.onUsageUpdate),
		a.socket.Handle(TypeModelStatus, a.onModelStatus),
		a.socket.On(wsclient.EventReconnectFailed, func(payload any) {
			a.logger.Error("socket gave up reconnecting", "error", payload)
			toast.WithTitle(a.toasts, toast.TypeError, "Connection lost",
				"Live updates stopped. Reload the page to try again.")
		}),
		a.socket.On(wsclient.EventConnect, func(any) {
			a.logger.Debug("socket connected")
		}),
		a.socket.On(wsclient.EventError, func(payload any) {
			a.logger.Warn("socket error", "error", payload)
		}),
	}

	a.mu.Lock()
	a.cancels = append(a.cancels, cancels...)
	a.mu.Unlock()
}

func (a *App) onNotification(msg wsclient.Message) {
	var n notification
	if err := msg.Decode(&n); err != nil {
		a.logger.Warn("notification dropped", "error", err)
		return
	}
	level := toast.Type(n.Level)
	switch level {
	case toast.TypeSuccess, toast.TypeError, toast.TypeWarning, toast.TypeInfo:
	default:
		level = toast.TypeInfo
	}
	switch {
	case n.ActionLabel != "" && n.ActionHref != "":
		toast.WithAction(a.toasts, level, n.Message, n.ActionLabel, n.ActionHref)
	case n.Title != "":
		toast.WithTitle(a.toasts, level, n.Title, n.Message)
	default:
		toast.Show(a.toasts, level, n.Message)
	}
}

func (a *App) onUsageUpdate(msg wsclient.Message) {
	var usage map[string]any
	if err := msg.Decode(&usage); err != nil {
		a.logger.Warn("usage update dropped", "error", err)
		return
	}
	for prop, v := range usage {
		a.bindings.UpdateData(pages.SourceUsage, prop, v)
	}
}

func (a *App) onModelStatus(msg wsclient.Message) {
	var s modelStatus
	if err := msg.Decode(&s); err != nil {
		a.logger.Warn("model status dropped", "error", err)
		return
	}
	id := s.ID
	if id == "" {
		id = s.ModelID
	}
	if id == "" || s.Status == "" {
		a.logger.Warn("model status dropped", "reason", "missing id or status")
		return
	}
	a.bindings.UpdateData(pages.SourceModels, id, s.Status)
}
