package toast

// EventName is the event name emitted for toasts.
const EventName = "synthdesk:toast"

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Sink receives emitted events.
type Sink interface {
	Emit(name string, data any)
}

// Show displays a toast notification.
//
// The sink receives EventName with data
// { level: "success|error|warning|info", message: "..." }.
func Show(sink Sink, level Type, message string) {
	sink.Emit(EventName, map[string]any{
		"level":   string(level),
		"message": message,
	})
}

// Success shows a success toast.
//
//	toast.Success(sink, "Changes saved!")
func Success(sink Sink, message string) {
	Show(sink, TypeSuccess, message)
}

// Error shows an error toast.
func Error(sink Sink, message string) {
	Show(sink, TypeError, message)
}

// Warning shows a warning toast.
func Warning(sink Sink, message string) {
	Show(sink, TypeWarning, message)
}

// Info shows an info toast.
func Info(sink Sink, message string) {
	Show(sink, TypeInfo, message)
}

// WithTitle shows a toast with a title and message.
func WithTitle(sink Sink, level Type, title, message string) {
	sink.Emit(EventName, map[string]any{
		"level":   string(level),
		"title":   title,
		"message": message,
	})
}

// WithAction shows a toast with an action link.
//
//	toast.WithAction(sink, toast.TypeWarning, "Token quota almost used", "Upgrade", "/tokens")
func WithAction(sink Sink, level Type, message, actionLabel, actionHref string) {
	sink.Emit(EventName, map[string]any{
		"level":       string(level),
		"message":     message,
		"actionLabel": actionLabel,
		"actionHref":  actionHref,
	})
}

// Custom emits a toast with custom data.
func Custom(sink Sink, data map[string]any) {
	sink.Emit(EventName, data)
}
