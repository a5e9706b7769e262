package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Transport Errors (E100-E199)
	// ============================================

	"E101": {
		Category: CategoryNetwork,
		Message:  "Network request failed",
		Detail:   "No response was received from the API server.",
	},
	"E102": {
		Category: CategoryHTTP,
		Message:  "Unauthorized",
		Detail:   "The API rejected the stored credentials and the token refresh failed.",
	},
	"E103": {
		Category: CategoryNetwork,
		Message:  "Invalid response body",
		Detail:   "The response body could not be decoded for its declared content type.",
	},
	"E110": {
		Category: CategorySocketConnection,
		Message:  "WebSocket connection failed",
		Detail:   "The socket did not open before the connection timeout elapsed.",
	},
	"E111": {
		Category: CategorySocketConnection,
		Message:  "WebSocket reconnect failed",
		Detail:   "The maximum number of reconnection attempts was reached.",
	},
	"E112": {
		Category: CategorySocketTimeout,
		Message:  "WebSocket request timed out",
		Detail:   "No response with a matching correlation id arrived before the deadline.",
	},
	"E113": {
		Category: CategorySocketConnection,
		Message:  "WebSocket server error",
		Detail:   "The server sent an error frame.",
	},

	// ============================================
	// UI Runtime Errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryRender,
		Message:  "Component render failed",
		Detail:   "The component returned an error or panicked while producing markup.",
	},
	"E202": {
		Category: CategoryRender,
		Message:  "Unknown component",
		Detail:   "No component with this name is registered with the loader.",
	},
	"E203": {
		Category: CategoryRender,
		Message:  "Component destroy failed",
		Detail:   "A destroy hook panicked; the component was unmounted anyway.",
	},
	"E210": {
		Category: CategoryRouting,
		Message:  "Invalid route",
		Detail:   "Routes need a path pattern and a component name.",
	},
	"E211": {
		Category: CategoryRouting,
		Message:  "Invalid navigation path",
		Detail:   "Navigation paths must be relative, start with '/' and stay below the root.",
	},
	"E220": {
		Category: CategoryValidation,
		Message:  "Validation failed",
		Detail:   "The input was rejected before submission.",
	},

	// ============================================
	// Configuration and Storage Errors (E300-E399)
	// ============================================

	"E301": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "synthdesk.yaml could not be read or parsed.",
	},
	"E302": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"E303": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"E310": {
		Category: CategoryStorage,
		Message:  "Storage backend failed",
		Detail:   "The persisted client state could not be read or written.",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
