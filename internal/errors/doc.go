// Package errors provides structured, categorized errors for synthdesk.
//
// Every error carries a category that tells callers which recovery path
// applies:
//   - network: no response was received (retried once by the API client)
//   - http: the server answered with a status >= 400
//   - validation: client-side checks rejected the input before submission
//   - socket_timeout: no correlated socket response arrived in time
//   - socket_connection: the socket never opened or closed abnormally
//   - render: a component failed to render, update or destroy
//   - routing: a route could not be registered or resolved
//   - config, storage: startup and persistence failures
//
// # Error Codes
//
// Each error has a unique code (e.g., "E101") that maps to a short message
// and a longer detail string:
//
//	err := errors.New("E201").
//	    WithDetail("GET /api/models").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
package errors
