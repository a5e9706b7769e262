// Package config provides configuration parsing for synthdesk.
//
// The configuration is stored in synthdesk.yaml. This package handles
// loading, saving, defaulting and validating it.
//
// # Configuration File Structure
//
//	server:
//	  addr: ":8080"
//	api:
//	  baseURL: http://localhost:8000/api
//	  cacheTTL: 60s
//	  refreshEndpoint: /auth/refresh
//	  endpoints:
//	    model: /models/:id
//	socket:
//	  url: ws://localhost:8000/ws
//	  heartbeatInterval: 30s
//	  reconnectInterval: 1s
//	  maxReconnectAttempts: 10
//	storage:
//	  backend: sqlite
//	  path: synthdesk.db
//	log:
//	  level: debug
//	  format: json
package config
