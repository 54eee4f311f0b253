// Package server implements the WebSocket endpoint for streaming sessions
// and the HTTP API. It handles connection upgrade and admission, the
// per-connection read loop feeding session inboxes, and the
// monitoring/synthesis/health endpoints.
package server
