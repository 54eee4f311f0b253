// Package protocol implements the JSON message envelope exchanged over a
// session's WebSocket connection. It handles frame decoding, synthesize
// request validation, and the outbound control message constructors.
// Malformed input is reported through typed error values so callers can
// answer the client without tearing the session down.
package protocol
