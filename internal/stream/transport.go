package stream

import "github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"

// Transport is the exclusively owned handle to one client's duplex
// connection. Implementations must allow WriteControl and WriteAudio to be
// called from different goroutines (keepalive pings and audio chunks come
// from separate session tasks) and must unblock a pending ReadMessage when
// Close is called.
type Transport interface {
	// ReadMessage blocks until the next inbound frame arrives or the
	// connection fails.
	ReadMessage() ([]byte, error)

	// WriteControl sends a JSON control frame.
	WriteControl(msg protocol.Control) error

	// WriteAudio sends one binary audio frame.
	WriteAudio(chunk []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
