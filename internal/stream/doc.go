// Package stream provides session management and lifecycle handling for
// live synthesis connections. It manages capacity-capped admission, the
// per-session state machine and message dispatch, keepalive-based liveness,
// ordered audio streaming, and fully joined teardown of all session tasks.
package stream
