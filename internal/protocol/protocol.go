package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Inbound message types
const (
	TypeSynthesize = "synthesize"
	TypeStop       = "stop"
	TypeConfigure  = "configure"
	TypePong       = "pong"
)

// Outbound message types
const (
	TypePing    = "ping"
	TypeError   = "error"
	TypeSuccess = "success"
	TypeEnd     = "end"
)

// Message represents a decoded inbound frame. Kind-specific fields are kept
// flat to match the wire envelope.
type Message struct {
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Voice string   `json:"voice,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
}

// Control represents an outbound JSON control frame.
type Control struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// SynthesizeRequest is a validated synthesis request with defaults applied.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Speed float64
}

// DecodeError reports a structurally malformed inbound frame. It is
// recovered locally: the client is notified and the session continues.
type DecodeError struct {
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("decode: %s", e.Detail)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a syntactically valid frame with missing or
// out-of-range fields. Recovered locally like DecodeError.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation: %s", e.Detail) }

// Bounds holds the validation limits for synthesize requests.
type Bounds struct {
	MinSpeed      float64
	MaxSpeed      float64
	MaxTextLength int
	DefaultVoice  string
}

// Decode parses a raw inbound frame into a Message. It returns a
// *DecodeError for malformed JSON or a missing type field; it never panics
// and never inspects kind-specific fields.
func Decode(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, &DecodeError{Detail: "invalid JSON message", Err: err}
	}

	if msg.Type == "" {
		return nil, &DecodeError{Detail: "missing message type"}
	}

	return &msg, nil
}

// ValidateSynthesize checks a synthesize message against the configured
// bounds and applies voice/speed defaults.
func ValidateSynthesize(msg *Message, bounds Bounds) (*SynthesizeRequest, error) {
	if msg.Type != TypeSynthesize {
		return nil, &ValidationError{Detail: fmt.Sprintf("unexpected message type '%s'", msg.Type)}
	}

	if msg.Text == "" {
		return nil, &ValidationError{Detail: "No text provided"}
	}

	// The limit is a character count, not a byte count; multi-byte text
	// must not burn through the budget faster
	if bounds.MaxTextLength > 0 && utf8.RuneCountInString(msg.Text) > bounds.MaxTextLength {
		return nil, &ValidationError{
			Detail: fmt.Sprintf("Text exceeds maximum length of %d characters", bounds.MaxTextLength),
		}
	}

	voice := msg.Voice
	if voice == "" {
		voice = bounds.DefaultVoice
	}
	if voice == "" {
		voice = "default"
	}

	speed := 1.0
	if msg.Speed != nil {
		speed = *msg.Speed
	}
	if speed < bounds.MinSpeed || speed > bounds.MaxSpeed {
		return nil, &ValidationError{
			Detail: fmt.Sprintf("Speed must be between %.1f and %.1f", bounds.MinSpeed, bounds.MaxSpeed),
		}
	}

	return &SynthesizeRequest{Text: msg.Text, Voice: voice, Speed: speed}, nil
}

// Ping returns the keepalive probe frame.
func Ping() Control { return Control{Type: TypePing} }

// End returns the end-of-stream marker frame.
func End() Control { return Control{Type: TypeEnd} }

// Error returns an error frame naming the failure.
func Error(message string) Control { return Control{Type: TypeError, Message: message} }

// Success returns a success acknowledgment frame.
func Success(message string) Control { return Control{Type: TypeSuccess, Message: message} }

// IsRecoverable reports whether err is a protocol-level error that leaves
// the session open (decode and validation failures).
func IsRecoverable(err error) bool {
	var de *DecodeError
	var ve *ValidationError
	return errors.As(err, &de) || errors.As(err, &ve)
}
