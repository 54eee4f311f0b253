package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/audio"
)

// Request contains the parameters for one synthesis operation
type Request struct {
	Text     string
	Voice    string
	Speed    float64
	Language string
}

// Take is a fully synthesized waveform
type Take struct {
	Samples    []int16
	SampleRate int
}

// Synthesizer is the contract for producing audio from text
type Synthesizer interface {
	// Synthesize produces the complete waveform for the request.
	Synthesize(ctx context.Context, req Request) (*Take, error)

	// SynthesizeStream produces the waveform as a lazy sequence of audio
	// chunks of at most chunkSize bytes, delivered in production order.
	// The chunk channel is closed on exhaustion; a failure is reported on
	// the error channel and both channels are closed.
	SynthesizeStream(ctx context.Context, req Request, chunkSize int) (<-chan []byte, <-chan error)
}

// SynthesisError reports an engine failure with a human-readable detail
// string. It is recovered locally: the client is notified and the session
// stays open.
type SynthesisError struct {
	Detail string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("synthesis: %s", e.Detail)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// IsSynthesisError reports whether err carries a SynthesisError.
func IsSynthesisError(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se)
}

// streamTake lazily chunks a finished take and delivers it on a channel
// pair, honoring cancellation between chunks. Shared by implementations
// whose backends return complete waveforms.
func streamTake(ctx context.Context, take *Take, chunkSize int) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		chunker := audio.NewChunker(chunkSize)
		for _, chunk := range chunker.Split(audio.PCM16Bytes(take.Samples)) {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

// failStream returns a closed chunk channel and the error already
// delivered, for implementations failing before the first chunk.
func failStream(err error) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	close(chunks)
	errs := make(chan error, 1)
	errs <- err
	close(errs)
	return chunks, errs
}
