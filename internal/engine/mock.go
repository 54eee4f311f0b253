package engine

import (
	"context"
	"time"
)

// Mock is a deterministic in-process synthesizer for tests and offline
// development. It renders a sawtooth waveform whose length scales with the
// text length and is divided by the requested speed.
type Mock struct {
	SampleRate int
	// SamplesPerChar controls the take length; defaults to 160.
	SamplesPerChar int
	// Delay is an optional artificial generation latency per request.
	Delay time.Duration
	// Err, when set, makes every request fail with a SynthesisError.
	Err error
}

// NewMock creates a mock synthesizer at the given sample rate
func NewMock(sampleRate int) *Mock {
	return &Mock{SampleRate: sampleRate}
}

// Synthesize renders a deterministic waveform for the request
func (m *Mock) Synthesize(ctx context.Context, req Request) (*Take, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, &SynthesisError{Detail: "mock engine failure", Err: m.Err}
	}

	perChar := m.SamplesPerChar
	if perChar <= 0 {
		perChar = 160
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	n := int(float64(len(req.Text)*perChar) / speed)
	if n < 1 {
		n = 1
	}

	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16((i % 200) * 100)
	}

	return &Take{Samples: samples, SampleRate: m.SampleRate}, nil
}

// SynthesizeStream renders the take and streams it in fixed-size chunks
func (m *Mock) SynthesizeStream(ctx context.Context, req Request, chunkSize int) (<-chan []byte, <-chan error) {
	take, err := m.Synthesize(ctx, req)
	if err != nil {
		return failStream(err)
	}
	return streamTake(ctx, take, chunkSize)
}
