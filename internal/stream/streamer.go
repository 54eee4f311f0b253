package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sonny-Inkai/TONEV-SERVER/internal/engine"
	"github.com/Sonny-Inkai/TONEV-SERVER/internal/protocol"
)

// errTransportClosed marks a send failure on a connection that is going
// away; it ends the stream without a client-visible error frame.
var errTransportClosed = errors.New("transport closed")

// streamAudio drives the synthesis engine and forwards produced chunks to
// the transport in strict production order. Each send is preceded by a
// liveness check so a session entering Closing stops the stream early
// without error. On successful exhaustion exactly one end frame follows
// the last chunk.
func (s *Session) streamAudio(ctx context.Context, req *protocol.SynthesizeRequest) error {
	chunks, errs := s.synth.SynthesizeStream(ctx, engine.Request{
		Text:     req.Text,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Language: s.manager.cfg.Language,
	}, s.manager.cfg.ChunkSize)

	for chunk := range chunks {
		if s.State() >= StateClosing {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.transport.WriteAudio(chunk); err != nil {
			s.Close("transport failure")
			return fmt.Errorf("%w: %v", errTransportClosed, err)
		}
		s.manager.metrics.RecordChunkSent(len(chunk))
	}

	if err := <-errs; err != nil {
		return err
	}

	if s.State() >= StateClosing {
		return nil
	}

	if err := s.transport.WriteControl(protocol.End()); err != nil {
		s.Close("transport failure")
		return fmt.Errorf("%w: %v", errTransportClosed, err)
	}

	return nil
}
