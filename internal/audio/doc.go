// Package audio handles PCM sample conversion, WAV encoding/decoding, and
// fixed-size chunking of synthesized waveforms for streaming.
package audio
