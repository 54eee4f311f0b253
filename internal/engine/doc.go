// Package engine defines the contract to the external speech-synthesis
// backend and its HTTP client implementation. The backend is consumed
// through a single capability: given text plus voice parameters, produce
// either a full PCM take or a lazy sequence of fixed-size audio chunks.
// Engine failures surface as SynthesisError and never tear sessions down.
package engine
