package audio

// Chunker splits an encoded waveform into fixed byte-size windows for
// streaming. The final window is emitted short rather than zero-padded;
// padding would add audible trailing silence and the end-of-stream marker
// already delimits the stream.
type Chunker struct {
	size int
}

// NewChunker creates a chunker producing windows of at most size bytes
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = 4096
	}
	return &Chunker{size: size}
}

// Size returns the configured window size in bytes
func (c *Chunker) Size() int { return c.size }

// Split partitions data into consecutive windows in production order.
// Every window references the backing array of data; callers that retain
// windows past the lifetime of data must copy them.
func (c *Chunker) Split(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(data)+c.size-1)/c.size)
	for start := 0; start < len(data); start += c.size {
		end := start + c.size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}

	return chunks
}
