package audio

import "testing"

func TestChunkerSplit(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		dataLen   int
		wantLens  []int
	}{
		{
			name:      "exact multiple",
			chunkSize: 4,
			dataLen:   12,
			wantLens:  []int{4, 4, 4},
		},
		{
			name:      "final chunk short",
			chunkSize: 4,
			dataLen:   10,
			wantLens:  []int{4, 4, 2},
		},
		{
			name:      "single short chunk",
			chunkSize: 4096,
			dataLen:   100,
			wantLens:  []int{100},
		},
		{
			name:      "empty input",
			chunkSize: 4,
			dataLen:   0,
			wantLens:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.dataLen)
			for i := range data {
				data[i] = byte(i)
			}

			chunks := NewChunker(tt.chunkSize).Split(data)
			if len(chunks) != len(tt.wantLens) {
				t.Fatalf("chunk count = %d, want %d", len(chunks), len(tt.wantLens))
			}
			for i, want := range tt.wantLens {
				if len(chunks[i]) != want {
					t.Errorf("chunk %d length = %d, want %d", i, len(chunks[i]), want)
				}
			}

			// Order preserved: reassembly yields the input
			var total []byte
			for _, c := range chunks {
				total = append(total, c...)
			}
			for i := range data {
				if total[i] != data[i] {
					t.Fatalf("byte %d: got %d, want %d", i, total[i], data[i])
				}
			}
		})
	}
}

func TestChunkerDefaultSize(t *testing.T) {
	if got := NewChunker(0).Size(); got != 4096 {
		t.Errorf("default size = %d, want 4096", got)
	}
}
