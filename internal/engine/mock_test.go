package engine

import (
	"context"
	"errors"
	"testing"
)

func TestMockSynthesizeDeterministic(t *testing.T) {
	m := NewMock(24000)

	a, err := m.Synthesize(context.Background(), Request{Text: "hello", Speed: 1.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.Synthesize(context.Background(), Request{Text: "hello", Speed: 1.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
}

func TestMockSpeedShortensTake(t *testing.T) {
	m := NewMock(24000)

	slow, _ := m.Synthesize(context.Background(), Request{Text: "hello", Speed: 1.0})
	fast, _ := m.Synthesize(context.Background(), Request{Text: "hello", Speed: 2.0})

	if len(fast.Samples) >= len(slow.Samples) {
		t.Errorf("faster speech should yield fewer samples: %d vs %d",
			len(fast.Samples), len(slow.Samples))
	}
}

func TestMockErrorPropagation(t *testing.T) {
	m := NewMock(24000)
	m.Err = errors.New("engine offline")

	if _, err := m.Synthesize(context.Background(), Request{Text: "hello"}); err == nil {
		t.Fatal("expected error")
	}

	chunks, errs := m.SynthesizeStream(context.Background(), Request{Text: "hello"}, 1024)
	for range chunks {
	}
	if err := <-errs; err == nil {
		t.Fatal("expected streaming error")
	}
}
