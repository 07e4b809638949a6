package skillrt

import "testing"

func TestBoundedBufferCapsWrites(t *testing.T) {
	var buf boundedBuffer
	big := make([]byte, pipeCapacity+100)
	for i := range big {
		big[i] = 'x'
	}
	_, _ = buf.Write(big)
	if len(buf.data) != pipeCapacity {
		t.Fatalf("expected buffer capped at %d bytes, got %d", pipeCapacity, len(buf.data))
	}
}

func TestBoundedBufferIgnoresWritesOnceFull(t *testing.T) {
	var buf boundedBuffer
	_, _ = buf.Write(make([]byte, pipeCapacity))
	n, err := buf.Write([]byte("more"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected Write to report 4 bytes consumed even though dropped, got %d", n)
	}
	if len(buf.data) != pipeCapacity {
		t.Fatalf("expected buffer to remain capped, got %d", len(buf.data))
	}
}
