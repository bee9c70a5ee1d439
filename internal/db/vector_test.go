package db

import "testing"

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out := BytesToVector(VectorToBytes(in))

	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d != %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: %g != %g", i, in[i], out[i])
		}
	}
}

func TestBytesToVector_Misaligned(t *testing.T) {
	if v := BytesToVector("abc"); v != nil {
		t.Errorf("expected nil for misaligned input, got %v", v)
	}
}
