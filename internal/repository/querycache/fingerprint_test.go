package querycache

import "testing"

func TestFingerprintFormat(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
		topK   int
		want   string
	}{
		{
			name:   "two components",
			vector: []float32{0.1, 0.2},
			topK:   5,
			want:   "0.1000,0.2000:5",
		},
		{
			name:   "negative and zero",
			vector: []float32{-0.5, 0},
			topK:   3,
			want:   "-0.5000,0.0000:3",
		},
		{
			name:   "empty vector keeps the suffix",
			vector: nil,
			topK:   7,
			want:   ":7",
		},
		{
			name:   "single component",
			vector: []float32{1},
			topK:   1,
			want:   "1.0000:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.vector, tt.topK); got != tt.want {
				t.Errorf("Fingerprint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprintTruncatesTo16Components(t *testing.T) {
	a := make([]float32, 32)
	b := make([]float32, 32)
	for i := range a {
		a[i] = float32(i)
		b[i] = float32(i)
	}
	b[20] = 99 // differs only beyond the fingerprint window

	if Fingerprint(a, 5) != Fingerprint(b, 5) {
		t.Error("vectors differing beyond component 16 must share a fingerprint")
	}

	b[3] = 99 // differs inside the window
	if Fingerprint(a, 5) == Fingerprint(b, 5) {
		t.Error("vectors differing inside the window must not share a fingerprint")
	}
}

func TestFingerprintPrecisionWindow(t *testing.T) {
	// Jitter below 4 decimal digits rounds to the same key.
	a := []float32{0.12341}
	b := []float32{0.12339}
	if Fingerprint(a, 5) != Fingerprint(b, 5) {
		t.Errorf("sub-precision jitter must collide: %q vs %q",
			Fingerprint(a, 5), Fingerprint(b, 5))
	}

	c := []float32{0.1235}
	if Fingerprint(a, 5) == Fingerprint(c, 5) {
		t.Error("differences above the precision window must produce distinct keys")
	}
}

func TestFingerprintTopKDistinguishes(t *testing.T) {
	v := []float32{0.1, 0.2}
	if Fingerprint(v, 5) == Fingerprint(v, 10) {
		t.Error("same vector with different topK must produce distinct keys")
	}
}
