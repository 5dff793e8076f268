package pitch

import (
	"math"
	"testing"
)

func TestFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		note int
		want float64
	}{
		{69, 440.0},
		{81, 880.0},
		{57, 220.0},
		{60, 261.6255653005986},
		{0, 8.175798915643707},
		{127, 12543.853951415975},
	}

	for _, tt := range tests {
		got := Frequency(tt.note)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Frequency(%d) = %v, want %v", tt.note, got, tt.want)
		}
	}
}

func TestFrequencyAllNotes(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 127; n++ {
		want := 440 * math.Pow(2, float64(n-69)/12)
		if got := Frequency(n); math.Abs(got-want) > 1e-9*want {
			t.Errorf("Frequency(%d) = %v, want %v", n, got, want)
		}
		if n > 0 && Frequency(n) <= Frequency(n-1) {
			t.Errorf("Frequency(%d) not above Frequency(%d)", n, n-1)
		}
	}
}

func TestFrequencyOutOfRange(t *testing.T) {
	t.Parallel()

	for _, n := range []int{-12, 128, 200} {
		f := Frequency(n)
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			t.Errorf("Frequency(%d) = %v, want finite positive", n, f)
		}
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		60:  "C4",
		69:  "A4",
		61:  "C#4",
		0:   "C-1",
		127: "G9",
		40:  "E2",
		-3:  "?-3",
	}
	for note, want := range tests {
		if got := Name(note); got != want {
			t.Errorf("Name(%d) = %q, want %q", note, got, want)
		}
	}
}
