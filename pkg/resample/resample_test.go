package resample

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"npsanalyzer/internal/models"
	"npsanalyzer/pkg/config"
)

func TestGridPoints(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
		want int
	}{
		{"integral steps", Grid{Start: 0, End: 1, Step: 0.1}, 11},
		{"default grid", Grid{Start: 0, End: 20, Step: 0.01}, 2001},
		{"end between steps", Grid{Start: 0, End: 1, Step: 0.3}, 4},
		{"single point", Grid{Start: 2, End: 2, Step: 0.5}, 1},
		{"inverted", Grid{Start: 2, End: 1, Step: 0.5}, 0},
		{"zero step", Grid{Start: 0, End: 1, Step: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := tt.grid.Points()
			if len(points) != tt.want {
				t.Fatalf("Expected %d points, got %d", tt.want, len(points))
			}
			for i, f := range points {
				if f < tt.grid.Start || f > tt.grid.End {
					t.Errorf("Point %d = %g outside [%g, %g]", i, f, tt.grid.Start, tt.grid.End)
				}
				if i > 0 && f <= points[i-1] {
					t.Errorf("Points not increasing at %d", i)
				}
				if want := tt.grid.Start + float64(i)*tt.grid.Step; math.Abs(f-want) > 1e-9 {
					t.Errorf("Point %d = %g, want %g", i, f, want)
				}
			}
		})
	}
}

func TestTargetGridUsesAnalysis(t *testing.T) {
	a := config.DefaultAnalysis()
	a.StartFreq, a.EndFreq, a.Step = 1, 2, 0.25

	got := TargetGrid(a)
	if !floats.EqualApprox(got, []float64{1, 1.25, 1.5, 1.75, 2}, 1e-12) {
		t.Errorf("TargetGrid = %v", got)
	}
}

func TestResampleInterpolates(t *testing.T) {
	src := models.Profile{
		Values:      []float64{0, 4, 2, 6},
		Frequencies: []float64{0, 1, 2, 3},
	}

	got, err := Resample(src, Grid{Start: 0, End: 5, Step: 0.5}.Points())
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	wantFreqs := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}
	wantValues := []float64{0, 2, 4, 3, 2, 4, 6}
	if !floats.EqualApprox(got.Frequencies, wantFreqs, 1e-12) {
		t.Errorf("Frequencies = %v, want %v", got.Frequencies, wantFreqs)
	}
	if !floats.EqualApprox(got.Values, wantValues, 1e-12) {
		t.Errorf("Values = %v, want %v", got.Values, wantValues)
	}
}

func TestResampleStopsAtFirstUnbracketedFrequency(t *testing.T) {
	src := models.Profile{
		Values:      []float64{1, 2},
		Frequencies: []float64{0.5, 1},
	}

	got, err := Resample(src, []float64{0, 0.5, 1})
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Expected an empty prefix when the first target lies below the source, got %v", got)
	}
}

func TestResampleIsPrefixOfTarget(t *testing.T) {
	src := models.Profile{
		Values:      []float64{3, 2, 1, 0.5, 0.25},
		Frequencies: []float64{0, 0.7, 1.4, 2.1, 2.8},
	}
	target := Grid{Start: 0, End: 20, Step: 0.01}.Points()

	got, err := Resample(src, target)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	if got.Len() == 0 || got.Len() > len(target) {
		t.Fatalf("Unexpected output length %d", got.Len())
	}
	for i, f := range got.Frequencies {
		if f != target[i] {
			t.Fatalf("Output frequency %d = %g is not the target grid value %g", i, f, target[i])
		}
	}
	if last := got.Frequencies[got.Len()-1]; last > 2.8 {
		t.Errorf("Output extrapolated to %g beyond the source range", last)
	}
	if got.Len() < len(target) && target[got.Len()] <= 2.8 {
		t.Errorf("Output stopped early at %g", target[got.Len()])
	}
}

func TestResampleClampsNegativeValues(t *testing.T) {
	src := models.Profile{
		Values:      []float64{1, -3},
		Frequencies: []float64{0, 1},
	}

	got, err := Resample(src, []float64{0, 0.5, 1})
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	for i, v := range got.Values {
		if v < 0 {
			t.Errorf("Negative value %g at %d", v, i)
		}
	}
	if got.Values[0] != 1 {
		t.Errorf("Exact hit should keep the source value, got %g", got.Values[0])
	}
}

func TestResampleSingleSample(t *testing.T) {
	src := models.Profile{Values: []float64{7}, Frequencies: []float64{0}}

	got, err := Resample(src, []float64{0, 0.1})
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if got.Len() != 1 || got.Values[0] != 7 {
		t.Errorf("Expected [7], got %v", got.Values)
	}
}

func TestResampleRejectsMalformedProfile(t *testing.T) {
	_, err := Resample(models.Profile{Values: []float64{1, 2}, Frequencies: []float64{0}}, []float64{0})
	if err == nil {
		t.Error("Expected an error for mismatched values and frequencies")
	}
}

func TestTruncate(t *testing.T) {
	p := models.Profile{
		Values:      []float64{5, 10, 4, 0.05, 3, 2},
		Frequencies: []float64{0, 1, 2, 3, 4, 5},
	}

	got := Truncate(p, 1)

	if !floats.Equal(got.Values, []float64{5, 10, 4}) {
		t.Errorf("Values = %v, want [5 10 4]", got.Values)
	}
	if !floats.Equal(got.Frequencies, []float64{0, 1, 2}) {
		t.Errorf("Frequencies = %v, want [0 1 2]", got.Frequencies)
	}
}

func TestTruncateProperties(t *testing.T) {
	p := models.Profile{
		Values:      []float64{1, 8, 6, 3, 1, 0.5, 0.2, 0.6},
		Frequencies: []float64{0, 1, 2, 3, 4, 5, 6, 7},
	}

	for _, pct := range []float64{0, 1, 5, 10, 50, 99} {
		got := Truncate(p, pct)
		threshold := pct / 100 * floats.Max(p.Values)

		if got.Len() > p.Len() {
			t.Errorf("T=%g: truncated length %d exceeds original %d", pct, got.Len(), p.Len())
		}
		for i, v := range got.Values {
			if !(v > threshold) {
				t.Errorf("T=%g: retained value %g at %d is not above %g", pct, v, i, threshold)
			}
		}
		if got.Len() < p.Len() && p.Values[got.Len()] > threshold {
			t.Errorf("T=%g: first dropped value %g passes the threshold", pct, p.Values[got.Len()])
		}
		if len(got.Frequencies) != got.Len() {
			t.Errorf("T=%g: frequency prefix length %d differs from %d", pct, len(got.Frequencies), got.Len())
		}
	}
}

func TestTruncateEmpty(t *testing.T) {
	if got := Truncate(models.Profile{}, 1); got.Len() != 0 {
		t.Errorf("Expected empty profile, got %v", got)
	}
}
