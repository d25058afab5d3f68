// Package peak locates the dominant peak of an NPS profile and measures the
// bandwidth around it.
package peak

import (
	"gonum.org/v1/gonum/floats"

	"npsanalyzer/internal/models"
)

const (
	// strongPeakRatio is the fraction of the global maximum a collected peak must reach
	strongPeakRatio = 0.1

	// bandwidthRatio is the fraction of the peak value that bounds the deviations
	bandwidthRatio = 0.6
)

// Peaks lists the local maxima of a profile in scan order
type Peaks struct {
	Values      []float64
	Indices     []int
	Frequencies []float64
}

// Len returns the number of collected peaks
func (p Peaks) Len() int { return len(p.Values) }

// Collect finds the local maxima of a profile in a single pass. A running maximum
// follows the profile while it does not decrease; the first decrease after a rise
// records the running maximum as a peak. On a flat run the last sample of the run
// is the peak index. A non-decreasing profile has no peaks.
func Collect(p models.Profile) Peaks {
	var (
		peaks    Peaks
		maxValue float64
		maxIndex int
		rising   = true
	)

	for i, v := range p.Values {
		switch {
		case v >= maxValue:
			maxValue = v
			maxIndex = i
			rising = true
		case rising:
			peaks.Values = append(peaks.Values, maxValue)
			peaks.Indices = append(peaks.Indices, maxIndex)
			peaks.Frequencies = append(peaks.Frequencies, p.Frequencies[maxIndex])
			rising = false
		default:
			maxValue = v
		}
	}
	return peaks
}

// Characterize returns the peak descriptor of a profile.
//
// The representative peak is the largest collected peak. The global maximum is used
// instead when no peak reaches 10% of it, or when every sample left of the peak
// already exceeds 60% of the peak value; only the right deviation is measured then.
// A profile without any peak reports startFreq as its peak frequency. An empty
// profile yields a zero peak at startFreq with both deviations undefined.
func Characterize(p models.Profile, startFreq float64) models.PeakDescriptor {
	desc := models.PeakDescriptor{
		PeakFrequency:  startFreq,
		LeftDeviation:  models.Undefined,
		RightDeviation: models.Undefined,
	}
	if p.Len() == 0 {
		return desc
	}

	values, freqs := p.Values, p.Frequencies
	globalIdx := floats.MaxIdx(values)

	idx := globalIdx
	rightOnly := true
	peaks := Collect(p)

	switch {
	case peaks.Len() == 0:
		desc.PeakValue = values[globalIdx]
	case floats.Max(peaks.Values) < strongPeakRatio*values[globalIdx]:
		desc.PeakValue = values[globalIdx]
		desc.PeakFrequency = freqs[globalIdx]
	default:
		desc.StrongPeak = true
		dominant := floats.MaxIdx(peaks.Values)
		idx = peaks.Indices[dominant]
		if hasLeftShoulder(values[:idx], peaks.Values[dominant]) {
			rightOnly = false
		} else {
			idx = globalIdx
		}
		desc.PeakValue = values[idx]
		desc.PeakFrequency = freqs[idx]
	}

	threshold := bandwidthRatio * desc.PeakValue
	for i := idx; i < len(values); i++ {
		if values[i] < threshold {
			desc.RightDeviation = models.DefinedDeviation(freqs[i] - desc.PeakFrequency)
			break
		}
	}

	if !rightOnly {
		for i := 0; i < idx; i++ {
			if values[i] > threshold {
				desc.LeftDeviation = models.DefinedDeviation(desc.PeakFrequency - freqs[i])
				break
			}
		}
	}

	return desc
}

// hasLeftShoulder reports whether some sample left of a peak lies at or below 60% of it
func hasLeftShoulder(left []float64, peakValue float64) bool {
	for _, v := range left {
		if v <= bandwidthRatio*peakValue {
			return true
		}
	}
	return false
}
