package audio

import "math"

const PeakThreshold = 0.5

// MeanAbs is the mean absolute amplitude, reported as "pitch" by the live analyzer.
func MeanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

// PeakCount counts strict local maxima above PeakThreshold.
func PeakCount(samples []float32) int {
	peaks := 0
	for i := 1; i < len(samples)-1; i++ {
		if samples[i] > PeakThreshold && samples[i] > samples[i-1] && samples[i] > samples[i+1] {
			peaks++
		}
	}
	return peaks
}

func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
