package audio

import (
	"math"
	"sort"
)

const (
	frameSize       = 2048
	hopSize         = 1024
	voicedRMS       = 0.01
	minNoteFrames   = 3
	minFrequency    = 30.0
	maxFrequency    = 4200.0
	expectedSpacing = 0.25 // seconds between note onsets
	defaultTempo    = 120.0
)

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a transcribed note; Pitch is a MIDI number, times are in seconds.
type Note struct {
	Pitch     int     `json:"pitch"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Velocity  float64 `json:"velocity"`
}

func (n Note) Name() string {
	return pitchClasses[((n.Pitch%12)+12)%12]
}

// Transcribe splits samples into frames, estimates a pitch for each voiced
// frame from its rising zero crossings, and joins runs of equal pitch into
// notes. Runs shorter than three frames are discarded as transitions.
func Transcribe(samples []float32, sampleRate int) []Note {
	if sampleRate <= 0 || len(samples) < frameSize {
		return nil
	}

	type frame struct {
		pitch int
		rms   float64
	}
	var frames []frame
	for start := 0; start+frameSize <= len(samples); start += hopSize {
		window := samples[start : start+frameSize]
		f := frame{pitch: -1, rms: RMS(window)}
		if f.rms >= voicedRMS {
			if freq := zeroCrossingFrequency(window, sampleRate); freq >= minFrequency && freq <= maxFrequency {
				f.pitch = int(math.Round(69 + 12*math.Log2(freq/440)))
			}
		}
		frames = append(frames, f)
	}

	hop := float64(hopSize) / float64(sampleRate)
	var notes []Note
	for i := 0; i < len(frames); {
		j := i
		var energy float64
		for j < len(frames) && frames[j].pitch == frames[i].pitch {
			energy += frames[j].rms
			j++
		}
		if frames[i].pitch >= 0 && j-i >= minNoteFrames {
			notes = append(notes, Note{
				Pitch:     frames[i].pitch,
				StartTime: float64(i) * hop,
				EndTime:   float64(j-1)*hop + float64(frameSize)/float64(sampleRate),
				Velocity:  math.Min(1, energy/float64(j-i)*math.Sqrt2),
			})
		}
		i = j
	}
	return notes
}

// zeroCrossingFrequency measures the mean period between rising zero
// crossings, interpolated between samples.
func zeroCrossingFrequency(window []float32, sampleRate int) float64 {
	first, last := -1.0, -1.0
	crossings := 0
	for i := 1; i < len(window); i++ {
		a, b := float64(window[i-1]), float64(window[i])
		if a < 0 && b >= 0 {
			t := float64(i-1) + a/(a-b)
			if first < 0 {
				first = t
			}
			last = t
			crossings++
		}
	}
	if crossings < 2 || last <= first {
		return 0
	}
	return float64(crossings-1) * float64(sampleRate) / (last - first)
}

// DetectKey returns the most frequent pitch class; ties go to the lower class.
func DetectKey(notes []Note) string {
	if len(notes) == 0 {
		return ""
	}
	var histogram [12]int
	for _, n := range notes {
		histogram[((n.Pitch%12)+12)%12]++
	}
	best := 0
	for i := 1; i < 12; i++ {
		if histogram[i] > histogram[best] {
			best = i
		}
	}
	return pitchClasses[best]
}

// RhythmAccuracy scores onset spacing against a steady quarter-second grid:
// 100 minus the summed deviation in hundredths of a second, floored at zero.
func RhythmAccuracy(notes []Note) float64 {
	if len(notes) < 2 {
		return 100
	}
	var deviation float64
	for i := 1; i < len(notes); i++ {
		deviation += math.Abs(notes[i].StartTime - notes[i-1].StartTime - expectedSpacing)
	}
	return math.Round(math.Max(0, 100-deviation*100))
}

// EstimateTempo derives beats per minute from the median onset interval.
func EstimateTempo(notes []Note) float64 {
	if len(notes) < 2 {
		return defaultTempo
	}
	intervals := make([]float64, 0, len(notes)-1)
	for i := 1; i < len(notes); i++ {
		if d := notes[i].StartTime - notes[i-1].StartTime; d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return defaultTempo
	}
	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	return math.Round(math.Min(240, math.Max(40, 60/median)))
}
