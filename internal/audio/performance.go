package audio

import (
	"music-tutor/internal/models"
)

// AnalyzePerformance turns a recording into the analysis shown after practice.
// Silent or too short input yields the neutral result with tempo 120.
func AnalyzePerformance(instrument models.Instrument, level models.Level, samples []float32, sampleRate int) models.MusicAnalysis {
	result := models.MusicAnalysis{
		Rhythm:      models.RhythmAnalysis{Tempo: defaultTempo, Suggestions: []string{}},
		Harmony:     models.HarmonyAnalysis{ChordProgression: []string{}, Suggestions: []string{}},
		Performance: models.PerformanceAnalysis{Feedback: []string{}, Improvements: []string{}},
	}

	notes := Transcribe(samples, sampleRate)
	if len(notes) == 0 {
		result.Performance.Improvements = append(result.Performance.Improvements, "Ses algılanamadı, mikrofona daha yakın çalmayı deneyin")
		return result
	}

	accuracy := RhythmAccuracy(notes)
	result.Rhythm.Tempo = EstimateTempo(notes)
	result.Rhythm.Accuracy = accuracy

	if instrument != models.InstrumentDrums {
		result.Harmony.KeySignature = DetectKey(notes)
		result.Harmony.ChordProgression = distinctNames(notes, 4)
	}

	result.Performance.Score = score(accuracy, level)
	switch {
	case accuracy >= 85:
		result.Performance.Feedback = append(result.Performance.Feedback, "Ritim doğruluğu iyi")
	case accuracy >= 60:
		result.Performance.Feedback = append(result.Performance.Feedback, "Ritim genel olarak oturuyor")
		result.Rhythm.Suggestions = append(result.Rhythm.Suggestions, "Metronom ile çalışmayı deneyin")
	default:
		result.Rhythm.Suggestions = append(result.Rhythm.Suggestions, "Metronom ile çalışmayı deneyin", "Tempoyu düşürüp yavaş başlayın")
		result.Performance.Improvements = append(result.Performance.Improvements, "Notalar arasındaki süreyi eşitlemeye çalışın")
	}

	switch instrument {
	case models.InstrumentGuitar:
		result.Harmony.Suggestions = append(result.Harmony.Suggestions, "Akor geçişlerini daha temiz yapın")
		result.Performance.Improvements = append(result.Performance.Improvements, "Akor geçişlerini yavaşça pratik edin")
	case models.InstrumentPiano:
		result.Harmony.Suggestions = append(result.Harmony.Suggestions, "İki elin dengesine dikkat edin")
	case models.InstrumentDrums:
		result.Rhythm.Suggestions = append(result.Rhythm.Suggestions, "Vuruş dinamiklerini eşit tutun")
	}
	return result
}

// score weights accuracy more leniently for beginners.
func score(accuracy float64, level models.Level) float64 {
	bonus := 0.0
	switch level {
	case models.LevelBeginner:
		bonus = 10
	case models.LevelIntermediate:
		bonus = 5
	}
	return min(100, accuracy+bonus)
}

func distinctNames(notes []Note, limit int) []string {
	seen := map[string]bool{}
	names := []string{}
	for _, n := range notes {
		name := n.Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if len(names) == limit {
			break
		}
	}
	return names
}
