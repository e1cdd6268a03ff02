package models

type MusicAnalysis struct {
	Rhythm      RhythmAnalysis      `json:"rhythm"`
	Harmony     HarmonyAnalysis     `json:"harmony"`
	Performance PerformanceAnalysis `json:"performance"`
}

type RhythmAnalysis struct {
	Tempo       float64  `json:"tempo"`
	Accuracy    float64  `json:"accuracy"`
	Suggestions []string `json:"suggestions"`
}

type HarmonyAnalysis struct {
	ChordProgression []string `json:"chordProgression"`
	KeySignature     string   `json:"keySignature"`
	Suggestions      []string `json:"suggestions"`
}

type PerformanceAnalysis struct {
	Score        float64  `json:"score"`
	Feedback     []string `json:"feedback"`
	Improvements []string `json:"improvements"`
}
