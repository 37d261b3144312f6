package crisis

import "time"

// KeywordTier is one lexical severity band: a disjoint phrase list with its
// confidence base and cap.
type KeywordTier struct {
	Level   RiskLevel
	Phrases []string
	Base    float64
	Cap     float64
}

// Calibration collects every tunable constant in the pipeline. The defaults
// are the calibrated production values; deployments override individual
// fields from config rather than editing code.
type Calibration struct {
	// Lexical analyzer. Tiers are checked in descending severity; the first
	// tier with a match wins. Confidence = min(cap, base + increment*matches).
	KeywordTiers          []KeywordTier
	KeywordMatchIncrement float64

	// Sentiment analyzer.
	SentimentHighScore        float64 // below this → high
	SentimentMediumScore      float64 // below this → medium
	SentimentHighConfidence   float64
	SentimentMediumConfidence float64
	EmotionExtremeThreshold   float64 // fear or sadness above → ≥ high
	EmotionCombinedThreshold  float64 // anger and disgust above → ≥ medium
	CrisisHistoryFlagCount    int     // recent flags above this boost confidence
	CrisisHistoryBoost        float64

	// Behavioral analyzer.
	LowMoodAverage          float64
	CriticalMoodAverage     float64
	DecliningTrend          float64
	HighWeeklyFrequency     int
	PoorSleepAverage        float64
	RiskFactorBoost         float64
	BehavioralMaxConfidence float64

	// Fusion engine.
	SourceWeights       map[string]float64
	DefaultSourceWeight float64
	CriticalThreshold   float64
	HighThreshold       float64
	MediumThreshold     float64
	// EscalationConfidence is the central safety knob: a single analyzer
	// reporting critical above this confidence forces the fused result to
	// critical regardless of the weighted average.
	EscalationConfidence float64
	MaxConfidence        float64
	// UrgencySeconds maps each level to its intervention deadline.
	UrgencySeconds map[RiskLevel]int

	// Orchestration.
	NotifyConfidence       float64 // professionals notified above this even below critical
	ImminentDangerTriggers []string
	FollowUpInterval       time.Duration
}

// DefaultCalibration returns the shipped calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		KeywordTiers:          DefaultKeywordTiers(),
		KeywordMatchIncrement: 0.05,

		SentimentHighScore:        -0.8,
		SentimentMediumScore:      -0.6,
		SentimentHighConfidence:   0.8,
		SentimentMediumConfidence: 0.7,
		EmotionExtremeThreshold:   0.8,
		EmotionCombinedThreshold:  0.7,
		CrisisHistoryFlagCount:    2,
		CrisisHistoryBoost:        0.1,

		LowMoodAverage:          4.0,
		CriticalMoodAverage:     3.0,
		DecliningTrend:          -0.5,
		HighWeeklyFrequency:     10,
		PoorSleepAverage:        3.0,
		RiskFactorBoost:         0.1,
		BehavioralMaxConfidence: 0.9,

		SourceWeights: map[string]float64{
			SourceKeyword:    0.4,
			SourceAI:         0.3,
			SourceSentiment:  0.2,
			SourceBehavioral: 0.1,
		},
		DefaultSourceWeight:  0.1,
		CriticalThreshold:    3.5,
		HighThreshold:        2.5,
		MediumThreshold:      1.5,
		EscalationConfidence: 0.85,
		MaxConfidence:        0.95,
		UrgencySeconds: map[RiskLevel]int{
			RiskCritical: 0,
			RiskHigh:     300,
			RiskMedium:   1800,
			RiskLow:      3600,
		},

		NotifyConfidence: 0.9,
		ImminentDangerTriggers: []string{
			"have a plan",
			"wrote a note",
			"saying goodbye forever",
		},
		FollowUpInterval: 24 * time.Hour,
	}
}

// DefaultKeywordTiers returns the shipped lexical tiers. The three tiers are
// disjoint; every imminent-danger phrase also appears in the critical tier so
// a match surfaces as a trigger the orchestrator can act on.
func DefaultKeywordTiers() []KeywordTier {
	return []KeywordTier{
		{
			Level: RiskCritical,
			Base:  0.70,
			Cap:   0.95,
			Phrases: []string{
				"suicide",
				"kill myself",
				"end my life",
				"take my own life",
				"want to die",
				"end it all",
				"better off dead",
				"no reason to live",
				"have a plan",
				"wrote a note",
				"saying goodbye forever",
			},
		},
		{
			Level: RiskHigh,
			Base:  0.60,
			Cap:   0.85,
			Phrases: []string{
				"self harm",
				"self-harm",
				"hurt myself",
				"harm myself",
				"cutting myself",
				"hopeless",
				"no way out",
				"can't go on",
				"cant go on",
				"worthless",
			},
		},
		{
			Level: RiskMedium,
			Base:  0.40,
			Cap:   0.75,
			Phrases: []string{
				"depressed",
				"overwhelmed",
				"can't cope",
				"cant cope",
				"panic attack",
				"so alone",
				"empty inside",
				"falling apart",
				"exhausted all the time",
			},
		},
	}
}

// weightFor returns the fusion weight for an analyzer source.
func (c Calibration) weightFor(source string) float64 {
	if w, ok := c.SourceWeights[source]; ok {
		return w
	}
	return c.DefaultSourceWeight
}
