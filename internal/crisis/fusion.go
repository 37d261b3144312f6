package crisis

import (
	"fmt"
	"strings"

	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

// FusionEngine combines analyzer outputs into one overall risk decision.
// Fuse is a pure function of its inputs: no I/O, no hidden state, same
// inputs always yield the same decision.
type FusionEngine struct {
	cal    Calibration
	logger *logging.Logger
}

func NewFusionEngine(cal Calibration, logger *logging.Logger) *FusionEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &FusionEngine{cal: cal, logger: logger}
}

// Fuse computes the weighted risk score across analyzers and applies the
// escalation override: a single critical signal above the escalation
// confidence forces the overall level to critical, no matter how the other
// analyzers vote. Missing input defaults to a conservative medium because a
// silent low on no evidence is the unacceptable failure direction.
func (f *FusionEngine) Fuse(assessments []Assessment) OverallAssessment {
	if len(assessments) == 0 {
		return f.conservativeDefault("no analyzer signals available")
	}

	var weightedSum, weightTotal, confidenceSum float64
	var escalatedBy string
	var escalatedConfidence float64
	var triggers []string

	for _, a := range assessments {
		weight := f.cal.weightFor(a.Source)
		weightedSum += float64(a.Level.Severity()) * weight * a.Confidence
		weightTotal += weight
		confidenceSum += a.Confidence
		triggers = append(triggers, a.Triggers...)

		if a.Level == RiskCritical && a.Confidence > f.cal.EscalationConfidence && a.Confidence > escalatedConfidence {
			escalatedBy = a.Source
			escalatedConfidence = a.Confidence
		}
	}

	score := weightedSum / weightTotal
	level := f.levelForScore(score)
	confidence := confidenceSum / float64(len(assessments))

	escalated := escalatedBy != ""
	if escalated {
		level = RiskCritical
		if escalatedConfidence > confidence {
			confidence = escalatedConfidence
		}
	}
	confidence = clampConfidence(confidence, f.cal.MaxConfidence)

	triggers = dedupeStrings(triggers)

	reasoning := fmt.Sprintf("weighted score %.2f from %d signals", score, len(assessments))
	if escalated {
		reasoning += fmt.Sprintf("; escalated by confident critical signal from %s", escalatedBy)
		f.logger.Warn("fusion escalation override",
			"source", escalatedBy,
			"confidence", escalatedConfidence,
			"weighted_score", score,
		)
	}

	return OverallAssessment{
		Assessment: Assessment{
			Level:      level,
			Confidence: confidence,
			Triggers:   triggers,
			Source:     SourceFusion,
			Reasoning:  reasoning,
		},
		Actions:        f.actionsFor(level, triggers),
		UrgencySeconds: f.urgencyFor(level),
		Escalated:      escalated,
	}
}

// conservativeDefault is the safe assessment used when fusion has nothing to
// work with.
func (f *FusionEngine) conservativeDefault(reason string) OverallAssessment {
	level := RiskMedium
	return OverallAssessment{
		Assessment: Assessment{
			Level:      level,
			Confidence: 0.1,
			Triggers:   []string{TriggerAnalysisError},
			Source:     SourceFusion,
			Reasoning:  reason,
		},
		Actions:        f.actionsFor(level, nil),
		UrgencySeconds: f.urgencyFor(level),
	}
}

func (f *FusionEngine) levelForScore(score float64) RiskLevel {
	switch {
	case score >= f.cal.CriticalThreshold:
		return RiskCritical
	case score >= f.cal.HighThreshold:
		return RiskHigh
	case score >= f.cal.MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (f *FusionEngine) urgencyFor(level RiskLevel) int {
	if seconds, ok := f.cal.UrgencySeconds[level]; ok {
		return seconds
	}
	return 0
}

// actionsFor builds the recommended-action list: the fixed per-level table
// plus trigger-derived additions.
func (f *FusionEngine) actionsFor(level RiskLevel, triggers []string) []string {
	var actions []string
	switch level {
	case RiskCritical:
		actions = []string{ActionImmediateIntervention, ActionEmergencyContact, ActionCrisisHotline, ActionSafetyPlan}
	case RiskHigh:
		actions = []string{ActionProfessionalAlert, ActionCrisisResources, ActionSafetyCheck, ActionFollowUp24h}
	case RiskMedium:
		actions = []string{ActionProvideResources, ActionMoodTracking, ActionSelfCareSuggestions, ActionFollowUp48h}
	default:
		actions = []string{ActionWellnessTips, ActionRoutineCheckIn}
	}

	for _, trigger := range triggers {
		if strings.Contains(trigger, "isolation") {
			actions = append(actions, ActionSocialConnectionSupport)
		}
		if strings.Contains(trigger, "sleep") {
			actions = append(actions, ActionSleepHygieneGuidance)
		}
	}

	return dedupeStrings(actions)
}
