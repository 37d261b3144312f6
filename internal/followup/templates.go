package followup

import "time"

// CheckInMessage generates the wellness check-in sent when a follow-up is due.
func CheckInMessage(f *FollowUp) string {
	switch normalizeLevel(f.RiskLevel) {
	case "critical":
		return "Hi, we're checking in with you after a really hard moment. " +
			"How are you feeling right now? There's no wrong answer, and someone from our care team reads every reply. " +
			"If things feel heavy again, support is one message away."
	case "high":
		return "Hi, we wanted to check in after yesterday. How are you doing today? " +
			"Whatever the answer is, it helps us support you better. You can reply here anytime."
	default:
		return "Hi, just checking in. How have the last couple of days felt? " +
			"A quick reply helps us keep an eye on how you're doing. 💙"
	}
}

// CompletionResponse returns the acknowledgment sent when a user responds
// to a check-in.
func CompletionResponse() string {
	return "Thank you for checking in with us. We've let your care team know you're engaged. " +
		"Keep reaching out whenever you need to."
}

// overdueBy reports how far past due a sent check-in is, rounded for logs.
func overdueBy(f *FollowUp, asOf time.Time) time.Duration {
	d := asOf.Sub(f.DueAt)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Minute)
}
