// Package followup schedules wellness check-ins after crisis events. It
// tracks when each check is due, sends the check-in message, and escalates
// high-risk follow-ups the user never responds to.
package followup

import (
	"strings"
	"time"
)

// CheckInWindow defines when a user should be checked on after a crisis
// assessment of a given risk level.
type CheckInWindow struct {
	RiskLevel string
	After     time.Duration
	// Escalates indicates an unanswered check-in is raised to the on-call
	// team instead of quietly expiring.
	Escalates bool
}

// DefaultCheckInWindows returns the standard check-in intervals by risk level.
// Low-risk assessments get no scheduled follow-up.
func DefaultCheckInWindows() []CheckInWindow {
	return []CheckInWindow{
		{RiskLevel: "critical", After: 24 * time.Hour, Escalates: true},
		{RiskLevel: "high", After: 24 * time.Hour, Escalates: true},
		{RiskLevel: "medium", After: 48 * time.Hour, Escalates: false},
	}
}

// checkInWindows is the lookup map built from defaults. Keys are normalized.
var checkInWindows map[string]CheckInWindow

func init() {
	checkInWindows = make(map[string]CheckInWindow)
	for _, w := range DefaultCheckInWindows() {
		checkInWindows[w.RiskLevel] = w
	}
}

// normalizeLevel lowercases and trims a risk level for lookup.
func normalizeLevel(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}

// LookupWindow finds the check-in window for a risk level.
// Returns the window and true if found, zero value and false otherwise.
func LookupWindow(level string) (CheckInWindow, bool) {
	w, ok := checkInWindows[normalizeLevel(level)]
	return w, ok
}

// CheckInAfter calculates when the follow-up check is due for a risk level.
func CheckInAfter(level string, from time.Time) (time.Time, bool) {
	w, ok := LookupWindow(level)
	if !ok {
		return time.Time{}, false
	}
	return from.Add(w.After), true
}
