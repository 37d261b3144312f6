package events

import "testing"

func TestCrisisEventTypes(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"assessment", AssessmentCreatedV1{}.EventType(), "crisis.assessment.created.v1"},
		{"intervention", InterventionTriggeredV1{}.EventType(), "crisis.intervention.triggered.v1"},
		{"professional", ProfessionalNotifiedV1{}.EventType(), "crisis.professional.notified.v1"},
		{"emergency", EmergencyEscalatedV1{}.EventType(), "crisis.emergency.escalated.v1"},
		{"follow_up_scheduled", FollowUpScheduledV1{}.EventType(), "crisis.follow_up.scheduled.v1"},
		{"follow_up_due", FollowUpDueV1{}.EventType(), "crisis.follow_up.due.v1"},
		{"resolved", EventResolvedV1{}.EventType(), "crisis.event.resolved.v1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s event type mismatch: got %s want %s", tt.name, tt.got, tt.want)
		}
	}
}
