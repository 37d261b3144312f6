package followup

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckInMessage(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		contains []string
	}{
		{
			name:     "critical",
			level:    "critical",
			contains: []string{"checking in", "care team", "support"},
		},
		{
			name:     "high",
			level:    "high",
			contains: []string{"check in", "How are you doing"},
		},
		{
			name:     "medium",
			level:    "medium",
			contains: []string{"checking in", "last couple of days"},
		},
		{
			name:     "unknown level falls back to gentle tone",
			level:    "something-else",
			contains: []string{"checking in"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FollowUp{
				ID:        uuid.New(),
				UserID:    "user-1",
				RiskLevel: tt.level,
			}
			msg := CheckInMessage(f)
			for _, substr := range tt.contains {
				assert.True(t, strings.Contains(strings.ToLower(msg), strings.ToLower(substr)),
					"expected %q in message: %s", substr, msg)
			}
		})
	}
}

func TestCompletionResponse(t *testing.T) {
	msg := CompletionResponse()
	assert.Contains(t, msg, "Thank you")
	assert.Contains(t, msg, "care team")
}

func TestOverdueBy(t *testing.T) {
	due := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	f := &FollowUp{DueAt: due}

	assert.Equal(t, 4*time.Hour+12*time.Minute, overdueBy(f, due.Add(4*time.Hour+12*time.Minute+20*time.Second)))
	assert.Equal(t, time.Duration(0), overdueBy(f, due.Add(-time.Hour)))
}
