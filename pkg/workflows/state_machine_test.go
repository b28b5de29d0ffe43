package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerificationStateMachine(t *testing.T) {
	sm := NewVerificationStateMachine()

	assert.Equal(t, "PENDING", sm.Initial())

	tests := []struct {
		from, to string
		want     bool
	}{
		{"PENDING", "APPROVED", true},
		{"PENDING", "REJECTED", true},
		{"APPROVED", "APPROVED", true},
		{"APPROVED", "REJECTED", true},
		{"REJECTED", "APPROVED", true},
		{"REJECTED", "PENDING", false},
		{"APPROVED", "PENDING", false},
		{"PENDING", "PENDING", false},
		{"UNKNOWN", "APPROVED", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sm.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, sm.IsTarget("APPROVED"))
	assert.False(t, sm.IsTarget("PENDING"))
	assert.ElementsMatch(t, []string{"APPROVED", "REJECTED"}, sm.GetAllowedTransitions("REJECTED"))
	assert.Empty(t, sm.GetAllowedTransitions("ARCHIVED"))
}

func TestGetAllowedTransitionsReturnsCopy(t *testing.T) {
	sm := NewVerificationStateMachine()
	got := sm.GetAllowedTransitions("PENDING")
	got[0] = "PENDING"
	assert.False(t, sm.CanTransition("PENDING", "PENDING"))
}
