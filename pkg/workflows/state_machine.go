package workflows

// StateMachine enforces status transitions against a fixed table
type StateMachine struct {
	initial            string
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an initial state and its transition table
func NewStateMachine(initial string, transitions map[string][]string) *StateMachine {
	table := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		table[from] = append([]string(nil), to...)
	}
	return &StateMachine{initial: initial, allowedTransitions: table}
}

// NewVerificationStateMachine returns the product verification lifecycle.
// Decided products may be re-decided; nothing returns to PENDING.
func NewVerificationStateMachine() *StateMachine {
	return NewStateMachine("PENDING", map[string][]string{
		"PENDING":  {"APPROVED", "REJECTED"},
		"APPROVED": {"APPROVED", "REJECTED"},
		"REJECTED": {"APPROVED", "REJECTED"},
	})
}

// Initial returns the state new records start in
func (sm *StateMachine) Initial() string {
	return sm.initial
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// IsTarget reports whether any state may transition into to
func (sm *StateMachine) IsTarget(to string) bool {
	for from := range sm.allowedTransitions {
		if sm.CanTransition(from, to) {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return append([]string(nil), allowed...)
}
