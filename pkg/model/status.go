package model

// transitions is the legal status graph. RESOLVIDO and IGNORADO are
// terminal: a closed alert is never mutated back, only superseded by a new
// ATIVO row.
var transitions = map[AlertStatus][]AlertStatus{
	StatusActive:       {StatusAcknowledged, StatusResolved, StatusDismissed},
	StatusAcknowledged: {StatusResolved, StatusDismissed},
	StatusResolved:     {},
	StatusDismissed:    {},
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s AlertStatus) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether an alert may move from one status to
// another in a single step.
func CanTransition(from, to AlertStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a terminal status eligible for pruning
// after the retention window.
func Terminal(s AlertStatus) bool {
	return s == StatusResolved || s == StatusDismissed
}

// ValidSeverity reports whether s is a known alert-worthy severity tier.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
