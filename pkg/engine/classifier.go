package engine

import "github.com/obrasai/vigia/pkg/model"

// Classify maps a scope deviation to a severity tier using the given
// thresholds. Boundaries are inclusive on the lower edge. Underspend never
// alerts: only over-budget deviations produce a tier. An unbounded
// deviation (zero budget, non-zero realized cost) is CRITICO regardless of
// the configured thresholds.
func Classify(dev model.ScopeDeviation, th model.Thresholds) model.Severity {
	if dev.Unbounded {
		return model.SeverityCritical
	}

	pct := dev.Percentual
	if pct <= 0 {
		return model.SeverityNone
	}

	switch {
	case pct >= th.Critico:
		return model.SeverityCritical
	case pct >= th.Alto:
		return model.SeverityHigh
	case pct >= th.Medio:
		return model.SeverityMedium
	case pct >= th.Baixo:
		return model.SeverityLow
	default:
		return model.SeverityNone
	}
}
