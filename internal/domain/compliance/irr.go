package compliance

// IRRLevel is the inherent regulatory risk tier derived from a compliance
// percentage. The four-bucket ladder is applied uniformly everywhere risk
// tiering is needed (scoring, risk translation, alerting, cost scaling).
type IRRLevel string

const (
	IRRLow      IRRLevel = "R1"
	IRRModerate IRRLevel = "R2"
	IRRHigh     IRRLevel = "R3"
	IRRCritical IRRLevel = "R4"
)

// IRRFromPercentage buckets a compliance percentage into an IRR tier.
// Boundary values map to the higher tier: exactly 95 is R1, exactly 85 is
// R2, exactly 70 is R3.
func IRRFromPercentage(percentage float64) IRRLevel {
	switch {
	case percentage >= 95:
		return IRRLow
	case percentage >= 85:
		return IRRModerate
	case percentage >= 70:
		return IRRHigh
	default:
		return IRRCritical
	}
}

func (l IRRLevel) IsValid() bool {
	switch l {
	case IRRLow, IRRModerate, IRRHigh, IRRCritical:
		return true
	default:
		return false
	}
}

// CostMultiplier scales economic impact estimates by risk tier.
func (l IRRLevel) CostMultiplier() float64 {
	switch l {
	case IRRLow:
		return 0.5
	case IRRModerate:
		return 1.0
	case IRRHigh:
		return 2.0
	case IRRCritical:
		return 4.0
	default:
		return 1.0
	}
}

// AtLeast reports whether the tier is at or above the given severity,
// where R4 is the most severe.
func (l IRRLevel) AtLeast(other IRRLevel) bool {
	return l.ordinal() >= other.ordinal()
}

func (l IRRLevel) ordinal() int {
	switch l {
	case IRRLow:
		return 1
	case IRRModerate:
		return 2
	case IRRHigh:
		return 3
	case IRRCritical:
		return 4
	default:
		return 0
	}
}

func (l IRRLevel) String() string {
	return string(l)
}
