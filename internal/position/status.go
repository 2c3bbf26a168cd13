package position

// Status classifies where the current tick sits relative to a range.
type Status int

const (
	StatusInRange Status = iota
	StatusNearLowerEdge
	StatusNearUpperEdge
	StatusOutOfRangeBelow
	StatusOutOfRangeAbove
)

// DefaultEdgeFraction is how close (as a fraction of range width) the
// current tick may sit to a boundary before it counts as near-edge.
const DefaultEdgeFraction = 0.15

func (s Status) String() string {
	switch s {
	case StatusInRange:
		return "IN_RANGE"
	case StatusNearLowerEdge:
		return "NEAR_LOWER_EDGE"
	case StatusNearUpperEdge:
		return "NEAR_UPPER_EDGE"
	case StatusOutOfRangeBelow:
		return "OUT_OF_RANGE_BELOW"
	case StatusOutOfRangeAbove:
		return "OUT_OF_RANGE_ABOVE"
	default:
		return "UNKNOWN"
	}
}

// Healthy reports whether the status needs no operator attention.
func (s Status) Healthy() bool {
	return s == StatusInRange
}

// Classify places currentTick relative to [tickLower, tickUpper) and
// returns the coverage fraction (0 at the lower bound, 1 at the upper).
// edgeFraction <= 0 falls back to DefaultEdgeFraction.
func Classify(tickLower, tickUpper, currentTick int32, edgeFraction float64) (Status, float64) {
	if edgeFraction <= 0 {
		edgeFraction = DefaultEdgeFraction
	}

	width := float64(tickUpper - tickLower)
	coverage := float64(currentTick-tickLower) / width

	switch {
	case currentTick < tickLower:
		return StatusOutOfRangeBelow, coverage
	case currentTick >= tickUpper:
		return StatusOutOfRangeAbove, coverage
	case coverage < edgeFraction:
		return StatusNearLowerEdge, coverage
	case coverage >= 1-edgeFraction:
		return StatusNearUpperEdge, coverage
	default:
		return StatusInRange, coverage
	}
}
