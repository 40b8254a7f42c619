package risk

import "github.com/rustyeddy/trendbot/signal"

// TrailVerdict explains why a trailing-stop candidate was accepted or not.
type TrailVerdict int

const (
	TrailAccept      TrailVerdict = iota
	TrailNotTighter               // candidate would widen or not move the stop
	TrailBelowMin                 // movement under the minimum update distance
	TrailUnsafe                   // candidate too close to the live price
)

func (v TrailVerdict) String() string {
	switch v {
	case TrailAccept:
		return "accept"
	case TrailNotTighter:
		return "not-tighter"
	case TrailBelowMin:
		return "below-min-distance"
	case TrailUnsafe:
		return "unsafe-margin"
	default:
		return "unknown"
	}
}

// TrailStop decides whether a candidate stop replaces the current one.
//
// Accepted updates only ever tighten: up for longs, down for shorts. The
// movement must exceed minMove (avoids a modify call per pip of noise), and
// the candidate must keep at least safetyMargin from the side of the live
// price that triggers the stop (bid for longs, ask for shorts) so that
// submitting it cannot cause an immediate fill. A rejected candidate is not
// an error; the caller simply retries next cycle.
func TrailStop(candidate, current float64, side signal.Side, bid, ask, minMove, safetyMargin float64) TrailVerdict {
	if side == signal.Long {
		if candidate <= current {
			return TrailNotTighter
		}
		if candidate-current < minMove {
			return TrailBelowMin
		}
		if candidate > bid-safetyMargin {
			return TrailUnsafe
		}
		return TrailAccept
	}

	if candidate >= current {
		return TrailNotTighter
	}
	if current-candidate < minMove {
		return TrailBelowMin
	}
	if candidate < ask+safetyMargin {
		return TrailUnsafe
	}
	return TrailAccept
}
