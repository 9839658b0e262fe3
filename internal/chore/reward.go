package chore

import "github.com/shopspring/decimal"

var floorRate = decimal.NewFromFloat(0.1)

// RewardFloor returns the minimum payable reward for a chore:
// ceil(10% of the original reward). The floor guarantees a non-zero
// incentive survives any number of decline cycles.
func RewardFloor(original decimal.Decimal) decimal.Decimal {
	return original.Mul(floorRate).Ceil()
}

// DecayedReward returns the reward after an exhausted decline cycle.
// Reduction applies only at auto-accept, never on an ordinary re-offer.
func DecayedReward(current, original, reduction decimal.Decimal, enabled bool) decimal.Decimal {
	if !enabled {
		return current
	}
	return clampToFloor(current.Sub(reduction), original)
}

// PenalizedReward returns the reward after a completion-timer penalty,
// clamped to the same floor as decline decay.
func PenalizedReward(current, original, penalty decimal.Decimal) decimal.Decimal {
	return clampToFloor(current.Sub(penalty), original)
}

func clampToFloor(next, original decimal.Decimal) decimal.Decimal {
	if floor := RewardFloor(original); next.LessThan(floor) {
		return floor
	}
	return next
}
