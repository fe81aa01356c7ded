package services

import (
	"fmt"
	"math"
)

// agentCommissionPercent is the agent's share of a placement fee. The
// platform keeps the remainder.
const agentCommissionPercent = 80

// ToMinorUnits converts a major-unit amount (dollars) to integer cents.
// Non-positive amounts and amounts with sub-cent precision are rejected
// rather than silently rounded.
func ToMinorUnits(amount float64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	scaled := amount * 100
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > 0.01 {
		return 0, fmt.Errorf("amount %v has sub-cent precision", amount)
	}
	return int64(rounded), nil
}

// SplitCommission divides a placement fee into the agent commission and the
// platform share. Integer arithmetic: the two always sum back to the fee
// exactly, with the platform absorbing the rounding cent.
func SplitCommission(feeCents int64) (agentCommission, platformRevenue int64) {
	agentCommission = feeCents * agentCommissionPercent / 100
	platformRevenue = feeCents - agentCommission
	return agentCommission, platformRevenue
}
