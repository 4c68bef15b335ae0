package service

import (
	"math"

	"github.com/pazarlabs/pazar/internal/trust/domain"
)

// ComputeScore maps signals to a 0-100 score and discrete tier. Pure function:
// identical inputs always yield identical outputs.
func ComputeScore(signals domain.Signals) domain.ScoreBreakdown {
	breakdown := domain.ScoreBreakdown{
		BaseScore:           100,
		LateDeliveryPenalty: math.Min(40, 40*(1-signals.OnTimeRatio)),
		DisputePenalty:      math.Min(20, 20*signals.DisputeRate),
		SLABreachPenalty:    math.Min(15, 5*signals.SLABreachCount),
		ChargebackPenalty:   math.Min(25, 25*signals.ChargebackRate),
		ReceivablePenalty:   math.Min(15, 15*signals.ReceivableRate),
		OverridePenalty:     math.Min(10, 2*signals.OverrideCount),
		StabilityBonus:      math.Min(10, signals.StabilityScore),
	}
	if signals.VolumeIndex > 0 {
		breakdown.VolumeBonus = math.Min(10, math.Log10(signals.VolumeIndex))
	}

	penalties := breakdown.LateDeliveryPenalty +
		breakdown.DisputePenalty +
		breakdown.SLABreachPenalty +
		breakdown.ChargebackPenalty +
		breakdown.ReceivablePenalty +
		breakdown.OverridePenalty
	bonuses := breakdown.StabilityBonus + breakdown.VolumeBonus

	final := int(math.Round(breakdown.BaseScore - penalties + bonuses))
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	breakdown.FinalScore = final
	breakdown.Tier = tierForScore(final)
	return breakdown
}

func tierForScore(score int) domain.Tier {
	switch {
	case score >= 85:
		return domain.TierA
	case score >= 70:
		return domain.TierB
	case score >= 50:
		return domain.TierC
	default:
		return domain.TierD
	}
}
