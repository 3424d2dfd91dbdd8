package app

import (
	"math"

	"propvalue/internal/domain"
)

// Cross-type comparables keep 60% of the influence of same-type ones.
const crossTypeWeight = 0.6

// EffectiveArea collapses a single value or a range into one figure:
// the value, the mean of both bounds, the one present bound, or 0.
func EffectiveArea(a domain.Area) float64 {
	if a.Value != nil {
		return *a.Value
	}
	switch {
	case a.Minimum != nil && a.Maximum != nil:
		return (*a.Minimum + *a.Maximum) / 2
	case a.Minimum != nil:
		return *a.Minimum
	case a.Maximum != nil:
		return *a.Maximum
	}
	return 0
}

// SizeWeight is 1/ln(diff+10): positive, strictly decreasing, never zero.
func SizeWeight(sizeDiff float64) float64 {
	return 1 / math.Log(math.Abs(sizeDiff)+10)
}

// ComparableWeight is the influence one comparable has on a prediction.
func ComparableWeight(target domain.PricingTarget, c domain.Property) float64 {
	w := SizeWeight(math.Abs(comparableArea(c) - EffectiveArea(target.Area)))
	if c.PropertyType != target.PropertyType {
		w *= crossTypeWeight
	}
	return w
}

func comparableArea(c domain.Property) float64 {
	lo, hi := c.SizeMinimum, c.SizeMaximum
	return EffectiveArea(domain.Area{Minimum: &lo, Maximum: &hi})
}

// Predict returns a distance-weighted average of comparable rates scaled to
// the target area, or nil when there is no sound basis for a prediction.
// Sales and unpriced listings carry no rent and are skipped.
// Summation follows slice order so results are reproducible.
func Predict(target domain.PricingTarget, comparables []domain.Property) *domain.PricePrediction {
	area := EffectiveArea(target.Area)
	if area == 0 || len(comparables) == 0 {
		return nil
	}

	var sumW, sumPA, sumPCM float64
	for _, c := range comparables {
		if c.PricePerAreaPA <= 0 || c.TransactionType == domain.TransactionSale {
			continue
		}
		w := ComparableWeight(target, c)
		sumW += w
		sumPA += w * c.PricePerAreaPA
		sumPCM += w * c.PricePerAreaPCM
	}
	if sumW == 0 {
		return nil
	}

	perPA := sumPA / sumW
	perPCM := sumPCM / sumW
	pricePA := perPA * area
	return &domain.PricePrediction{
		EffectiveArea:   area,
		PricePerAreaPA:  round2(perPA),
		PricePerAreaPCM: round2(perPCM),
		PricePA:         math.Round(pricePA),
		PricePCM:        math.Round(pricePA / 12),
	}
}
