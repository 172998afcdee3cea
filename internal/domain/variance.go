package domain

import "github.com/shopspring/decimal"

type VarianceClass string

const (
	VarianceExceedsThreshold VarianceClass = "EXCEEDS_THRESHOLD"
	VarianceWithinRange      VarianceClass = "WITHIN_RANGE"
	VarianceWeightGain       VarianceClass = "WEIGHT_GAIN"
	VarianceExactMatch       VarianceClass = "EXACT_MATCH"
)

// LossThresholdPct is the weight loss, in percent of the LR weight, above which
// the loss is deducted from the bill.
var LossThresholdPct = decimal.NewFromFloat(0.5)

var hundred = decimal.NewFromInt(100)

type VarianceResult struct {
	Difference     decimal.Decimal `json:"weight_difference"`
	LossPct        decimal.Decimal `json:"weight_loss_percentage"`
	Deduction      decimal.Decimal `json:"deduction_amount"`
	FinalAmount    decimal.Decimal `json:"final_bill_amount"`
	Classification VarianceClass   `json:"classification"`
}

// ComputeVariance derives the weight variance and billing deduction for an LR
// weight and a site weight. It reports false when either weight is not
// strictly positive; callers must then clear every derived field.
func ComputeVariance(lrWeight, siteWeight, invoiceAmount decimal.Decimal) (VarianceResult, bool) {
	if !lrWeight.IsPositive() || !siteWeight.IsPositive() {
		return VarianceResult{}, false
	}

	difference := lrWeight.Sub(siteWeight)
	lossPct := difference.Div(lrWeight).Mul(hundred)

	res := VarianceResult{
		Difference:  difference,
		LossPct:     lossPct,
		Deduction:   decimal.Zero,
		FinalAmount: invoiceAmount,
	}

	switch {
	case lossPct.GreaterThan(LossThresholdPct):
		res.Deduction = lossPct.Div(hundred).Mul(invoiceAmount)
		res.FinalAmount = invoiceAmount.Sub(res.Deduction)
		res.Classification = VarianceExceedsThreshold
	case lossPct.IsPositive():
		res.Classification = VarianceWithinRange
	case lossPct.IsNegative():
		res.Classification = VarianceWeightGain
	default:
		res.Classification = VarianceExactMatch
	}
	return res, true
}
