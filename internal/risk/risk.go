package risk

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidation-alerts/internal/market"
)

var (
	hundred   = decimal.NewFromInt(100)
	hundredth = decimal.New(1, -2)
)

// Decision is the outcome of the threshold policy for one subscriber.
type Decision struct {
	Subscriber       common.Address
	ShouldAlert      bool
	PercentRemaining int64
	Remaining        decimal.Decimal
	Collateral       decimal.Decimal
}

// Evaluator applies the liquidation-risk threshold policy. Pure, no I/O.
type Evaluator struct {
	thresholdPct decimal.Decimal
}

// NewEvaluator constructs an evaluator. thresholdPct is the percentage of
// risk-adjusted collateral below which remaining liquidity triggers an alert
// (10 in the production configuration).
func NewEvaluator(thresholdPct float64) *Evaluator {
	return &Evaluator{thresholdPct: decimal.NewFromFloat(thresholdPct)}
}

// Evaluate decides alert-worthiness for one aggregation result. A subscriber
// with zero aggregated collateral never alerts: the threshold is zero and the
// percentage would divide by zero.
func (e *Evaluator) Evaluate(agg market.AggregateLiquidity) Decision {
	decision := Decision{
		Subscriber: agg.Subscriber,
		Remaining:  agg.Remaining,
		Collateral: agg.Collateral,
	}

	if agg.Collateral.Sign() <= 0 {
		return decision
	}

	// Exact scaling; Div would round the threshold to DivisionPrecision and
	// zero it out for very small collateral values.
	threshold := agg.Collateral.Mul(e.thresholdPct).Mul(hundredth)
	decision.ShouldAlert = threshold.Sign() > 0 && agg.Remaining.LessThan(threshold)
	decision.PercentRemaining = agg.Remaining.Mul(hundred).Div(agg.Collateral).Floor().IntPart()
	return decision
}
