package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"liquidation-alerts/internal/market"
)

func TestEvaluateBelowThreshold(t *testing.T) {
	evaluator := NewEvaluator(10)
	decision := evaluator.Evaluate(market.AggregateLiquidity{
		Collateral: decimal.NewFromInt(100),
		Remaining:  decimal.NewFromInt(5),
	})

	if !decision.ShouldAlert {
		t.Fatal("remaining below 10% of collateral should alert")
	}
	if decision.PercentRemaining != 5 {
		t.Fatalf("expected 5 percent remaining, got %d", decision.PercentRemaining)
	}
}

func TestEvaluateAtThreshold(t *testing.T) {
	evaluator := NewEvaluator(10)
	decision := evaluator.Evaluate(market.AggregateLiquidity{
		Collateral: decimal.NewFromInt(100),
		Remaining:  decimal.NewFromInt(10),
	})

	if decision.ShouldAlert {
		t.Fatal("remaining equal to the threshold should not alert")
	}
	if decision.PercentRemaining != 10 {
		t.Fatalf("expected 10 percent remaining, got %d", decision.PercentRemaining)
	}
}

func TestEvaluateZeroCollateral(t *testing.T) {
	evaluator := NewEvaluator(10)
	decision := evaluator.Evaluate(market.AggregateLiquidity{
		Collateral: decimal.Zero,
		Remaining:  decimal.Zero,
	})

	if decision.ShouldAlert {
		t.Fatal("zero collateral should never alert")
	}
	if decision.PercentRemaining != 0 {
		t.Fatalf("expected 0 percent remaining, got %d", decision.PercentRemaining)
	}
}

func TestEvaluateNegativeCollateral(t *testing.T) {
	evaluator := NewEvaluator(10)
	decision := evaluator.Evaluate(market.AggregateLiquidity{
		Collateral: decimal.NewFromInt(-1),
		Remaining:  decimal.NewFromInt(1),
	})

	if decision.ShouldAlert {
		t.Fatal("negative collateral should never alert")
	}
}

func TestEvaluatePercentFloors(t *testing.T) {
	evaluator := NewEvaluator(10)
	decision := evaluator.Evaluate(market.AggregateLiquidity{
		Collateral: decimal.NewFromInt(100),
		Remaining:  decimal.RequireFromString("5.97"),
	})

	if !decision.ShouldAlert {
		t.Fatal("remaining below threshold should alert")
	}
	if decision.PercentRemaining != 5 {
		t.Fatalf("percent remaining should floor to 5, got %d", decision.PercentRemaining)
	}
}
