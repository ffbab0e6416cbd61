// Package scenario projects revenue and ROAS for a budget split between awareness
// (view) and cart spend. Everything here is pure and safe for concurrent use.
package scenario

import (
	"fmt"
	"math"

	"github.com/step6836/marketing-attribution/schema"
)

// RiskThresholds bound the cart-share deviation from baseline for each risk level.
type RiskThresholds struct {
	Low    float64 `json:"low" yaml:"low" mapstructure:"low"`
	Medium float64 `json:"medium" yaml:"medium" mapstructure:"medium"`
}

// Calibration is the request-scoped parameter set of the projection curve.
type Calibration struct {
	TotalBudget       float64        `json:"total_budget" yaml:"total_budget" mapstructure:"total_budget"`
	BaselineRevenue   float64        `json:"baseline_revenue" yaml:"baseline_revenue" mapstructure:"baseline_revenue"`
	BaselineROAS      float64        `json:"baseline_roas" yaml:"baseline_roas" mapstructure:"baseline_roas"`
	BaselineCartShare float64        `json:"baseline_cart_share" yaml:"baseline_cart_share" mapstructure:"baseline_cart_share"`
	Slope             float64        `json:"slope" yaml:"slope" mapstructure:"slope"`                                  // lift points per unit of cart share
	MaxLift           float64        `json:"max_lift" yaml:"max_lift" mapstructure:"max_lift"`                         // percent
	ROASSensitivity   float64        `json:"roas_sensitivity" yaml:"roas_sensitivity" mapstructure:"roas_sensitivity"` // ROAS per lift point
	RiskThresholds    RiskThresholds `json:"risk_thresholds" yaml:"risk_thresholds" mapstructure:"risk_thresholds"`
	AggressiveStep    float64        `json:"aggressive_step" yaml:"aggressive_step" mapstructure:"aggressive_step"` // cart share added to recommended
}

// DefaultCalibration returns the calibration fitted to the reference dataset.
func DefaultCalibration() Calibration {
	return Calibration{
		TotalBudget:       5_000_000,
		BaselineRevenue:   50_000_000,
		BaselineROAS:      10,
		BaselineCartShare: 0.40,
		Slope:             75,
		MaxLift:           15,
		ROASSensitivity:   0.15,
		RiskThresholds:    RiskThresholds{Low: 0.075, Medium: 0.20},
		AggressiveStep:    0.10,
	}
}

// Validate reports an error wrapping schema.ErrInvalidCalibration for unusable values.
func (c Calibration) Validate() error {
	check := func(name string, v float64, ok bool) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || !ok {
			return fmt.Errorf("%w: %s = %v", schema.ErrInvalidCalibration, name, v)
		}
		return nil
	}
	for _, err := range []error{
		check("total_budget", c.TotalBudget, c.TotalBudget > 0),
		check("baseline_revenue", c.BaselineRevenue, c.BaselineRevenue >= 0),
		check("baseline_roas", c.BaselineROAS, c.BaselineROAS >= 0),
		check("baseline_cart_share", c.BaselineCartShare, c.BaselineCartShare >= 0 && c.BaselineCartShare <= 1),
		check("slope", c.Slope, c.Slope >= 0),
		check("max_lift", c.MaxLift, c.MaxLift >= 0),
		check("roas_sensitivity", c.ROASSensitivity, c.ROASSensitivity >= 0),
		check("risk_thresholds.low", c.RiskThresholds.Low, c.RiskThresholds.Low >= 0),
		check("risk_thresholds.medium", c.RiskThresholds.Medium, c.RiskThresholds.Medium >= c.RiskThresholds.Low),
		check("aggressive_step", c.AggressiveStep, c.AggressiveStep >= 0 && c.AggressiveStep <= 1),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Project computes the scenario for an awareness budget. The cart budget is the rest of
// the total. Budgets outside [0, total] or not finite return schema.ErrBudgetOutOfRange.
func Project(cal Calibration, awarenessBudget float64) (schema.Scenario, error) {
	if err := cal.Validate(); err != nil {
		return schema.Scenario{}, err
	}
	if math.IsNaN(awarenessBudget) || math.IsInf(awarenessBudget, 0) || awarenessBudget < 0 || awarenessBudget > cal.TotalBudget {
		return schema.Scenario{}, fmt.Errorf("%w: awareness budget %v not in [0, %v]",
			schema.ErrBudgetOutOfRange, awarenessBudget, cal.TotalBudget)
	}

	cart := cal.TotalBudget - awarenessBudget
	share := cart / cal.TotalBudget
	lift := Lift(cal, share)

	return schema.Scenario{
		Name:             schema.CustomScenario,
		AwarenessBudget:  awarenessBudget,
		CartBudget:       cart,
		TotalBudget:      cal.TotalBudget,
		ProjectedRevenue: cal.BaselineRevenue * (1 + lift/100),
		ProjectedROAS:    cal.BaselineROAS + lift*cal.ROASSensitivity,
		ProjectedLift:    lift,
		RiskLevel:        Risk(cal, share),
	}, nil
}

// ProjectShare projects the scenario whose cart budget is share of the total.
func ProjectShare(cal Calibration, share float64) (schema.Scenario, error) {
	if math.IsNaN(share) || share < 0 || share > 1 {
		return schema.Scenario{}, fmt.Errorf("%w: cart share %v not in [0, 1]", schema.ErrBudgetOutOfRange, share)
	}
	return Project(cal, cal.TotalBudget*(1-share))
}

// Lift returns the projected lift in percent for a cart share.
func Lift(cal Calibration, share float64) float64 {
	return schema.Clamp(cal.Slope*(share-cal.BaselineCartShare), 0, cal.MaxLift)
}

// Risk labels a cart share by its distance from the baseline share.
func Risk(cal Calibration, share float64) schema.RiskLevel {
	d := math.Abs(share - cal.BaselineCartShare)
	switch {
	case d <= cal.RiskThresholds.Low:
		return schema.LowRisk
	case d <= cal.RiskThresholds.Medium:
		return schema.MediumRisk
	default:
		return schema.HighRisk
	}
}
