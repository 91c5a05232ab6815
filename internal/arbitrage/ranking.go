package arbitrage

import (
	"cmp"
	"math"
	"slices"

	"arbscan/internal/model"
)

// DefaultTopN is the number of opportunities kept when no limit is configured.
const DefaultTopN = 5

// Thresholds are the filters every ranked opportunity must pass.
type Thresholds struct {
	MinLiquidityScore float64 `mapstructure:"min_liquidity_score"`
	DepthThreshold    float64 `mapstructure:"depth_threshold"`
}

// DefaultThresholds returns liquidity >= 7 and executable volume >= 1000 quote units.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLiquidityScore: 7,
		DepthThreshold:    1000,
	}
}

// Passes reports whether o has a positive spread and meets both thresholds.
func Passes(o model.Opportunity, th Thresholds) bool {
	return o.BestSpread > 0 &&
		o.MinLiquidityScore >= th.MinLiquidityScore &&
		o.ExecutableVolume >= th.DepthThreshold
}

// Score ranks an opportunity by spread times liquidity, scaled by how much of the depth
// threshold its executable volume covers. The volume factor stops growing at 1.
func Score(o model.Opportunity, th Thresholds) float64 {
	volumeFactor := 1.0
	if th.DepthThreshold > 0 {
		volumeFactor = math.Min(1, o.ExecutableVolume/th.DepthThreshold)
	}
	return o.BestSpread * o.MinLiquidityScore * volumeFactor
}

// RankAndFilter keeps the opportunities passing th, scores them, sorts by descending score
// with ascending symbol as tie-break and truncates to topN. The input slice is not modified.
func RankAndFilter(opps []model.Opportunity, th Thresholds, topN int) []model.Opportunity {
	if topN <= 0 {
		topN = DefaultTopN
	}

	ranked := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		if !Passes(o, th) {
			continue
		}
		o.Score = Score(o, th)
		ranked = append(ranked, o)
	}

	slices.SortStableFunc(ranked, func(x, y model.Opportunity) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return cmp.Compare(x.Symbol, y.Symbol)
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
