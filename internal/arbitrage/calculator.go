package arbitrage

import (
	"fmt"
	"math"
	"time"

	"arbscan/internal/model"
)

// LiquidityModel maps order-book depth and 24h volume onto a 0-10 liquidity score.
// Each component grows logarithmically and saturates at its reference value.
type LiquidityModel struct {
	DepthReference  float64 `mapstructure:"depth_reference"`
	VolumeReference float64 `mapstructure:"volume_reference"`
	DepthWeight     float64 `mapstructure:"depth_weight"`
}

// DefaultLiquidityModel returns the model used when no overrides are configured.
func DefaultLiquidityModel() LiquidityModel {
	return LiquidityModel{
		DepthReference:  10_000,
		VolumeReference: 1_000_000,
		DepthWeight:     0.5,
	}
}

// Score returns the liquidity score for the given depth and 24h volume, clipped to [0,10].
func (m LiquidityModel) Score(depth, volume24h float64) float64 {
	w := math.Min(math.Max(m.DepthWeight, 0), 1)
	score := 10 * (w*saturate(depth, m.DepthReference) + (1-w)*saturate(volume24h, m.VolumeReference))
	return math.Min(math.Max(score, 0), 10)
}

// LiquidityScore scores depth and volume with the default model.
func LiquidityScore(depth, volume24h float64) float64 {
	return DefaultLiquidityModel().Score(depth, volume24h)
}

func saturate(x, ref float64) float64 {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if ref <= 0 {
		return 1
	}
	return math.Min(1, math.Log1p(x)/math.Log1p(ref))
}

// Calculator turns a pair of order-book snapshots into an Opportunity.
// It performs no I/O and applies no thresholds.
type Calculator struct {
	liquidity LiquidityModel
	now       func() time.Time
}

// NewCalculator creates a Calculator using the given liquidity model.
func NewCalculator(liquidity LiquidityModel) *Calculator {
	return &Calculator{liquidity: liquidity, now: time.Now}
}

// Evaluate computes the best directional spread between snapshot a and snapshot b.
// It returns model.ErrDataUnavailable when either book is empty and model.ErrNoOpportunity
// when neither direction has a positive spread.
func (c *Calculator) Evaluate(symbol string, a, b model.OrderBookSnapshot, netsA, netsB model.NetworkSet) (model.Opportunity, error) {
	if !a.Valid() {
		return model.Opportunity{}, fmt.Errorf("%w: %s empty book on %s", model.ErrDataUnavailable, symbol, a.Exchange)
	}
	if !b.Valid() {
		return model.Opportunity{}, fmt.Errorf("%w: %s empty book on %s", model.ErrDataUnavailable, symbol, b.Exchange)
	}

	// Buy on A at its ask, sell on B at its bid, and the reverse.
	spreadAtoB := (b.Bid - a.Ask) / a.Ask * 100
	spreadBtoA := (a.Bid - b.Ask) / b.Ask * 100
	if spreadAtoB <= 0 && spreadBtoA <= 0 {
		return model.Opportunity{}, model.ErrNoOpportunity
	}

	// A→B must be strictly larger to win; equal spreads go B→A.
	buy, sell := a, b
	best := spreadAtoB
	if spreadBtoA >= spreadAtoB {
		buy, sell = b, a
		best = spreadBtoA
	}

	scoreA := c.scoreOf(a)
	scoreB := c.scoreOf(b)

	return model.Opportunity{
		Symbol:            symbol,
		Direction:         buy.Exchange + "→" + sell.Exchange,
		BuyExchange:       buy.Exchange,
		SellExchange:      sell.Exchange,
		BestSpread:        best,
		SpreadAtoB:        spreadAtoB,
		SpreadBtoA:        spreadBtoA,
		A:                 quoteOf(a, scoreA),
		B:                 quoteOf(b, scoreB),
		ExecutableVolume:  math.Min(sideDepth(buy.AskDepth, buy.Depth), sideDepth(sell.BidDepth, sell.Depth)),
		MinLiquidityScore: math.Min(scoreA, scoreB),
		SupportedNetworks: netsA.Intersect(netsB),
		DetectedAt:        c.now(),
	}, nil
}

func (c *Calculator) scoreOf(s model.OrderBookSnapshot) float64 {
	if s.LiquidityScore > 0 {
		return math.Min(s.LiquidityScore, 10)
	}
	return c.liquidity.Score(s.Depth, s.Volume24h)
}

// sideDepth never exceeds the book's total depth; an unknown side falls back to the total.
func sideDepth(side, total float64) float64 {
	if total <= 0 {
		return 0
	}
	if side <= 0 || side > total {
		return total
	}
	return side
}

func quoteOf(s model.OrderBookSnapshot, score float64) model.Quote {
	return model.Quote{
		Exchange:       s.Exchange,
		Ask:            s.Ask,
		Bid:            s.Bid,
		Depth:          s.Depth,
		Volume24h:      s.Volume24h,
		LiquidityScore: score,
	}
}
