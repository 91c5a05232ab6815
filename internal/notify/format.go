package notify

import (
	"fmt"
	"strings"

	"arbscan/internal/model"
)

// Title is the heading used for opportunity alerts.
func Title(o model.Opportunity) string {
	return fmt.Sprintf("Arbitrage: %s %.3f%%", o.Symbol, o.BestSpread)
}

// Format renders an opportunity as a plain-text alert.
func Format(o model.Opportunity) string {
	networks := "none"
	if len(o.SupportedNetworks) > 0 {
		networks = strings.Join(o.SupportedNetworks, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", o.Symbol)
	fmt.Fprintf(&b, "Direction: %s\n", o.Direction)
	fmt.Fprintf(&b, "Spread: %.3f%%\n", o.BestSpread)
	fmt.Fprintf(&b, "Executable volume: %.2f\n", o.ExecutableVolume)
	fmt.Fprintf(&b, "Networks: %s\n", networks)
	fmt.Fprintf(&b, "Min liquidity score: %.1f/10\n", o.MinLiquidityScore)
	for _, q := range []model.Quote{o.A, o.B} {
		fmt.Fprintf(&b, "%s: ask %s / bid %s\n", q.Exchange, price(q.Ask), price(q.Bid))
	}
	return strings.TrimRight(b.String(), "\n")
}

func price(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}

// TestOpportunity is the message sent by the startup delivery check.
func TestOpportunity() model.Opportunity {
	return model.Opportunity{
		Symbol:            "TEST/USDT",
		Direction:         "Test",
		BestSpread:        1.0,
		ExecutableVolume:  1000,
		SupportedNetworks: []string{"TEST"},
		A:                 model.Quote{Exchange: "exchange A", Ask: 1, Bid: 1},
		B:                 model.Quote{Exchange: "exchange B", Ask: 1, Bid: 1},
		MinLiquidityScore: 8,
	}
}
