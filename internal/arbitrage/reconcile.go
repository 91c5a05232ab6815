package arbitrage

import (
	"slices"
	"strings"
)

// ReconcileOptions tunes how two exchange listings are matched.
type ReconcileOptions struct {
	// QuoteAsset restricts the result to pairs quoted in this asset. Empty keeps every quote.
	QuoteAsset string
	// Exclude lists canonical symbols that are never scanned.
	Exclude []string
	// AliasesA and AliasesB map an exchange's own symbol onto the canonical one,
	// for assets listed under different tickers.
	AliasesA map[string]string
	AliasesB map[string]string
}

// NormalizeSymbol builds the canonical BASE/QUOTE form.
func NormalizeSymbol(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "/" + strings.ToUpper(strings.TrimSpace(quote))
}

// SplitSymbol returns the base and quote of a BASE/QUOTE symbol.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

// CommonSymbols returns the sorted symbols tradable on both listings.
func CommonSymbols(a, b []string, opts ReconcileOptions) []string {
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, s := range opts.Exclude {
		excluded[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}

	keep := func(symbol string) bool {
		_, quote, ok := SplitSymbol(symbol)
		if !ok {
			return false
		}
		if opts.QuoteAsset != "" && !strings.EqualFold(quote, opts.QuoteAsset) {
			return false
		}
		_, skip := excluded[symbol]
		return !skip
	}

	left := canonicalSet(a, opts.AliasesA)
	common := make([]string, 0)
	for symbol := range canonicalSet(b, opts.AliasesB) {
		if _, ok := left[symbol]; ok && keep(symbol) {
			common = append(common, symbol)
		}
	}
	slices.Sort(common)
	return common
}

func canonicalSet(listing []string, aliases map[string]string) map[string]struct{} {
	// Config loaders lower-case map keys, so aliases match case-insensitively.
	upper := make(map[string]string, len(aliases))
	for from, to := range aliases {
		upper[strings.ToUpper(from)] = strings.ToUpper(to)
	}

	set := make(map[string]struct{}, len(listing))
	for _, s := range listing {
		s = strings.ToUpper(strings.TrimSpace(s))
		if alias, ok := upper[s]; ok {
			s = alias
		}
		set[s] = struct{}{}
	}
	return set
}
