package model

import (
	"sort"
	"strings"
	"time"
)

// OrderBookSnapshot represents a point-in-time view of one exchange's order book for a symbol.
// Depth values are expressed in quote currency.
type OrderBookSnapshot struct {
	Exchange       string
	Symbol         string
	Ask            float64
	Bid            float64
	AskDepth       float64
	BidDepth       float64
	Depth          float64
	Volume24h      float64
	LiquidityScore float64
	FetchedAt      time.Time
}

// Valid reports whether the snapshot has a usable best ask and best bid.
func (s OrderBookSnapshot) Valid() bool {
	return s.Ask > 0 && s.Bid > 0
}

// Network describes a blockchain network on which an asset can be moved.
type Network struct {
	ID              string `json:"id"`
	Contract        string `json:"contract,omitempty"`
	DepositEnabled  bool   `json:"deposit_enabled"`
	WithdrawEnabled bool   `json:"withdraw_enabled"`
}

// Usable reports whether funds can both enter and leave the exchange on this network.
func (n Network) Usable() bool {
	return n.DepositEnabled && n.WithdrawEnabled
}

// NetworkSet holds the networks supported for one asset on one exchange, keyed by network id.
type NetworkSet map[string]Network

// NewNetworkSet builds a set from a list of networks. Later entries win on duplicate ids.
func NewNetworkSet(networks ...Network) NetworkSet {
	set := make(NetworkSet, len(networks))
	for _, n := range networks {
		set[n.ID] = n
	}
	return set
}

// IDs returns the sorted network ids in the set.
func (s NetworkSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Intersect returns the sorted ids of networks usable on both sides. A network is dropped when
// either side has deposits or withdrawals disabled, or when both sides publish a contract
// address and the addresses differ.
func (s NetworkSet) Intersect(other NetworkSet) []string {
	common := make([]string, 0)
	for id, mine := range s {
		theirs, ok := other[id]
		if !ok || !mine.Usable() || !theirs.Usable() {
			continue
		}
		if mine.Contract != "" && theirs.Contract != "" && !strings.EqualFold(mine.Contract, theirs.Contract) {
			continue
		}
		common = append(common, id)
	}
	sort.Strings(common)
	return common
}

// Quote is one exchange's side of an Opportunity.
type Quote struct {
	Exchange       string
	Ask            float64
	Bid            float64
	Depth          float64
	Volume24h      float64
	LiquidityScore float64
}

// Opportunity is a scored cross-exchange spread for one symbol.
type Opportunity struct {
	Symbol            string
	Direction         string
	BuyExchange       string
	SellExchange      string
	BestSpread        float64
	SpreadAtoB        float64
	SpreadBtoA        float64
	A                 Quote
	B                 Quote
	ExecutableVolume  float64
	MinLiquidityScore float64
	SupportedNetworks []string
	Score             float64
	DetectedAt        time.Time
}

// ScanStatus describes how a scan ended.
type ScanStatus string

const (
	ScanCompleted ScanStatus = "completed"
	ScanPartial   ScanStatus = "partial"
	ScanAborted   ScanStatus = "aborted"
)

// ScanRun summarizes one scan, recorded by the run ledger.
type ScanRun struct {
	ID            string     `db:"id"`
	StartedAt     time.Time  `db:"started_at"`
	FinishedAt    time.Time  `db:"finished_at"`
	Status        ScanStatus `db:"status"`
	ExchangeA     string     `db:"exchange_a"`
	ExchangeB     string     `db:"exchange_b"`
	Symbols       int        `db:"symbols"`
	FetchFailures int        `db:"fetch_failures"`
	Evaluated     int        `db:"evaluated"`
	Ranked        int        `db:"ranked"`
	Notified      int        `db:"notified"`
	OutputPath    string     `db:"output_path"`
	Error         string     `db:"error"`
}
