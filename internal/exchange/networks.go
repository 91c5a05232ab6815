package exchange

import (
	"strings"

	"arbscan/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// defaultNetworkAliases maps the chain names exchanges publish onto one canonical id.
var defaultNetworkAliases = map[string]string{
	"ERC20":                  "ETH",
	"ETHEREUM":               "ETH",
	"ETHEREUM(ERC20)":        "ETH",
	"BEP20":                  "BSC",
	"BEP20(BSC)":             "BSC",
	"BNB SMART CHAIN(BEP20)": "BSC",
	"BSC_BNB":                "BSC",
	"TRC20":                  "TRX",
	"TRON(TRC20)":            "TRX",
	"TRON":                   "TRX",
	"ARBITRUM ONE":           "ARBITRUM",
	"ARBITRUMONE":            "ARBITRUM",
	"ARBITRUM ONE(ARB)":      "ARBITRUM",
	"ARB":                    "ARBITRUM",
	"OP":                     "OPTIMISM",
	"OPTIMISM(OP)":           "OPTIMISM",
	"MATIC":                  "POLYGON",
	"POLYGON(MATIC)":         "POLYGON",
	"SOLANA":                 "SOL",
	"SOLANA(SOL)":            "SOL",
	"AVAX C-CHAIN":           "AVAXC",
	"AVAX_CCHAIN":            "AVAXC",
	"AVAXC-CHAIN":            "AVAXC",
	"BASE(BASE)":             "BASE",
}

// evmNetworks are networks whose contract addresses are 20-byte hex addresses.
var evmNetworks = map[string]bool{
	"ETH": true, "BSC": true, "ARBITRUM": true, "OPTIMISM": true,
	"POLYGON": true, "AVAXC": true, "BASE": true,
}

// NetworkNormalizer canonicalizes network ids and contract addresses across exchanges.
type NetworkNormalizer struct {
	aliases map[string]string
}

// NewNetworkNormalizer merges extra aliases over the built-in table.
func NewNetworkNormalizer(extra map[string]string) *NetworkNormalizer {
	aliases := make(map[string]string, len(defaultNetworkAliases)+len(extra))
	for k, v := range defaultNetworkAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return &NetworkNormalizer{aliases: aliases}
}

// ID returns the canonical network id for a raw chain name.
func (n *NetworkNormalizer) ID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := n.aliases[id]; ok {
		return alias
	}
	return id
}

// Contract returns a comparable contract address. EVM addresses are lower-cased hex;
// anything else is only trimmed.
func (n *NetworkNormalizer) Contract(networkID, contract string) string {
	contract = strings.TrimSpace(contract)
	if contract == "" {
		return ""
	}
	if evmNetworks[networkID] && common.IsHexAddress(contract) {
		return strings.ToLower(common.HexToAddress(contract).Hex())
	}
	return contract
}

// Network builds a model.Network with canonical id and contract.
func (n *NetworkNormalizer) Network(rawID, contract string, deposit, withdraw bool) model.Network {
	id := n.ID(rawID)
	return model.Network{
		ID:              id,
		Contract:        n.Contract(id, contract),
		DepositEnabled:  deposit,
		WithdrawEnabled: withdraw,
	}
}
