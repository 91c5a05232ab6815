package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkSet_Intersect(t *testing.T) {
	open := func(id, contract string) Network {
		return Network{ID: id, Contract: contract, DepositEnabled: true, WithdrawEnabled: true}
	}

	tests := []struct {
		name string
		a, b NetworkSet
		want []string
	}{
		{
			name: "common usable networks sorted",
			a:    NewNetworkSet(open("TRC20", ""), open("ERC20", ""), open("SOL", "")),
			b:    NewNetworkSet(open("ERC20", ""), open("TRC20", "")),
			want: []string{"ERC20", "TRC20"},
		},
		{
			name: "withdrawals disabled on one side",
			a:    NewNetworkSet(open("ERC20", ""), Network{ID: "TRC20", DepositEnabled: true}),
			b:    NewNetworkSet(open("ERC20", ""), open("TRC20", "")),
			want: []string{"ERC20"},
		},
		{
			name: "contract mismatch",
			a:    NewNetworkSet(open("ERC20", "0xabc"), open("BEP20", "0xdef")),
			b:    NewNetworkSet(open("ERC20", "0xABC"), open("BEP20", "0x123")),
			want: []string{"ERC20"},
		},
		{
			name: "contract known on one side only",
			a:    NewNetworkSet(open("ERC20", "0xabc")),
			b:    NewNetworkSet(open("ERC20", "")),
			want: []string{"ERC20"},
		},
		{
			name: "nothing shared",
			a:    NewNetworkSet(open("SOL", "")),
			b:    nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersect(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersect(tt.a))
		})
	}
}

func TestNetworkSet_IDs(t *testing.T) {
	set := NewNetworkSet(Network{ID: "TRC20"}, Network{ID: "ERC20"})
	assert.Equal(t, []string{"ERC20", "TRC20"}, set.IDs())
}

func TestOrderBookSnapshot_Valid(t *testing.T) {
	assert.True(t, OrderBookSnapshot{Ask: 1, Bid: 0.9}.Valid())
	assert.False(t, OrderBookSnapshot{Ask: 0, Bid: 0.9}.Valid())
	assert.False(t, OrderBookSnapshot{Ask: 1, Bid: -1}.Valid())
}
