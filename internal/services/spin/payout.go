package spin

import (
	"fmt"
	"strings"
)

// Symbol is one face of a reel
type Symbol string

const (
	SymbolBlue   Symbol = "blue"
	SymbolGreen  Symbol = "green"
	SymbolPurple Symbol = "purple"
)

// Symbols lists the reel faces in draw order; each is equally likely
var Symbols = []Symbol{SymbolBlue, SymbolGreen, SymbolPurple}

var symbolValues = map[Symbol]int64{
	SymbolBlue:   50,
	SymbolGreen:  100,
	SymbolPurple: 150,
}

// Cost is the price of one spin
const Cost int64 = 50

// Reels is the outcome of one spin
type Reels [3]Symbol

// String encodes the reels as comma separated symbols
func (r Reels) String() string {
	return string(r[0]) + "," + string(r[1]) + "," + string(r[2])
}

// Strings returns the reels as plain symbol names
func (r Reels) Strings() []string {
	return []string{string(r[0]), string(r[1]), string(r[2])}
}

// ParseReels decodes reels written by Reels.String
func ParseReels(s string) (Reels, error) {
	var r Reels
	parts := strings.Split(s, ",")
	if len(parts) != len(r) {
		return r, fmt.Errorf("invalid reels %q", s)
	}
	for i, part := range parts {
		sym := Symbol(part)
		if _, ok := symbolValues[sym]; !ok {
			return r, fmt.Errorf("invalid reel symbol %q", part)
		}
		r[i] = sym
	}
	return r, nil
}

// Value returns the symbol's base payout
func (s Symbol) Value() int64 {
	return symbolValues[s]
}

// Payout returns the gross win for the reels.
// Three of a kind pays triple the symbol value; a pair on neighbouring reels
// pays the symbol value once. Matching first and last reels alone pays nothing.
func Payout(r Reels) int64 {
	switch {
	case r[0] == r[1] && r[1] == r[2]:
		return r[0].Value() * 3
	case r[0] == r[1]:
		return r[0].Value()
	case r[1] == r[2]:
		return r[1].Value()
	default:
		return 0
	}
}

// Net returns the balance change for a spin, after its cost
func Net(r Reels) int64 {
	return Payout(r) - Cost
}
