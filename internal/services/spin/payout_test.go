package spin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name  string
		reels Reels
		want  int64
	}{
		{"triple blue", Reels{SymbolBlue, SymbolBlue, SymbolBlue}, 150},
		{"triple green", Reels{SymbolGreen, SymbolGreen, SymbolGreen}, 300},
		{"triple purple", Reels{SymbolPurple, SymbolPurple, SymbolPurple}, 450},
		{"leading pair", Reels{SymbolBlue, SymbolBlue, SymbolGreen}, 50},
		{"trailing pair", Reels{SymbolGreen, SymbolPurple, SymbolPurple}, 150},
		{"split pair", Reels{SymbolBlue, SymbolGreen, SymbolBlue}, 0},
		{"no match", Reels{SymbolBlue, SymbolGreen, SymbolPurple}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payout(tt.reels))
		})
	}
}

func TestNet(t *testing.T) {
	assert.Equal(t, int64(-50), Net(Reels{SymbolBlue, SymbolGreen, SymbolPurple}))
	assert.Equal(t, int64(0), Net(Reels{SymbolBlue, SymbolBlue, SymbolGreen}))
	assert.Equal(t, int64(100), Net(Reels{SymbolBlue, SymbolBlue, SymbolBlue}))
}

func TestParseReels(t *testing.T) {
	reels := Reels{SymbolGreen, SymbolBlue, SymbolPurple}
	parsed, err := ParseReels(reels.String())
	assert.NoError(t, err)
	assert.Equal(t, reels, parsed)

	_, err = ParseReels("green,blue")
	assert.Error(t, err)
	_, err = ParseReels("green,blue,gold")
	assert.Error(t, err)
	_, err = ParseReels("")
	assert.Error(t, err)
}
