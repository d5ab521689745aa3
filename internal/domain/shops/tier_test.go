package shops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoyaltyTier(t *testing.T) {
	cases := map[int64]string{
		0:          TierNone,
		99_999:     TierNone,
		100_000:    TierBronze,
		499_999:    TierBronze,
		500_000:    TierSilver,
		2_000_000:  TierGold,
		4_999_999:  TierGold,
		5_000_000:  TierPlatinum,
		90_000_000: TierPlatinum,
	}
	for spent, want := range cases {
		assert.Equal(t, want, LoyaltyTier(spent), "spent=%d", spent)
	}
}

func TestNextTier(t *testing.T) {
	tier, missing := NextTier(0)
	assert.Equal(t, TierBronze, tier)
	assert.Equal(t, int64(100_000), missing)

	tier, missing = NextTier(600_000)
	assert.Equal(t, TierGold, tier)
	assert.Equal(t, int64(1_400_000), missing)

	tier, missing = NextTier(5_000_000)
	assert.Equal(t, "", tier)
	assert.Zero(t, missing)
}
