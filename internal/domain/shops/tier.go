package shops

// Tier constants (single source of truth)
const (
	TierNone     = "none"
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

type threshold struct {
	Tier     string
	MinCents int64
}

// Ordered highest first. Amounts are in cents (R1,000 / R5,000 / R20,000 / R50,000).
var tierThresholds = []threshold{
	{TierPlatinum, 5_000_000},
	{TierGold, 2_000_000},
	{TierSilver, 500_000},
	{TierBronze, 100_000},
}

// LoyaltyTier derives the tier purely from total spend.
func LoyaltyTier(spentCents int64) string {
	for _, t := range tierThresholds {
		if spentCents >= t.MinCents {
			return t.Tier
		}
	}
	return TierNone
}

// NextTier returns the tier above the one reached with spentCents and the
// cents still missing to get there. Platinum has no next tier.
func NextTier(spentCents int64) (string, int64) {
	next := ""
	var min int64
	for _, t := range tierThresholds {
		if spentCents >= t.MinCents {
			break
		}
		next, min = t.Tier, t.MinCents
	}
	if next == "" {
		return "", 0
	}
	return next, min - spentCents
}
