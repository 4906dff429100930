// Package economy holds the pure derivation rules of the lantern economy:
// badge tiers, elder eligibility and display caps. Nothing here mutates
// state; callers persist whatever they derive.
package economy

// Badge is a display tier earned through participation.
type Badge string

const (
	BadgeNewcomer Badge = "newcomer"
	BadgeHelper   Badge = "helper"
	BadgeGuide    Badge = "guide"
	BadgeBeacon   Badge = "beacon"
	BadgeLuminary Badge = "luminary"
)

// tier thresholds, ordered ascending. BadgeFor picks the highest tier whose
// threshold is <= the completed-help count.
var badgeTiers = []struct {
	Threshold int64
	Badge     Badge
}{
	{0, BadgeNewcomer},
	{5, BadgeHelper},
	{15, BadgeGuide},
	{30, BadgeBeacon},
	{50, BadgeLuminary},
}

// BadgeFor returns the badge earned by a completed-help count.
func BadgeFor(completedHelpCount int64) Badge {
	badge := badgeTiers[0].Badge
	for _, tier := range badgeTiers {
		if completedHelpCount >= tier.Threshold {
			badge = tier.Badge
		}
	}
	return badge
}

// SupporterBadgeFor maps a donation tier to its badge. It is an independent
// track from the help-count badges; tier 0 earns nothing.
func SupporterBadgeFor(donationTier int) (Badge, bool) {
	switch donationTier {
	case 1:
		return BadgeHelper, true
	case 2:
		return BadgeGuide, true
	case 3:
		return BadgeBeacon, true
	default:
		return "", false
	}
}

// Badges returns a member's full badge set: the help-count badge unioned
// with the supporter badge, de-duplicated so a tier earned both ways shows
// once.
func Badges(completedHelpCount int64, donationTier int) []Badge {
	badges := []Badge{BadgeFor(completedHelpCount)}
	if supporter, ok := SupporterBadgeFor(donationTier); ok && supporter != badges[0] {
		badges = append(badges, supporter)
	}
	return badges
}

// IsElderEligible reports whether a member qualifies for elder status:
// enough completed exchanges, or enough accumulated trust. Elder status is
// monotonic; this function never "un-elects" and callers persist the
// promotion permanently.
func IsElderEligible(completedHelpCount, trustScore, helpThreshold, trustThreshold int64) bool {
	return completedHelpCount >= helpThreshold || trustScore >= trustThreshold
}

// DisplayTrustLevel clamps a trust level into [1, max] for display.
func DisplayTrustLevel(level, max int64) int64 {
	if level < 1 {
		return 1
	}
	if level > max {
		return max
	}
	return level
}

// WithinHoardLimit reports whether a balance is at or under the advisory
// hoard limit. The ledger never enforces this; it is surfaced to members as
// a nudge to keep lanterns circulating.
func WithinHoardLimit(balance, limit int64) bool {
	return balance <= limit
}
