package access

import "strings"

// Tier is a subscription or content access level.
type Tier string

const (
	TierPublic          Tier = "public"
	TierRegistered      Tier = "registered"
	TierAcademicPremium Tier = "academic_premium"
)

// tiers is ordered from least to most restrictive. Membership checks are
// derived from positions in this list.
var tiers = []Tier{
	TierPublic,
	TierRegistered,
	TierAcademicPremium,
}

// Tiers returns the known tiers ordered from least to most restrictive.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Rank returns the position of the tier in the ordering, or -1 when the tier
// is not known.
func (t Tier) Rank() int {
	for i, known := range tiers {
		if known == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Satisfies reports whether a viewer holding t may access content that
// requires the given tier. Both tiers must be known.
func (t Tier) Satisfies(required Tier) bool {
	have, need := t.Rank(), required.Rank()
	if have < 0 || need < 0 {
		return false
	}
	return have >= need
}

// Eligible returns every tier that satisfies t, least restrictive first.
func (t Tier) Eligible() []Tier {
	r := t.Rank()
	if r < 0 {
		return nil
	}
	return Tiers()[r:]
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier normalizes case and surrounding space in s and reports whether it
// names a known tier. It is for operator input; stored levels go through
// ContentTier and ViewerTier, which match exactly.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ContentTier resolves the tier a content item requires. Values other than
// the exact tier names map to the most restrictive tier.
func ContentTier(level string) Tier {
	if t := Tier(level); t.Valid() {
		return t
	}
	return tiers[len(tiers)-1]
}

// ViewerTier resolves the tier a viewer holds. Values other than the exact
// tier names map to the least restrictive tier, which grants nothing beyond
// public content.
func ViewerTier(level string) Tier {
	if t := Tier(level); t.Valid() {
		return t
	}
	return tiers[0]
}
