package billing

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. The values are totally ordered, so
// "every tier at or above the required one" is well defined.
type Tier int

const (
	TierTrial Tier = iota
	TierBronze
	TierSilver
	TierGold
)

var tierNames = map[Tier]string{
	TierTrial:  "trial",
	TierBronze: "bronze",
	TierSilver: "silver",
	TierGold:   "gold",
}

// Tiers returns every tier in ascending order.
func Tiers() []Tier {
	return []Tier{TierTrial, TierBronze, TierSilver, TierGold}
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func ParseTier(value string) (Tier, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for t, name := range tierNames {
		if name == value {
			return t, nil
		}
	}
	return TierTrial, fmt.Errorf("unknown tier %q", value)
}

// AtOrAbove returns every tier that satisfies a minimal-tier requirement.
func AtOrAbove(min Tier) []Tier {
	var out []Tier
	for _, t := range Tiers() {
		if t >= min {
			out = append(out, t)
		}
	}
	return out
}
