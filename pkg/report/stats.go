package report

import (
	"strings"

	"github.com/mrlobot/discord-bot/pkg/errs"
)

// StatKind is the closed set of stats a sheet can be reported on.
type StatKind int

const (
	StatPower StatKind = iota + 1
	StatRelic
)

// Relic tiers 1 and 2 are regular gear levels, relic levels start at tier 3.
const relicTierOffset = 2

func SupportedKinds() []StatKind {
	return []StatKind{StatPower, StatRelic}
}

func (k StatKind) String() string {
	switch k {
	case StatPower:
		return "power"
	case StatRelic:
		return "relic"
	default:
		return "unknown"
	}
}

func (k StatKind) Label() string {
	switch k {
	case StatPower:
		return "Galactic Power"
	case StatRelic:
		return "Unit relic level"
	default:
		return "Unknown"
	}
}

// Extract reads the stat of one unit. Missing values count as zero.
func (k StatKind) Extract(u UnitStats) float64 {
	switch k {
	case StatPower:
		return u.Power
	case StatRelic:
		if u.RelicTier == nil {
			return 0
		}
		return float64(max(*u.RelicTier-relicTierOffset, 0))
	default:
		return 0
	}
}

func ParseStatKind(raw string) (StatKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "power", "pg", "gp":
		return StatPower, nil
	case "relic":
		return StatRelic, nil
	default:
		return 0, &errs.ValidationError{Field: "stat", Value: raw}
	}
}

// ParseStatKinds splits a comma separated option list. Unknown options are
// returned apart so the caller can report them and carry on with the rest.
func ParseStatKinds(raw string) ([]StatKind, []string) {
	var (
		kinds   []StatKind
		invalid []string
	)
	seen := make(map[StatKind]bool)

	for _, opt := range strings.Split(raw, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}

		kind, err := ParseStatKind(opt)
		if err != nil {
			invalid = append(invalid, opt)
			continue
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}

	return kinds, invalid
}
