package config

import (
	"strconv"
	"strings"
)

var defaultTiers = []float64{50, 100, 150}

// parseTiers accepts either a list from viper or a single comma separated
// value from the environment ("50,100,150").
func parseTiers(raw []string) []float64 {
	var tiers []float64
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(part, 64)
			if err != nil || v < 0 {
				return defaultTiers
			}
			tiers = append(tiers, v)
		}
	}
	if len(tiers) == 0 {
		return defaultTiers
	}
	return tiers
}
