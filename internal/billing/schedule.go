package billing

import (
	"fmt"
	"strings"
)

// Schedule maps service keys to their credit cost and minimal tier. It is
// built from configuration: tiers, services, and pricing change
// independently of code.
type Schedule struct {
	costs    map[string]int
	minTiers map[string]Tier
}

func NewSchedule(costs map[string]int, minTiers map[string]string) (Schedule, error) {
	s := Schedule{
		costs:    make(map[string]int, len(costs)),
		minTiers: make(map[string]Tier, len(minTiers)),
	}

	for service, cost := range costs {
		service = strings.ToLower(strings.TrimSpace(service))
		if cost < 0 {
			return Schedule{}, fmt.Errorf("negative cost for service %q", service)
		}
		s.costs[service] = cost
	}

	for service, name := range minTiers {
		service = strings.ToLower(strings.TrimSpace(service))
		tier, err := ParseTier(name)
		if err != nil {
			return Schedule{}, fmt.Errorf("service %q: %w", service, err)
		}
		s.minTiers[service] = tier
	}

	for service := range s.costs {
		if _, ok := s.minTiers[service]; !ok {
			return Schedule{}, fmt.Errorf("service %q has a cost but no minimal tier", service)
		}
	}

	return s, nil
}

func (s Schedule) Known(service string) bool {
	_, ok := s.minTiers[strings.ToLower(strings.TrimSpace(service))]
	return ok
}

func (s Schedule) Cost(service string) int {
	return s.costs[strings.ToLower(strings.TrimSpace(service))]
}

func (s Schedule) MinTier(service string) (Tier, bool) {
	tier, ok := s.minTiers[strings.ToLower(strings.TrimSpace(service))]
	return tier, ok
}
