package callerid

import (
	"math/rand"
	"sort"
	"time"
)

// Pure selection logic over an already-fetched candidate set. Pool sizes
// are small (tens to low hundreds), so everything here is simple
// in-memory iteration.

// eligibleCandidates keeps numbers that may place calls right now:
// active, or cooling_down with an elapsed cooldown (eligibility does not
// wait for the sweep to flip the status).
func eligibleCandidates(numbers []Number, now time.Time) []Number {
	var out []Number
	for _, n := range numbers {
		switch n.Status {
		case StatusActive:
			out = append(out, n)
		case StatusCoolingDown:
			if n.CooldownUntil != nil && !n.CooldownUntil.After(now) {
				out = append(out, n)
			}
		}
	}
	return out
}

// filterByAreaCode narrows candidates to exact area-code matches. Local
// presence is best-effort: callers fall back to the full set when this
// returns empty.
func filterByAreaCode(candidates []Number, areaCode string) []Number {
	var out []Number
	for _, n := range candidates {
		if n.AreaCode == areaCode {
			out = append(out, n)
		}
	}
	return out
}

// pickByStrategy selects one candidate. candidates must be non-empty.
//
// round_robin and least_recently_used are deliberately the same policy:
// both take the candidate with the oldest (or unset) LastUsedAt. A
// fixed-cycle round robin would need a persisted cursor the data model
// does not carry.
func pickByStrategy(candidates []Number, strategy RotationStrategy, rng *rand.Rand) Number {
	switch strategy {
	case RotationRandom:
		return candidates[rng.Intn(len(candidates))]
	case RotationWeighted:
		return pickWeighted(candidates, rng)
	default: // round_robin, least_recently_used
		return pickLeastRecentlyUsed(candidates)
	}
}

func pickLeastRecentlyUsed(candidates []Number) Number {
	sorted := make([]Number, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].LastUsedAt, sorted[j].LastUsedAt
		switch {
		case a == nil && b == nil:
			return sorted[i].ID < sorted[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return sorted[i].ID < sorted[j].ID
		}
	})
	return sorted[0]
}

// pickWeighted draws proportionally to reputation score via a cumulative
// walk. If every candidate has zero reputation, the draw is uniform.
func pickWeighted(candidates []Number, rng *rand.Rand) Number {
	var total int
	for _, n := range candidates {
		if n.ReputationScore > 0 {
			total += n.ReputationScore
		}
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))]
	}

	r := rng.Intn(total) // 0..total-1
	var acc int
	for _, n := range candidates {
		if n.ReputationScore <= 0 {
			continue
		}
		acc += n.ReputationScore
		if r < acc {
			return n
		}
	}
	return candidates[len(candidates)-1]
}

// applyDailyCap retries selection among under-cap candidates when the
// first pick already hit maxCalls today. When every candidate is at the
// cap, the least-used one is returned anyway: availability wins over
// strict cap enforcement.
func applyDailyCap(selected Number, candidates []Number, maxCalls int, strategy RotationStrategy, rng *rand.Rand) Number {
	if maxCalls <= 0 || selected.CallsToday < maxCalls {
		return selected
	}

	var under []Number
	for _, n := range candidates {
		if n.CallsToday < maxCalls {
			under = append(under, n)
		}
	}
	if len(under) > 0 {
		return pickByStrategy(under, strategy, rng)
	}

	least := candidates[0]
	for _, n := range candidates[1:] {
		if n.CallsToday < least.CallsToday {
			least = n
		}
	}
	return least
}
