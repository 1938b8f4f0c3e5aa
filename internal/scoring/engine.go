package scoring

import (
	"math"
	"sort"
	"time"

	"dialer-platform/internal/leads"
)

// Pure score computation. Deterministic given features, model and the
// current time; the service injects its clock so tests can pin the moment.

// bestSlotMinProbability is the cutoff for a slot to count as a good call
// window, both when ranking slots and when answering "is now a good time".
const bestSlotMinProbability = 0.7

const maxBestSlots = 10

// calculateScore walks the weighted heuristic:
//
//  1. base 50
//  2. dial-attempt penalty
//  3. recency boost decaying linearly to zero at 30 days
//  4. disposition-history term (weighted average of per-code scores)
//  5. time-of-day and day-of-week multipliers at the moment of scoring,
//     in the lead's timezone
//  6. clamp to [0,100]
func calculateScore(f LeadFeatures, m ScoringModel, now time.Time) (score int, contactProb, conversionProb float64) {
	s := 50.0

	s += float64(f.DialAttempts) * m.FeatureWeights.DialAttempts

	if f.RecencyDays > 0 {
		recencyFactor := math.Max(0, 30-f.RecencyDays) / 30
		s += recencyFactor * m.FeatureWeights.RecencyDays * 10
	}

	if total := countOutcomes(f.PreviousOutcomes); total > 0 {
		var weighted float64
		for code, n := range f.PreviousOutcomes {
			// unknown codes contribute zero, never fail
			weighted += m.DispositionScores[code] * float64(n)
		}
		avg := weighted / float64(total)
		s += avg * m.FeatureWeights.PreviousOutcomes / 10
	}

	local := localTime(f.Timezone, now)
	timeMult := m.TimeSlotMultipliers[local.Hour()]
	dayMult := m.DayOfWeekMultipliers[int(local.Weekday())]
	s *= timeMult * dayMult

	score = int(math.Round(clamp(s, 0, 100)))

	contactProb = clamp(float64(score)/100*timeMult*dayMult, 0, 1)

	conversionProb = 0.5
	if f.PositiveOutcomes+f.NegativeOutcomes > 0 {
		conversionProb = float64(f.PositiveOutcomes) / float64(f.PositiveOutcomes+f.NegativeOutcomes)
	}

	return score, contactProb, conversionProb
}

// calculateBestTimeSlots ranks business-hour call windows by the model's
// multipliers. Only slots reaching bestSlotMinProbability are returned,
// at most maxBestSlots, sorted by probability descending.
func calculateBestTimeSlots(m ScoringModel) []TimeSlot {
	var slots []TimeSlot
	for day := 0; day < 7; day++ {
		for hour := 8; hour <= 20; hour++ {
			p := math.Min(1, m.TimeSlotMultipliers[hour]*m.DayOfWeekMultipliers[day]/1.5)
			if p >= bestSlotMinProbability {
				slots = append(slots, TimeSlot{DayOfWeek: day, Hour: hour, Probability: p})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Probability != slots[j].Probability {
			return slots[i].Probability > slots[j].Probability
		}
		if slots[i].DayOfWeek != slots[j].DayOfWeek {
			return slots[i].DayOfWeek < slots[j].DayOfWeek
		}
		return slots[i].Hour < slots[j].Hour
	})
	if len(slots) > maxBestSlots {
		slots = slots[:maxBestSlots]
	}
	return slots
}

// localTime converts now into the lead's wall clock. Invalid timezone
// strings fall back to server-local time; this path never errors.
func localTime(tz string, now time.Time) time.Time {
	if tz == "" {
		return now
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return now
	}
	return now.In(loc)
}

func countOutcomes(hist map[leads.DispositionCode]int) int {
	var n int
	for _, c := range hist {
		n += c
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
