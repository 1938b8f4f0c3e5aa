package scoring

import (
	"time"

	"dialer-platform/internal/leads"
)

// ExtractFeatures computes the scoring signals from a lead's raw dial and
// disposition history. It never fails: missing history yields zero-valued
// features.
func ExtractFeatures(l leads.LeadData, now time.Time) LeadFeatures {
	f := LeadFeatures{
		DialAttempts: l.DialAttempts,
		Timezone:     leads.TimezoneFor(l),
	}

	if l.LastDialedAt != nil && !l.LastDialedAt.IsZero() {
		days := now.Sub(*l.LastDialedAt).Hours() / 24
		if days > 0 {
			f.RecencyDays = days
		}
	}

	if len(l.Dispositions) == 0 {
		return f
	}

	f.PreviousOutcomes = make(map[leads.DispositionCode]int, len(l.Dispositions))
	var durationTotal, durationCount int
	for _, d := range l.Dispositions {
		f.PreviousOutcomes[d.Code]++
		if d.Code.IsPositive() {
			f.PositiveOutcomes++
		}
		if d.Code.IsNegative() {
			f.NegativeOutcomes++
		}
		if d.CallDurationSeconds > 0 {
			durationTotal += d.CallDurationSeconds
			durationCount++
		}
	}
	if durationCount > 0 {
		f.AvgCallDurationSeconds = float64(durationTotal) / float64(durationCount)
	}

	return f
}
