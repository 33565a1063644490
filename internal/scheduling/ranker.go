package scheduling

import (
	"sort"
	"time"
)

// DefaultNoShowScore is assumed when a patient has no recorded score, or no
// patient was supplied with the request.
const DefaultNoShowScore = 50

// Scoring adjustments. Tags travel with each slot so callers can see why a
// slot ranked where it did.
const (
	baseScore = 50

	lateAfternoonBonus = 8
	midMorningBonus    = 5
	riskyNearTermMalus = -12
	precedingGapBonus  = 4

	ReasonLateAfternoon = "tarde_temprana"
	ReasonMidMorning    = "media_manana"
	ReasonRiskyNearTerm = "riesgo_cercano"
	ReasonPrecedingGap  = "holgura_previa"
)

const (
	highRiskThreshold = 70
	nearTermHorizon   = 24 * time.Hour
	minPrecedingGap   = 60 * time.Minute
)

// RankCandidates scores candidates in place and returns them ordered by
// descending score, ties broken by ascending start. Adjustments are additive
// and evaluated independently:
//
//   - +8 when the local start hour falls in [15,18)
//   - +5 when the local start hour falls in [9,11)
//   - -12 when riskScore >= 70 and the slot starts within 24h of now
//   - +4 when the gap from the preceding same-day appointment's end is at
//     least 60 minutes; no preceding appointment counts as satisfying it
//
// The risk signal only moves slots down the list; it never removes them.
func RankCandidates(cands []CandidateSlot, riskScore int, now time.Time, dayAppts []Appointment, loc *time.Location) []CandidateSlot {
	occupied := make([]Appointment, 0, len(dayAppts))
	for _, a := range dayAppts {
		if a.Status.Occupies() {
			occupied = append(occupied, a)
		}
	}

	for i := range cands {
		score := baseScore
		var reasons []string

		hour := cands[i].Start.In(loc).Hour()
		if hour >= 15 && hour < 18 {
			score += lateAfternoonBonus
			reasons = append(reasons, ReasonLateAfternoon)
		}
		if hour >= 9 && hour < 11 {
			score += midMorningBonus
			reasons = append(reasons, ReasonMidMorning)
		}
		if riskScore >= highRiskThreshold && cands[i].Start.Before(now.Add(nearTermHorizon)) {
			score += riskyNearTermMalus
			reasons = append(reasons, ReasonRiskyNearTerm)
		}
		if hasPrecedingGap(cands[i].Start, occupied) {
			score += precedingGapBonus
			reasons = append(reasons, ReasonPrecedingGap)
		}

		cands[i].Score = score
		cands[i].Reasons = reasons
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Start.Before(cands[j].Start)
	})

	return cands
}

// hasPrecedingGap checks the distance between the slot start and the end of
// the latest appointment finishing at or before it.
func hasPrecedingGap(start time.Time, appts []Appointment) bool {
	var prevEnd time.Time
	found := false
	for _, a := range appts {
		if a.EndsAt.After(start) {
			continue
		}
		if !found || a.EndsAt.After(prevEnd) {
			prevEnd = a.EndsAt
			found = true
		}
	}
	if !found {
		return true
	}
	return start.Sub(prevEnd) >= minPrecedingGap
}
