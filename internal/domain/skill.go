package domain

import "time"

// TimeWindow is a half-open availability interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the window, or zero for degenerate windows.
func (w TimeWindow) Duration() time.Duration {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

// Overlap returns the duration shared between two windows.
func (w TimeWindow) Overlap(other TimeWindow) time.Duration {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := w.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// OverlapTotal sums the pairwise overlap between two availability sets.
// Windows within one set are assumed not to overlap each other.
func OverlapTotal(a, b []TimeWindow) time.Duration {
	var total time.Duration
	for _, wa := range a {
		for _, wb := range b {
			total += wa.Overlap(wb)
		}
	}
	return total
}

// SkillOffer is a published offer to teach a skill. It lives in the matchable
// pool until its owner withdraws it or it is consumed by an accepted match.
type SkillOffer struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	SkillName        string       `json:"skillName"`
	ProficiencyLevel int          `json:"proficiencyLevel"`
	Availability     []TimeWindow `json:"availability"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// SkillRequest is a published request to learn a skill. One request may yield
// several candidate matches but is consumed by exactly one accepted match.
type SkillRequest struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"userId"`
	SkillName          string       `json:"skillName"`
	DesiredProficiency int          `json:"desiredProficiency"`
	Availability       []TimeWindow `json:"availability"`
	CreatedAt          time.Time    `json:"createdAt"`
}
