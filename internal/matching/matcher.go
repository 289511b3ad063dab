package matching

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
)

// Snapshot is an immutable view of the matchable pool at one point in time.
// FindCandidates is stateless over the snapshot passed in and never mutates it.
type Snapshot struct {
	Offers   []domain.SkillOffer
	Requests []domain.SkillRequest
}

// Candidate is a qualifying offer together with the ranking signals that
// placed it.
type Candidate struct {
	Offer domain.SkillOffer `json:"offer"`
	// Mutual is true when the offer owner's own unmet request is satisfied by
	// something the requester offers, i.e. a bidirectional exchange.
	Mutual bool `json:"mutual"`
	// Overlap is the total shared availability between request and offer.
	Overlap time.Duration `json:"overlapNanos"`
}

// FindCandidates returns the offers qualifying for the request, best first.
//
// An offer qualifies when it teaches the requested skill at or above the
// desired proficiency and does not belong to the requester. Ranking is
// lexicographic: mutual exchanges outrank one-directional ones regardless of
// other signals, then larger availability overlap, then earliest offer
// creation time for fairness.
//
// An empty result means no candidate qualifies; it is not an error.
func FindCandidates(req domain.SkillRequest, snap Snapshot) []Candidate {
	qualifying := lo.Filter(snap.Offers, func(offer domain.SkillOffer, _ int) bool {
		return offer.SkillName == req.SkillName &&
			offer.ProficiencyLevel >= req.DesiredProficiency &&
			offer.UserID != req.UserID
	})

	candidates := lo.Map(qualifying, func(offer domain.SkillOffer, _ int) Candidate {
		return Candidate{
			Offer:   offer,
			Mutual:  isMutual(req, offer, snap),
			Overlap: domain.OverlapTotal(req.Availability, offer.Availability),
		}
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Mutual != b.Mutual {
			return a.Mutual
		}
		if a.Overlap != b.Overlap {
			return a.Overlap > b.Overlap
		}
		return a.Offer.CreatedAt.Before(b.Offer.CreatedAt)
	})

	return candidates
}

// isMutual reports whether the offer owner has an open request that the
// requester's own open offers can satisfy.
func isMutual(req domain.SkillRequest, offer domain.SkillOffer, snap Snapshot) bool {
	for _, counterReq := range snap.Requests {
		if counterReq.UserID != offer.UserID {
			continue
		}
		for _, counterOffer := range snap.Offers {
			if counterOffer.UserID != req.UserID {
				continue
			}
			if counterOffer.SkillName == counterReq.SkillName &&
				counterOffer.ProficiencyLevel >= counterReq.DesiredProficiency {
				return true
			}
		}
	}
	return false
}
