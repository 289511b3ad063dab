package matching

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

type offerEntry struct {
	offer    domain.SkillOffer
	consumed bool
}

type requestEntry struct {
	request  domain.SkillRequest
	consumed bool
}

// Pool is the authoritative in-process set of open skill offers and requests.
// All mutation goes through its methods; a single mutex serializes writes so
// that ConsumePair is atomic. Two concurrent propose calls racing on the same
// offer see exactly one success and one ErrAlreadyMatched.
type Pool struct {
	mu       sync.Mutex
	offers   map[string]*offerEntry
	requests map[string]*requestEntry
	// tombstones holds IDs withdrawn or discarded in this process, so a Merge
	// of stale repository rows cannot resurrect them.
	tombstones map[string]struct{}
	publisher  pubsub.Publisher
	logger     *slog.Logger
}

// NewPool creates an empty pool. The publisher receives pool lifecycle events
// and may be nil in tests.
func NewPool(publisher pubsub.Publisher) *Pool {
	return &Pool{
		offers:     make(map[string]*offerEntry),
		requests:   make(map[string]*requestEntry),
		tombstones: make(map[string]struct{}),
		publisher:  publisher,
		logger:     slog.Default().With("service", "pool"),
	}
}

// PublishOffer adds a new offer to the matchable pool, assigning its ID and
// creation time.
func (p *Pool) PublishOffer(ctx context.Context, offer domain.SkillOffer) (domain.SkillOffer, error) {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = Now()
	}

	p.mu.Lock()
	p.offers[offer.ID] = &offerEntry{offer: offer}
	p.mu.Unlock()

	p.logger.Info("Offer published", "offer_id", offer.ID, "user_id", offer.UserID, "skill", offer.SkillName)
	p.emitOfferPublished(ctx, offer)
	return offer, nil
}

// PublishRequest adds a new request to the matchable pool, assigning its ID
// and creation time.
func (p *Pool) PublishRequest(ctx context.Context, req domain.SkillRequest) (domain.SkillRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = Now()
	}

	p.mu.Lock()
	p.requests[req.ID] = &requestEntry{request: req}
	p.mu.Unlock()

	p.logger.Info("Request published", "request_id", req.ID, "user_id", req.UserID, "skill", req.SkillName)
	p.emitRequestPublished(ctx, req)
	return req, nil
}

// WithdrawOffer removes an open offer. Only its owner may withdraw it; an
// offer already consumed by a match cannot be withdrawn.
func (p *Pool) WithdrawOffer(offerID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.offers[offerID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.offer.UserID != userID {
		return domain.ErrInvalidParticipant
	}
	if entry.consumed {
		return domain.ErrAlreadyMatched
	}
	delete(p.offers, offerID)
	p.tombstones[offerID] = struct{}{}
	return nil
}

// WithdrawRequest removes an open request under the same rules as WithdrawOffer.
func (p *Pool) WithdrawRequest(requestID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.requests[requestID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.request.UserID != userID {
		return domain.ErrInvalidParticipant
	}
	if entry.consumed {
		return domain.ErrAlreadyMatched
	}
	delete(p.requests, requestID)
	p.tombstones[requestID] = struct{}{}
	return nil
}

// GetRequest returns an open request by ID.
func (p *Pool) GetRequest(requestID string) (domain.SkillRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.requests[requestID]
	if !ok {
		return domain.SkillRequest{}, domain.ErrNotFound
	}
	if entry.consumed {
		return domain.SkillRequest{}, domain.ErrAlreadyMatched
	}
	return entry.request, nil
}

// Snapshot returns a copy of all open (unconsumed) offers and requests.
// The matcher runs over this copy and never touches pool state.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Offers:   make([]domain.SkillOffer, 0, len(p.offers)),
		Requests: make([]domain.SkillRequest, 0, len(p.requests)),
	}
	for _, entry := range p.offers {
		if !entry.consumed {
			snap.Offers = append(snap.Offers, entry.offer)
		}
	}
	for _, entry := range p.requests {
		if !entry.consumed {
			snap.Requests = append(snap.Requests, entry.request)
		}
	}
	return snap
}

// Merge adds offers and requests loaded from the repository that are not yet
// known to the pool. Existing entries keep their consumed state; entries
// withdrawn or discarded in this process stay gone even when the repository
// still reports them open.
func (p *Pool) Merge(offers []domain.SkillOffer, requests []domain.SkillRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, offer := range offers {
		if _, gone := p.tombstones[offer.ID]; gone {
			continue
		}
		if _, ok := p.offers[offer.ID]; !ok {
			p.offers[offer.ID] = &offerEntry{offer: offer}
		}
	}
	for _, req := range requests {
		if _, gone := p.tombstones[req.ID]; gone {
			continue
		}
		if _, ok := p.requests[req.ID]; !ok {
			p.requests[req.ID] = &requestEntry{request: req}
		}
	}
}

// ConsumePair atomically marks a request and an offer as consumed by a match.
// If either is missing it returns ErrNotFound; if either was already consumed
// by a concurrent match it returns ErrAlreadyMatched and leaves both untouched.
func (p *Pool) ConsumePair(requestID, offerID string) (domain.SkillRequest, domain.SkillOffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reqEntry, ok := p.requests[requestID]
	if !ok {
		return domain.SkillRequest{}, domain.SkillOffer{}, domain.ErrNotFound
	}
	offerEntry, ok := p.offers[offerID]
	if !ok {
		return domain.SkillRequest{}, domain.SkillOffer{}, domain.ErrNotFound
	}
	if reqEntry.consumed || offerEntry.consumed {
		return domain.SkillRequest{}, domain.SkillOffer{}, domain.ErrAlreadyMatched
	}

	reqEntry.consumed = true
	offerEntry.consumed = true
	return reqEntry.request, offerEntry.offer, nil
}

// Release returns a consumed pair to the matchable pool, used when a pending
// session is rejected or cancelled before acceptance.
func (p *Pool) Release(requestID, offerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.requests[requestID]; ok {
		entry.consumed = false
	}
	if entry, ok := p.offers[offerID]; ok {
		entry.consumed = false
	}
}

// Discard permanently removes a consumed pair, used when its session reaches a
// terminal state that does not return the pair to the pool.
func (p *Pool) Discard(requestID, offerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.requests, requestID)
	delete(p.offers, offerID)
	p.tombstones[requestID] = struct{}{}
	p.tombstones[offerID] = struct{}{}
}

// MutualSkill returns the skill the requester can teach the offer owner in
// return, when the pairing is a bidirectional exchange.
func (p *Pool) MutualSkill(requesterID, offerOwnerID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, reqEntry := range p.requests {
		if reqEntry.request.UserID != offerOwnerID || reqEntry.consumed {
			continue
		}
		for _, offEntry := range p.offers {
			if offEntry.offer.UserID != requesterID || offEntry.consumed {
				continue
			}
			if offEntry.offer.SkillName == reqEntry.request.SkillName &&
				offEntry.offer.ProficiencyLevel >= reqEntry.request.DesiredProficiency {
				return offEntry.offer.SkillName, true
			}
		}
	}
	return "", false
}

func (p *Pool) emitOfferPublished(ctx context.Context, offer domain.SkillOffer) {
	if p.publisher == nil {
		return
	}
	err := pubsub.Publish(ctx, p.publisher, EventOfferPublished, OfferPublished{
		OfferID:   offer.ID,
		UserID:    offer.UserID,
		SkillName: offer.SkillName,
	})
	if err != nil {
		p.logger.Error("Failed to publish offer event", "offer_id", offer.ID, "error", err)
	}
}

func (p *Pool) emitRequestPublished(ctx context.Context, req domain.SkillRequest) {
	if p.publisher == nil {
		return
	}
	err := pubsub.Publish(ctx, p.publisher, EventRequestPublished, RequestPublished{
		RequestID: req.ID,
		UserID:    req.UserID,
		SkillName: req.SkillName,
	})
	if err != nil {
		p.logger.Error("Failed to publish request event", "request_id", req.ID, "error", err)
	}
}
