package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/middleware"
)

// fakeRepo serves canned durable offers and records nothing.
type fakeRepo struct {
	offers []domain.SkillOffer
}

func (f *fakeRepo) LoadOpenOffers(ctx context.Context, skillName string) ([]domain.SkillOffer, error) {
	var out []domain.SkillOffer
	for _, offer := range f.offers {
		if offer.SkillName == skillName {
			out = append(out, offer)
		}
	}
	return out, nil
}

func (f *fakeRepo) LoadOpenRequests(ctx context.Context, skillName string) ([]domain.SkillRequest, error) {
	return nil, nil
}

func (f *fakeRepo) SaveSession(ctx context.Context, session *domain.ExchangeSession) error {
	return nil
}

func (f *fakeRepo) AppendChatLog(ctx context.Context, sessionID string, msg domain.ChatMessage) error {
	return nil
}

type fixture struct {
	e       *echo.Echo
	handler *ExchangeHandler
	pool    *matching.Pool
	manager *exchange.Manager
}

func newFixture(repo domain.Repository) *fixture {
	e := echo.New()
	e.Validator = NewValidator()

	pool := matching.NewPool(nil)
	manager := exchange.NewManager(pool, repo, nil)
	return &fixture{
		e:       e,
		handler: NewExchangeHandler(pool, manager, repo, nil),
		pool:    pool,
		manager: manager,
	}
}

// request builds an authenticated echo context the way the auth middleware
// would leave it.
func (f *fixture) request(method, target, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.Set(middleware.UserContextKey, userID)
	return c, rec
}

func TestPublishOffer(t *testing.T) {
	f := newFixture(&fakeRepo{})

	t.Run("valid offer", func(t *testing.T) {
		c, rec := f.request(http.MethodPost, "/api/offers",
			`{"skillName":"guitar","proficiencyLevel":4}`, "bob")
		require.NoError(t, f.handler.PublishOffer(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var offer domain.SkillOffer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offer))
		assert.NotEmpty(t, offer.ID)
		assert.Equal(t, "bob", offer.UserID)
	})

	t.Run("proficiency out of range", func(t *testing.T) {
		c, rec := f.request(http.MethodPost, "/api/offers",
			`{"skillName":"guitar","proficiencyLevel":9}`, "bob")
		require.NoError(t, f.handler.PublishOffer(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing skill name", func(t *testing.T) {
		c, rec := f.request(http.MethodPost, "/api/offers",
			`{"proficiencyLevel":3}`, "bob")
		require.NoError(t, f.handler.PublishOffer(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWithdrawOffer(t *testing.T) {
	f := newFixture(&fakeRepo{})
	offer, err := f.pool.PublishOffer(context.Background(), domain.SkillOffer{UserID: "bob", SkillName: "guitar"})
	require.NoError(t, err)

	t.Run("not the owner", func(t *testing.T) {
		c, rec := f.request(http.MethodDelete, "/api/offers/"+offer.ID, "", "mallory")
		c.SetParamNames("id")
		c.SetParamValues(offer.ID)
		require.NoError(t, f.handler.WithdrawOffer(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner withdraws", func(t *testing.T) {
		c, rec := f.request(http.MethodDelete, "/api/offers/"+offer.ID, "", "bob")
		c.SetParamNames("id")
		c.SetParamValues(offer.ID)
		require.NoError(t, f.handler.WithdrawOffer(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("already withdrawn", func(t *testing.T) {
		c, rec := f.request(http.MethodDelete, "/api/offers/"+offer.ID, "", "bob")
		c.SetParamNames("id")
		c.SetParamValues(offer.ID)
		require.NoError(t, f.handler.WithdrawOffer(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPublishRequest_ReturnsCandidates(t *testing.T) {
	// One matching offer lives only in the durable store; the handler must
	// merge it into the pool before matching.
	repo := &fakeRepo{offers: []domain.SkillOffer{
		{ID: "offer-db", UserID: "carol", SkillName: "guitar", ProficiencyLevel: 5},
	}}
	f := newFixture(repo)

	_, err := f.pool.PublishOffer(context.Background(), domain.SkillOffer{UserID: "bob", SkillName: "guitar", ProficiencyLevel: 3})
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/api/requests",
		`{"skillName":"guitar","desiredProficiency":3}`, "alice")
	require.NoError(t, f.handler.PublishRequest(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Request    domain.SkillRequest  `json:"request"`
		Candidates []matching.Candidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Request.UserID)
	assert.Len(t, body.Candidates, 2)
}

func TestListCandidates_OwnerOnly(t *testing.T) {
	f := newFixture(&fakeRepo{})
	req, err := f.pool.PublishRequest(context.Background(), domain.SkillRequest{UserID: "alice", SkillName: "guitar", DesiredProficiency: 2})
	require.NoError(t, err)

	c, rec := f.request(http.MethodGet, "/api/requests/"+req.ID+"/matches", "", "mallory")
	c.SetParamNames("id")
	c.SetParamValues(req.ID)
	require.NoError(t, f.handler.ListCandidates(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// proposeSession publishes a matching pair and proposes the session through
// the handler, returning the created session.
func proposeSession(t *testing.T, f *fixture) domain.ExchangeSession {
	t.Helper()
	ctx := context.Background()

	offer, err := f.pool.PublishOffer(ctx, domain.SkillOffer{UserID: "bob", SkillName: "guitar", ProficiencyLevel: 3})
	require.NoError(t, err)
	req, err := f.pool.PublishRequest(ctx, domain.SkillRequest{UserID: "alice", SkillName: "guitar", DesiredProficiency: 2})
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/api/sessions",
		`{"requestId":"`+req.ID+`","offerId":"`+offer.ID+`"}`, "alice")
	require.NoError(t, f.handler.Propose(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var session domain.ExchangeSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func TestPropose(t *testing.T) {
	f := newFixture(&fakeRepo{})
	session := proposeSession(t, f)

	assert.Equal(t, domain.StatePending, session.State)
	assert.Equal(t, "alice", session.ParticipantA)
	assert.Equal(t, "bob", session.ParticipantB)
}

func TestPropose_OnlyRequestOwner(t *testing.T) {
	f := newFixture(&fakeRepo{})
	ctx := context.Background()

	offer, _ := f.pool.PublishOffer(ctx, domain.SkillOffer{UserID: "bob", SkillName: "guitar"})
	req, _ := f.pool.PublishRequest(ctx, domain.SkillRequest{UserID: "alice", SkillName: "guitar"})

	c, rec := f.request(http.MethodPost, "/api/sessions",
		`{"requestId":"`+req.ID+`","offerId":"`+offer.ID+`"}`, "mallory")
	require.NoError(t, f.handler.Propose(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPropose_ConsumedPairConflicts(t *testing.T) {
	f := newFixture(&fakeRepo{})
	session := proposeSession(t, f)

	// The pair is consumed; proposing it again conflicts.
	c, rec := f.request(http.MethodPost, "/api/sessions",
		`{"requestId":"`+session.RequestID+`","offerId":"`+session.OfferID+`"}`, "alice")
	require.NoError(t, f.handler.Propose(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := newFixture(&fakeRepo{})
	session := proposeSession(t, f)

	post := func(action, userID string) *httptest.ResponseRecorder {
		c, rec := f.request(http.MethodPost, "/api/sessions/"+session.ID+"/"+action, "", userID)
		c.SetParamNames("id")
		c.SetParamValues(session.ID)
		var err error
		switch action {
		case "accept":
			err = f.handler.Accept(c)
		case "reject":
			err = f.handler.Reject(c)
		case "complete":
			err = f.handler.Complete(c)
		}
		require.NoError(t, err)
		return rec
	}

	t.Run("requester cannot accept", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, post("accept", "alice").Code)
	})

	t.Run("offer owner accepts", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, post("accept", "bob").Code)
	})

	t.Run("complete before active conflicts", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, post("complete", "alice").Code)
	})

	t.Run("complete after activation", func(t *testing.T) {
		require.NoError(t, f.manager.Activate(context.Background(), session.ID))
		assert.Equal(t, http.StatusNoContent, post("complete", "bob").Code)
	})

	t.Run("reject after completion conflicts", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, post("reject", "bob").Code)
	})
}

func TestCancel_RecordsReason(t *testing.T) {
	f := newFixture(&fakeRepo{})
	session := proposeSession(t, f)

	c, rec := f.request(http.MethodPost, "/api/sessions/"+session.ID+"/cancel",
		`{"reason":"schedule conflict"}`, "alice")
	c.SetParamNames("id")
	c.SetParamValues(session.ID)
	require.NoError(t, f.handler.Cancel(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	final, err := f.manager.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, final.State)
	assert.Equal(t, "schedule conflict", final.Reason)
}

func TestGetSession_ParticipantsOnly(t *testing.T) {
	f := newFixture(&fakeRepo{})
	session := proposeSession(t, f)

	get := func(userID string) *httptest.ResponseRecorder {
		c, rec := f.request(http.MethodGet, "/api/sessions/"+session.ID, "", userID)
		c.SetParamNames("id")
		c.SetParamValues(session.ID)
		require.NoError(t, f.handler.GetSession(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("alice").Code)
	assert.Equal(t, http.StatusOK, get("bob").Code)
	assert.Equal(t, http.StatusForbidden, get("mallory").Code)
	assert.Equal(t, http.StatusNotFound, func() *httptest.ResponseRecorder {
		c, rec := f.request(http.MethodGet, "/api/sessions/missing", "", "alice")
		c.SetParamNames("id")
		c.SetParamValues("missing")
		require.NoError(t, f.handler.GetSession(c))
		return rec
	}().Code)
}
