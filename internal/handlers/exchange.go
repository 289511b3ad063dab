package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/middleware"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// ExchangeHandler exposes the engine boundary over HTTP: pool publication,
// candidate listing, and session lifecycle actions. It translates sentinel
// errors into user-visible responses; the engine itself never does.
type ExchangeHandler struct {
	pool      *matching.Pool
	manager   *exchange.Manager
	repo      domain.Repository
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewExchangeHandler creates the handler.
func NewExchangeHandler(pool *matching.Pool, manager *exchange.Manager, repo domain.Repository, publisher pubsub.Publisher) *ExchangeHandler {
	return &ExchangeHandler{
		pool:      pool,
		manager:   manager,
		repo:      repo,
		publisher: publisher,
		logger:    slog.Default().With("handler", "exchange"),
	}
}

// PublishOffer handles POST /api/offers.
func (h *ExchangeHandler) PublishOffer(c echo.Context) error {
	var req PublishOfferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	offer, err := h.pool.PublishOffer(c.Request().Context(), domain.SkillOffer{
		UserID:           middleware.UserID(c),
		SkillName:        req.SkillName,
		ProficiencyLevel: req.ProficiencyLevel,
		Availability:     toWindows(req.Availability),
	})
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, offer)
}

// WithdrawOffer handles DELETE /api/offers/:id.
func (h *ExchangeHandler) WithdrawOffer(c echo.Context) error {
	if err := h.pool.WithdrawOffer(c.Param("id"), middleware.UserID(c)); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// PublishRequest handles POST /api/requests. The response carries the ranked
// candidates so the requester can immediately propose; a match-found event is
// emitted when any candidate qualifies.
func (h *ExchangeHandler) PublishRequest(c echo.Context) error {
	var req PublishRequestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	ctx := c.Request().Context()
	request, err := h.pool.PublishRequest(ctx, domain.SkillRequest{
		UserID:             middleware.UserID(c),
		SkillName:          req.SkillName,
		DesiredProficiency: req.DesiredProficiency,
		Availability:       toWindows(req.Availability),
	})
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}

	candidates := h.candidatesFor(c, request)
	if len(candidates) > 0 && h.publisher != nil {
		err := pubsub.Publish(ctx, h.publisher, matching.EventMatchFound, matching.MatchFound{
			RequestID:      request.ID,
			RequesterID:    request.UserID,
			SkillName:      request.SkillName,
			CandidateCount: len(candidates),
		})
		if err != nil {
			h.logger.Error("Failed to publish match found event", "request_id", request.ID, "error", err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"request":    request,
		"candidates": candidates,
	})
}

// WithdrawRequest handles DELETE /api/requests/:id.
func (h *ExchangeHandler) WithdrawRequest(c echo.Context) error {
	if err := h.pool.WithdrawRequest(c.Param("id"), middleware.UserID(c)); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCandidates handles GET /api/requests/:id/matches.
func (h *ExchangeHandler) ListCandidates(c echo.Context) error {
	request, err := h.pool.GetRequest(c.Param("id"))
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	if request.UserID != middleware.UserID(c) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrInvalidParticipant.Error()})
	}
	return c.JSON(http.StatusOK, h.candidatesFor(c, request))
}

// Propose handles POST /api/sessions.
func (h *ExchangeHandler) Propose(c echo.Context) error {
	var req ProposeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	request, err := h.pool.GetRequest(req.RequestID)
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	if request.UserID != middleware.UserID(c) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrInvalidParticipant.Error()})
	}

	session, err := h.manager.Propose(c.Request().Context(), req.RequestID, req.OfferID)
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, session)
}

// Accept handles POST /api/sessions/:id/accept.
func (h *ExchangeHandler) Accept(c echo.Context) error {
	if err := h.manager.Accept(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Reject handles POST /api/sessions/:id/reject.
func (h *ExchangeHandler) Reject(c echo.Context) error {
	if err := h.manager.Reject(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Complete handles POST /api/sessions/:id/complete. Either participant may
// end the session.
func (h *ExchangeHandler) Complete(c echo.Context) error {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	if !session.HasParticipant(middleware.UserID(c)) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrInvalidParticipant.Error()})
	}

	if err := h.manager.Complete(c.Request().Context(), session.ID); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Cancel handles POST /api/sessions/:id/cancel. Either participant may cancel
// from any non-terminal state.
func (h *ExchangeHandler) Cancel(c echo.Context) error {
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	if !session.HasParticipant(middleware.UserID(c)) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrInvalidParticipant.Error()})
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by participant"
	}
	if err := h.manager.Cancel(c.Request().Context(), session.ID, reason); err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSession handles GET /api/sessions/:id, visible to participants only.
func (h *ExchangeHandler) GetSession(c echo.Context) error {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(statusFor(err), errorResponse{Error: err.Error()})
	}
	if !session.HasParticipant(middleware.UserID(c)) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrNotParticipant.Error()})
	}
	return c.JSON(http.StatusOK, session)
}

// candidatesFor merges durable open offers for the skill into the pool and
// runs the matcher over the resulting snapshot.
func (h *ExchangeHandler) candidatesFor(c echo.Context, request domain.SkillRequest) []matching.Candidate {
	ctx := c.Request().Context()
	if h.repo != nil {
		offers, err := h.repo.LoadOpenOffers(ctx, request.SkillName)
		if err != nil {
			h.logger.Error("Failed to load open offers", "skill", request.SkillName, "error", err)
		}
		requests, err := h.repo.LoadOpenRequests(ctx, request.SkillName)
		if err != nil {
			h.logger.Error("Failed to load open requests", "skill", request.SkillName, "error", err)
		}
		h.pool.Merge(offers, requests)
	}
	return matching.FindCandidates(request, h.pool.Snapshot())
}
