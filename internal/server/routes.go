package server

import (
	"github.com/M-Shameel-375/skill-verse-sub001/internal/middleware"
)

// RegisterRoutes attaches every engine route. All routes require a verified
// identity from the external auth provider's cookie session.
func (s *Server) RegisterRoutes() {
	api := s.E.Group("/api", middleware.Auth())

	api.POST("/offers", s.exchangeHandler.PublishOffer)
	api.DELETE("/offers/:id", s.exchangeHandler.WithdrawOffer)
	api.POST("/requests", s.exchangeHandler.PublishRequest)
	api.DELETE("/requests/:id", s.exchangeHandler.WithdrawRequest)
	api.GET("/requests/:id/matches", s.exchangeHandler.ListCandidates)

	api.POST("/sessions", s.exchangeHandler.Propose)
	api.GET("/sessions/:id", s.exchangeHandler.GetSession)
	api.POST("/sessions/:id/accept", s.exchangeHandler.Accept)
	api.POST("/sessions/:id/reject", s.exchangeHandler.Reject)
	api.POST("/sessions/:id/complete", s.exchangeHandler.Complete)
	api.POST("/sessions/:id/cancel", s.exchangeHandler.Cancel)

	api.GET("/online", s.onlineHandler.GetOnlineUsers)

	s.E.GET("/ws", s.gateway.Handler(), middleware.Auth())
}
