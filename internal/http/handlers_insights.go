package http

import (
	"net/http"

	"bilancio/internal/log"
)

func (s *Server) handleMonthInsights(w http.ResponseWriter, r *http.Request) {
	mi, err := s.svc.Insights.Month(r.Context(), r.PathValue("monthId"))
	if err != nil {
		s.errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(mi).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		s.errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	ov, err := s.svc.Insights.Overview(r.Context(), userID)
	if err != nil {
		s.errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(ov).Write(w)
}
