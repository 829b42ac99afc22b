package http

import (
	"net/http"

	"bilancio/internal/log"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	u, err := s.svc.Users.Create(r.Context(), sanitizeInput(req.Username), sanitizeInput(req.Name), req.Currency)
	if err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(u).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}
