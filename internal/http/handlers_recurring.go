package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		s.errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}
	templates, err := s.svc.Recurring.List(r.Context(), userID)
	if err != nil {
		s.errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}
	if templates == nil {
		templates = []core.RecurringTemplate{}
	}
	NewJSONResponse().Body(templates).Write(w)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	if err := nonNegative(req.Amount); err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}

	tpl, err := s.svc.Recurring.Create(r.Context(),
		strings.TrimSpace(req.UserID),
		sanitizeInput(req.Category),
		*req.Amount,
		sanitizeInput(req.Note),
		core.Tag(req.Tag),
	)
	if err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(tpl).Write(w)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req updateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}
	if err := nonNegative(req.Amount); err != nil {
		s.errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}

	patch := services.TemplatePatch{Amount: req.Amount}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		patch.Category = &c
	}
	if req.Note != nil {
		n := sanitizeInput(*req.Note)
		patch.Note = &n
	}
	if req.Tag != nil {
		t := core.Tag(*req.Tag)
		patch.Tag = &t
	}

	tpl, err := s.svc.Recurring.Update(r.Context(), strings.TrimSpace(req.UserID), r.PathValue("id"), patch)
	if err != nil {
		s.errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}
	NewJSONResponse().Body(tpl).Write(w)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		s.errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}
	if err := s.svc.Recurring.Delete(r.Context(), userID, id); err != nil {
		s.errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"id": id, "deleted": true}).Write(w)
}
