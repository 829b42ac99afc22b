package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		s.errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}
	months, err := s.svc.Months.ListMonths(r.Context(), userID)
	if err != nil {
		s.errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}
	if months == nil {
		months = []*core.Month{}
	}
	NewJSONResponse().Body(months).Write(w)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Months.GetMonth(r.Context(), r.PathValue("monthId"))
	if err != nil {
		s.errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(m).Write(w)
}

func (s *Server) handleCreateMonth(w http.ResponseWriter, r *http.Request) {
	var req createMonthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	m, err := s.svc.Months.CreateMonth(r.Context(), strings.TrimSpace(req.UserID), *req.Year, *req.Month)
	if err != nil {
		s.errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(m).Write(w)
}

func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	monthID := r.PathValue("monthId")
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		s.errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}
	if err := s.svc.Months.DeleteMonth(r.Context(), monthID, userID); err != nil {
		s.errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"id": monthID, "deleted": true}).Write(w)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	side, err := pathSide(r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpAddEntry, err).Write(w)
		return
	}
	var req addEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpAddEntry, err).Write(w)
		return
	}
	if err := nonNegative(req.Amount); err != nil {
		s.errorResponse(r.Context(), log.OpAddEntry, err).Write(w)
		return
	}

	m, err := s.svc.Months.AddEntry(r.Context(), services.AddEntryInput{
		MonthID:  req.MonthID,
		Side:     side,
		Category: sanitizeInput(req.Category),
		Amount:   *req.Amount,
		Note:     sanitizeInput(req.Note),
		Tag:      core.Tag(req.Tag),
	})
	if err != nil {
		s.errorResponse(r.Context(), log.OpAddEntry, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(m).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	side, err := pathSide(r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpUpdateEntry, err).Write(w)
		return
	}
	var req updateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(r.Context(), log.OpUpdateEntry, err).Write(w)
		return
	}
	if err := nonNegative(req.Amount); err != nil {
		s.errorResponse(r.Context(), log.OpUpdateEntry, err).Write(w)
		return
	}

	m, err := s.svc.Months.UpdateEntry(r.Context(), services.UpdateEntryInput{
		MonthID: req.MonthID,
		Side:    side,
		EntryID: r.PathValue("entryId"),
		Amount:  *req.Amount,
		Note:    sanitizeInput(req.Note),
		Tag:     core.Tag(req.Tag),
	})
	if err != nil {
		s.errorResponse(r.Context(), log.OpUpdateEntry, err).Write(w)
		return
	}
	NewJSONResponse().Body(m).Write(w)
}

// monthIDFromRequest takes ?monthId= or, failing that, a {"monthId"} body.
func monthIDFromRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.URL.Query().Get("monthId")); id != "" {
		return id, nil
	}
	var req monthRefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", badRequest("monthId is required")
	}
	return strings.TrimSpace(req.MonthID), nil
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	side, err := pathSide(r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteEntry, err).Write(w)
		return
	}
	monthID, err := monthIDFromRequest(w, r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteEntry, err).Write(w)
		return
	}

	m, err := s.svc.Months.DeleteEntry(r.Context(), side, monthID, r.PathValue("entryId"))
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteEntry, err).Write(w)
		return
	}
	NewJSONResponse().Body(m).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	side, err := pathSide(r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteCategory, err).Write(w)
		return
	}
	monthID, err := monthIDFromRequest(w, r)
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteCategory, err).Write(w)
		return
	}

	m, err := s.svc.Months.DeleteCategory(r.Context(), side, monthID, r.PathValue("categoryId"))
	if err != nil {
		s.errorResponse(r.Context(), log.OpDeleteCategory, err).Write(w)
		return
	}
	NewJSONResponse().Body(m).Write(w)
}
