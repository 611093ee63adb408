package handlers

import (
	"errors"
	"net/http"

	"github.com/pep299/smartnotes/internal/auth"
	"github.com/pep299/smartnotes/internal/store"
)

type historyResponse struct {
	*store.HistoryPage
	Success bool `json:"success"`
}

func (s *Server) listHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	page, err := s.store.ListHistory(r.Context(), user.ID,
		queryInt(r, "page", 1), queryInt(r, "per_page", 10), r.URL.Query().Get("search"))
	if err != nil {
		requestLogger(r).Printf("history_list_failed user=%s error=%v", user.Username, err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	for i := range page.Summaries {
		page.Summaries[i] = page.Summaries[i].Preview(historyPreview)
	}
	writeJSON(w, http.StatusOK, historyResponse{HistoryPage: page, Success: true})
}

func (s *Server) getHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}

	summary, err := s.store.GetSummary(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("history_get_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history item")
		return
	}

	writeSuccess(w, map[string]interface{}{"summary": summary})
}

func (s *Server) deleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}

	err = s.store.DeleteSummary(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("history_delete_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete history item")
		return
	}

	writeSuccess(w, map[string]interface{}{"message": "History item deleted"})
}

func (s *Server) favoriteHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}

	favorite, err := s.store.ToggleFavorite(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "History item not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("history_favorite_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update favorite status")
		return
	}

	writeSuccess(w, map[string]interface{}{"is_favorite": favorite})
}
