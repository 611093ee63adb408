package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/pep299/smartnotes/internal/report"
	"github.com/pep299/smartnotes/internal/store"
)

const (
	adminSummariesLimit = 100
	adminRecentLimit    = 5
	adminTextPreview    = 500
)

type statisticsResponse struct {
	*store.Statistics
	Success bool `json:"success"`
}

func (s *Server) adminStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context(), s.now())
	if err != nil {
		requestLogger(r).Printf("admin_statistics_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Statistics: stats, Success: true})
}

func (s *Server) adminUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		requestLogger(r).Printf("admin_users_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	writeSuccess(w, map[string]interface{}{"users": users})
}

type recentSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	WordCount int       `json:"word_count"`
}

type userDetail struct {
	store.UserStats
	RecentSummaries []recentSummary `json:"recent_summaries"`
}

func (s *Server) adminUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	user, err := s.store.UserStatsByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("admin_user_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load user details")
		return
	}

	summaries, err := s.store.UserSummaries(r.Context(), id, adminRecentLimit)
	if err != nil {
		requestLogger(r).Printf("admin_user_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load user details")
		return
	}

	detail := userDetail{UserStats: *user, RecentSummaries: make([]recentSummary, 0, len(summaries))}
	for _, sum := range summaries {
		detail.RecentSummaries = append(detail.RecentSummaries, recentSummary{
			ID:        sum.ID,
			Title:     sum.Title,
			CreatedAt: sum.CreatedAt,
			WordCount: sum.OriginalWordCount,
		})
	}
	writeSuccess(w, map[string]interface{}{"user": detail})
}

type summaryListItem struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Username          string    `json:"username"`
	CreatedAt         time.Time `json:"created_at"`
	OriginalWordCount int       `json:"original_word_count"`
	SummaryWordCount  int       `json:"summary_word_count"`
	CompressionRatio  float64   `json:"compression_ratio"`
	LanguageName      string    `json:"language_name"`
	FileType          string    `json:"file_type"`
	ContentType       string    `json:"content_type"`
}

func (s *Server) adminSummariesHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.RecentSummaries(r.Context(), adminSummariesLimit)
	if err != nil {
		requestLogger(r).Printf("admin_summaries_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load summaries")
		return
	}

	items := make([]summaryListItem, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, summaryListItem{
			ID:                sum.ID,
			Title:             sum.Title,
			Username:          sum.Username,
			CreatedAt:         sum.CreatedAt,
			OriginalWordCount: sum.OriginalWordCount,
			SummaryWordCount:  sum.SummaryWordCount,
			CompressionRatio:  sum.CompressionRatio,
			LanguageName:      sum.LanguageName,
			FileType:          sum.FileType,
			ContentType:       sum.ContentType,
		})
	}
	writeSuccess(w, map[string]interface{}{"summaries": items})
}

func (s *Server) adminSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Summary not found")
		return
	}

	summary, err := s.store.SummaryWithUsername(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Summary not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("admin_summary_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load summary details")
		return
	}

	summary.Summary = summary.Summary.Preview(adminTextPreview)
	writeSuccess(w, map[string]interface{}{"summary": summary})
}

func (s *Server) adminActivityHandler(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.RecentActivity(r.Context())
	if err != nil {
		requestLogger(r).Printf("admin_activity_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load activity")
		return
	}
	writeSuccess(w, map[string]interface{}{"activities": activities})
}

// CSV exports

func (s *Server) exportUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		requestLogger(r).Printf("export_users_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export users")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteUsersCSV(&buf, users); err != nil {
		requestLogger(r).Printf("export_users_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export users")
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", report.UsersFilename(s.now()), &buf)
}

func (s *Server) exportSummariesHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.RecentSummaries(r.Context(), 0)
	if err != nil {
		requestLogger(r).Printf("export_summaries_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export summaries")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteSummariesCSV(&buf, summaries); err != nil {
		requestLogger(r).Printf("export_summaries_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export summaries")
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", report.SummariesFilename(s.now()), &buf)
}

func (s *Server) exportUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	user, err := s.store.UserByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		requestLogger(r).Printf("export_user_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to export user data")
		return
	}

	summaries, err := s.store.UserSummaries(r.Context(), id, 0)
	if err != nil {
		requestLogger(r).Printf("export_user_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to export user data")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteUserCSV(&buf, user, summaries); err != nil {
		requestLogger(r).Printf("export_user_failed id=%d error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to export user data")
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", report.UserFilename(user.Username, s.now()), &buf)
}

// Cache administration

func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cacheManager.GetStats(r.Context())
	if err != nil {
		requestLogger(r).Printf("cache_stats_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cache statistics")
		return
	}
	writeSuccess(w, map[string]interface{}{
		"enabled": s.cacheManager.Enabled(),
		"stats":   stats,
	})
}

func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheManager.Clear(r.Context()); err != nil {
		requestLogger(r).Printf("cache_clear_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	requestLogger(r).Printf("cache_cleared")
	writeSuccess(w, map[string]interface{}{"message": "Cache cleared"})
}
