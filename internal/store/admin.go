package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Statistics computes system wide usage figures. Today starts at midnight UTC.
func (s *Store) Statistics(ctx context.Context, now time.Time) (*Statistics, error) {
	stats := &Statistics{MostActiveUser: "-", PopularLanguage: "-"}

	if err := s.db.GetContext(ctx, &stats.TotalUsers, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	var agg struct {
		Total            int     `db:"total"`
		AvgCompression   float64 `db:"avg_compression"`
		TotalWords       int     `db:"total_words"`
		AvgSummaryLength float64 `db:"avg_summary_length"`
	}
	err := s.db.GetContext(ctx, &agg, `
		SELECT COUNT(*) AS total,
			COALESCE(AVG(compression_ratio), 0) AS avg_compression,
			COALESCE(SUM(original_word_count), 0) AS total_words,
			COALESCE(AVG(summary_word_count), 0) AS avg_summary_length
		FROM summary_history`)
	if err != nil {
		return nil, fmt.Errorf("aggregate summaries: %w", err)
	}
	stats.TotalSummaries = agg.Total
	stats.AvgCompression = math.Round(agg.AvgCompression*10) / 10
	stats.TotalWords = agg.TotalWords
	stats.AvgSummaryLength = math.Round(agg.AvgSummaryLength)

	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.db.GetContext(ctx, &stats.TodayActivity,
		`SELECT COUNT(*) FROM summary_history WHERE created_at >= ?`, startOfDay); err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}

	var mostActive string
	err = s.db.GetContext(ctx, &mostActive, `
		SELECT u.username FROM users u
		JOIN summary_history h ON h.user_id = u.id
		GROUP BY u.id
		ORDER BY COUNT(h.id) DESC, u.id ASC
		LIMIT 1`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("most active user: %w", err)
	}
	if mostActive != "" {
		stats.MostActiveUser = mostActive
	}

	var popular string
	err = s.db.GetContext(ctx, &popular, `
		SELECT language_name FROM summary_history
		WHERE language_name != ''
		GROUP BY language_name
		ORDER BY COUNT(id) DESC, language_name ASC
		LIMIT 1`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("popular language: %w", err)
	}
	if popular != "" {
		stats.PopularLanguage = popular
	}

	return stats, nil
}

// RecentSummaries returns summaries with usernames, newest first. limit <= 0 returns all.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]SummaryWithUser, error) {
	query := `SELECT ` + summaryColumns + `, u.username
		FROM summary_history h
		JOIN users u ON u.id = h.user_id
		ORDER BY h.created_at DESC, h.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	summaries := []SummaryWithUser{}
	if err := s.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return summaries, nil
}

// SummaryWithUsername loads any summary by id along with its owner
func (s *Store) SummaryWithUsername(ctx context.Context, id int64) (*SummaryWithUser, error) {
	var summary SummaryWithUser
	err := s.db.GetContext(ctx, &summary, `SELECT `+summaryColumns+`, u.username
		FROM summary_history h
		JOIN users u ON u.id = h.user_id
		WHERE h.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load summary %d: %w", id, err)
	}
	return &summary, nil
}

// UserSummaries returns a user's summaries, newest first. limit <= 0 returns all.
func (s *Store) UserSummaries(ctx context.Context, userID int64, limit int) ([]Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summary_history h WHERE h.user_id = ? ORDER BY h.created_at DESC, h.id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	summaries := []Summary{}
	if err := s.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("list user summaries: %w", err)
	}
	return summaries, nil
}

// RecentActivity merges the latest 20 summaries and 10 registrations,
// newest first, capped at 30 entries.
func (s *Store) RecentActivity(ctx context.Context) ([]Activity, error) {
	summaries, err := s.RecentSummaries(ctx, 20)
	if err != nil {
		return nil, err
	}

	users := []User{}
	if err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users u ORDER BY u.created_at DESC, u.id DESC LIMIT 10`); err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}

	activities := make([]Activity, 0, len(summaries)+len(users))
	for _, sum := range summaries {
		title := sum.Title
		if title == "" {
			title = "Untitled"
		}
		activities = append(activities, Activity{
			Type:        "summary",
			Description: "Created summary: " + title,
			Username:    sum.Username,
			Details:     fmt.Sprintf("%d words", sum.OriginalWordCount),
			Timestamp:   sum.CreatedAt,
		})
	}
	for _, u := range users {
		activities = append(activities, Activity{
			Type:        "register",
			Description: "New user registered",
			Username:    u.Username,
			Details:     u.Email,
			Timestamp:   u.CreatedAt,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Timestamp.After(activities[j].Timestamp)
	})
	if len(activities) > 30 {
		activities = activities[:30]
	}
	return activities, nil
}
