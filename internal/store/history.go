package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const summaryColumns = `h.id, h.user_id, h.title, h.original_text, h.summary_text, h.key_points,
	h.original_word_count, h.summary_word_count, h.compression_ratio, h.filename, h.file_type,
	h.detected_language, h.language_name, h.target_language, h.summary_type, h.content_type,
	h.content_source, h.url_domain, h.url_author, h.created_at, h.updated_at, h.tags, h.is_favorite`

// SaveSummary inserts a history entry and sets its ID and timestamps
func (s *Store) SaveSummary(ctx context.Context, summary *Summary) error {
	now := time.Now().UTC()
	summary.CreatedAt = now
	summary.UpdatedAt = now
	if summary.ContentType == "" {
		summary.ContentType = "text"
	}
	if summary.KeyPoints == nil {
		summary.KeyPoints = StringList{}
	}
	if summary.Tags == nil {
		summary.Tags = StringList{}
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO summary_history (
			user_id, title, original_text, summary_text, key_points,
			original_word_count, summary_word_count, compression_ratio, filename, file_type,
			detected_language, language_name, target_language, summary_type, content_type,
			content_source, url_domain, url_author, created_at, updated_at, tags, is_favorite
		) VALUES (
			:user_id, :title, :original_text, :summary_text, :key_points,
			:original_word_count, :summary_word_count, :compression_ratio, :filename, :file_type,
			:detected_language, :language_name, :target_language, :summary_type, :content_type,
			:content_source, :url_domain, :url_author, :created_at, :updated_at, :tags, :is_favorite
		)`, summary)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save summary id: %w", err)
	}
	summary.ID = id
	return nil
}

// ListHistory returns one page of a user's summaries, newest first. search
// matches title, original text and summary text.
func (s *Store) ListHistory(ctx context.Context, userID int64, page, perPage int, search string) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	where := `h.user_id = ?`
	args := []any{userID}
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where += ` AND (h.title LIKE ? ESCAPE '\' OR h.original_text LIKE ? ESCAPE '\' OR h.summary_text LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM summary_history h WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	summaries := []Summary{}
	query := `SELECT ` + summaryColumns + ` FROM summary_history h WHERE ` + where +
		` ORDER BY h.created_at DESC, h.id DESC LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &summaries, query, append(args, perPage, (page-1)*perPage)...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return &HistoryPage{
		Summaries:   summaries,
		Total:       total,
		Pages:       (total + perPage - 1) / perPage,
		CurrentPage: page,
	}, nil
}

// GetSummary loads a summary owned by userID
func (s *Store) GetSummary(ctx context.Context, userID, id int64) (*Summary, error) {
	var summary Summary
	err := s.db.GetContext(ctx, &summary,
		`SELECT `+summaryColumns+` FROM summary_history h WHERE h.id = ? AND h.user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load summary %d: %w", id, err)
	}
	return &summary, nil
}

// DeleteSummary removes a summary owned by userID
func (s *Store) DeleteSummary(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM summary_history WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete summary %d: %w", id, err)
	}
	return requireAffected(res)
}

// ToggleFavorite flips the favorite flag and returns the new value
func (s *Store) ToggleFavorite(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE summary_history
		SET is_favorite = NOT is_favorite, updated_at = ?
		WHERE id = ? AND user_id = ?`, time.Now().UTC(), id, userID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return false, err
	}

	var favorite bool
	if err := s.db.GetContext(ctx, &favorite, `SELECT is_favorite FROM summary_history WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("read favorite %d: %w", id, err)
	}
	return favorite, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
