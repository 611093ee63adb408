package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a []string stored as a JSON array
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan StringList: unsupported type %T", src)
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan StringList: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// User is a registered account
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastLogin    *time.Time `db:"last_login" json:"last_login"`
}

// UserStats is a user with aggregate history figures
type UserStats struct {
	User
	SummaryCount        int  `db:"summary_count" json:"summary_count"`
	TotalWordsProcessed int  `db:"total_words" json:"total_words_processed"`
	IsActive            bool `db:"-" json:"is_active"`
}

// Summary is one saved summarization
type Summary struct {
	ID                int64      `db:"id" json:"id"`
	UserID            int64      `db:"user_id" json:"user_id"`
	Title             string     `db:"title" json:"title"`
	OriginalText      string     `db:"original_text" json:"original_text"`
	SummaryText       string     `db:"summary_text" json:"summary_text"`
	KeyPoints         StringList `db:"key_points" json:"key_points"`
	OriginalWordCount int        `db:"original_word_count" json:"original_word_count"`
	SummaryWordCount  int        `db:"summary_word_count" json:"summary_word_count"`
	CompressionRatio  float64    `db:"compression_ratio" json:"compression_ratio"`
	Filename          string     `db:"filename" json:"filename"`
	FileType          string     `db:"file_type" json:"file_type"`
	DetectedLanguage  string     `db:"detected_language" json:"detected_language"`
	LanguageName      string     `db:"language_name" json:"language_name"`
	TargetLanguage    string     `db:"target_language" json:"target_language"`
	SummaryType       string     `db:"summary_type" json:"summary_type"`
	ContentType       string     `db:"content_type" json:"content_type"`
	ContentSource     string     `db:"content_source" json:"content_source"`
	URLDomain         string     `db:"url_domain" json:"url_domain"`
	URLAuthor         string     `db:"url_author" json:"url_author"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	Tags              StringList `db:"tags" json:"tags"`
	IsFavorite        bool       `db:"is_favorite" json:"is_favorite"`
}

// Preview returns a copy with the original text cut to limit characters
func (s Summary) Preview(limit int) Summary {
	s.OriginalText = Truncate(s.OriginalText, limit)
	return s
}

// SummaryWithUser is a summary joined with its owner's username
type SummaryWithUser struct {
	Summary
	Username string `db:"username" json:"username"`
}

// HistoryPage is one page of a user's history
type HistoryPage struct {
	Summaries   []Summary `json:"summaries"`
	Total       int       `json:"total"`
	Pages       int       `json:"pages"`
	CurrentPage int       `json:"current_page"`
}

// Statistics summarizes system wide usage
type Statistics struct {
	TotalUsers       int     `json:"total_users"`
	TotalSummaries   int     `json:"total_summaries"`
	TodayActivity    int     `json:"today_activity"`
	AvgCompression   float64 `json:"avg_compression"`
	TotalWords       int     `json:"total_words"`
	AvgSummaryLength float64 `json:"avg_summary_length"`
	MostActiveUser   string  `json:"most_active_user"`
	PopularLanguage  string  `json:"popular_language"`
}

// Activity is an entry in the admin activity feed
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Username    string    `json:"username"`
	Details     string    `json:"details"`
	Timestamp   time.Time `json:"timestamp"`
}

// Truncate cuts text to limit runes and appends "..." when shortened
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
