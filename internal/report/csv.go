package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pep299/smartnotes/internal/extract"
	"github.com/pep299/smartnotes/internal/store"
)

// WriteUsersCSV exports every user with activity figures
func WriteUsersCSV(w io.Writer, users []store.UserStats) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"ID", "Username", "Email", "Created At", "Last Login", "Summary Count", "Total Words"})
	for _, u := range users {
		cw.Write([]string{
			strconv.FormatInt(u.ID, 10),
			u.Username,
			u.Email,
			u.CreatedAt.Format(timestampLayout),
			lastLogin(u.LastLogin),
			strconv.Itoa(u.SummaryCount),
			strconv.Itoa(u.TotalWordsProcessed),
		})
	}
	return flush(cw)
}

// WriteSummariesCSV exports summaries with their owners
func WriteSummariesCSV(w io.Writer, summaries []store.SummaryWithUser) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"ID", "Title", "Username", "Created At", "Original Words", "Summary Words", "Compression %", "Language", "Type"})
	for _, s := range summaries {
		contentType := s.ContentType
		if contentType == "" {
			contentType = "text"
		}
		cw.Write([]string{
			strconv.FormatInt(s.ID, 10),
			titleOrUntitled(s.Title),
			s.Username,
			s.CreatedAt.Format(timestampLayout),
			strconv.Itoa(s.OriginalWordCount),
			strconv.Itoa(s.SummaryWordCount),
			formatRatio(s.CompressionRatio),
			orDash(s.LanguageName),
			contentType,
		})
	}
	return flush(cw)
}

// WriteUserCSV exports one user's profile followed by their summaries
func WriteUserCSV(w io.Writer, user *store.User, summaries []store.Summary) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"USER INFORMATION"})
	cw.Write([]string{"Username", user.Username})
	cw.Write([]string{"Email", user.Email})
	cw.Write([]string{"Created", user.CreatedAt.Format(timestampLayout)})
	cw.Write([]string{"Last Login", lastLogin(user.LastLogin)})
	cw.Write([]string{})
	cw.Write([]string{"SUMMARIES"})
	cw.Write([]string{"ID", "Title", "Created At", "Original Words", "Summary Words", "Compression %", "Language"})
	for _, s := range summaries {
		cw.Write([]string{
			strconv.FormatInt(s.ID, 10),
			titleOrUntitled(s.Title),
			s.CreatedAt.Format(timestampLayout),
			strconv.Itoa(s.OriginalWordCount),
			strconv.Itoa(s.SummaryWordCount),
			formatRatio(s.CompressionRatio),
			orDash(s.LanguageName),
		})
	}
	return flush(cw)
}

// UsersFilename returns the download name of the users export
func UsersFilename(at time.Time) string {
	return "smartnotes_users_" + at.Format(fileStampLayout) + ".csv"
}

// SummariesFilename returns the download name of the summaries export
func SummariesFilename(at time.Time) string {
	return "smartnotes_summaries_" + at.Format(fileStampLayout) + ".csv"
}

// UserFilename returns the download name of a single user export
func UserFilename(username string, at time.Time) string {
	name := extract.SecureFilename(username)
	if name == "" {
		name = "user"
	}
	return fmt.Sprintf("smartnotes_user_%s_%s.csv", name, at.Format(fileStampLayout))
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func lastLogin(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format(timestampLayout)
}

func titleOrUntitled(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
