package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/pep299/smartnotes/internal/auth"
	"github.com/pep299/smartnotes/internal/extract"
	"github.com/pep299/smartnotes/internal/report"
	"github.com/pep299/smartnotes/internal/store"
	"github.com/pep299/smartnotes/internal/summarizer"
	"github.com/pep299/smartnotes/internal/web"
	"github.com/pep299/smartnotes/internal/webpage"
)

const (
	defaultMaxLength = 150
	defaultMinLength = 50
	defaultNumPoints = 5
	maxNumPoints     = 20
	historyPreview   = 200
)

func requestLogger(r *http.Request) *log.Logger {
	return log.New(funcframework.LogWriter(r.Context()), "", 0)
}

// healthHandler reports service status and available features
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		requestLogger(r).Printf("health_db_failed error=%v", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":                      status,
		"version":                     Version,
		"timestamp":                   s.now().Unix(),
		"summarizer_available":        s.summarizer != nil,
		"llm_backend":                 s.summarizer.Backend(),
		"pdf_handler_available":       true,
		"website_processor_available": s.webpage != nil,
		"cache_enabled":               s.cacheManager.Enabled(),
		"supported_formats":           extract.AllowedExtensions(),
		"features": map[string]bool{
			"file_upload":    true,
			"website_urls":   s.webpage != nil,
			"multilingual":   true,
			"authentication": true,
		},
	})
}

// Accounts

func (s *Server) redirectIfLoggedIn(w http.ResponseWriter, r *http.Request) bool {
	if _, err := s.auth.CurrentUser(r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return true
	}
	return false
}

func (s *Server) registerPageHandler(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfLoggedIn(w, r) {
		return
	}
	s.render(w, r, web.PageRegister, web.PageData{Title: "Register"})
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfLoggedIn(w, r) {
		return
	}

	var reg auth.Registration
	if err := decodeJSON(r, &reg); err != nil {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := s.auth.Register(r.Context(), reg)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case err != nil:
		requestLogger(r).Printf("register_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Registration failed. Please try again.")
		return
	}

	requestLogger(r).Printf("user_registered username=%s", user.Username)
	writeSuccess(w, map[string]interface{}{
		"message": "Registration successful! Please log in.",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

func (s *Server) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfLoggedIn(w, r) {
		return
	}
	s.render(w, r, web.PageLogin, web.PageData{Title: "Log in"})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfLoggedIn(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Username/email and password are required")
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username/email or password")
		return
	case err != nil:
		requestLogger(r).Printf("login_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}

	if err := s.auth.StartSession(w, r, user.ID, req.Remember); err != nil {
		requestLogger(r).Printf("session_start_failed user=%s error=%v", user.Username, err)
		writeError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}

	requestLogger(r).Printf("user_logged_in username=%s remember=%t", user.Username, req.Remember)
	writeSuccess(w, map[string]interface{}{
		"message":  "Login successful!",
		"username": user.Username,
	})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.auth.EndSession(w, r); err != nil {
		requestLogger(r).Printf("session_end_failed error=%v", err)
	}
	requestLogger(r).Printf("user_logged_out username=%s", user.Username)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Pages

func (s *Server) pageData(r *http.Request, title string) web.PageData {
	user := auth.UserFromContext(r.Context())
	return web.PageData{
		Title:     title,
		User:      user,
		IsAdmin:   s.auth.IsAdmin(user),
		Languages: summarizer.Languages(),
		Formats:   extract.AllowedExtensions(),
		MaxUpload: s.config.MaxUploadBytes,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data web.PageData) {
	if err := s.pages.Render(w, page, data); err != nil {
		requestLogger(r).Printf("render_failed page=%s error=%v", page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) indexPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageIndex, s.pageData(r, "Summarize"))
}

func (s *Server) historyPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageHistory, s.pageData(r, "History"))
}

func (s *Server) adminPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, web.PageAdmin, s.pageData(r, "Admin"))
}

// Languages

func (s *Server) languagesHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]interface{}{
		"languages": summarizer.Languages(),
	})
}

type textRequest struct {
	Text *string `json:"text"`
}

func (s *Server) detectLanguageHandler(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	code := summarizer.DetectLanguage(*req.Text)
	writeSuccess(w, map[string]interface{}{
		"detected_language": code,
		"language_name":     summarizer.LanguageName(code),
	})
}

// Content sources

type urlRequest struct {
	URL string `json:"url"`
}

type urlResponse struct {
	*webpage.Page
	ContentType string `json:"content_type"`
	Success     bool   `json:"success"`
}

func (s *Server) processURLHandler(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "Please provide a URL")
		return
	}

	requestLogger(r).Printf("process_url url=%s", req.URL)
	page, err := s.webpage.Extract(r.Context(), req.URL)
	switch {
	case errors.Is(err, webpage.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "Invalid URL format")
		return
	case errors.Is(err, webpage.ErrNotEnoughContent):
		writeError(w, http.StatusBadRequest, "Could not extract sufficient content from the webpage")
		return
	case err != nil:
		requestLogger(r).Printf("process_url_failed url=%s error=%v", req.URL, err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to fetch webpage: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, urlResponse{Page: page, ContentType: "url", Success: true})
}

type uploadResponse struct {
	*extract.Result
	DetectedLanguage string `json:"detected_language"`
	LanguageName     string `json:"language_name"`
	Success          bool   `json:"success"`
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.config.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is "+formatSize(limit))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !extract.AllowedFile(header.Filename) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("File processing error: %v", err))
		return
	}

	result, err := extract.File(header.Filename, data)
	if err != nil {
		status, message := extractErrorResponse(err)
		if status == http.StatusInternalServerError {
			requestLogger(r).Printf("upload_failed filename=%s error=%v", header.Filename, err)
		}
		writeError(w, status, message)
		return
	}

	code := summarizer.DetectLanguage(result.Text)
	requestLogger(r).Printf("upload_processed filename=%s type=%s words=%d", result.Filename, result.FileType, result.WordCount)
	writeJSON(w, http.StatusOK, uploadResponse{
		Result:           result,
		DetectedLanguage: code,
		LanguageName:     summarizer.LanguageName(code),
		Success:          true,
	})
}

// extractErrorResponse maps a file extraction error to a status and message
func extractErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, extract.ErrScannedPDF):
		return http.StatusBadRequest, extract.PDFNoTextMessage
	case errors.Is(err, extract.ErrNoText):
		return http.StatusBadRequest, "No text could be extracted"
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusBadRequest, "Unsupported file type"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("File processing error: %v", err)
	}
}

// formatSize renders a byte count in the largest whole unit
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return strconv.FormatFloat(float64(n)/(1<<20), 'f', -1, 64) + " MB"
	case n >= 1<<10:
		return strconv.FormatFloat(float64(n)/(1<<10), 'f', -1, 64) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}

// Summarization

type summarizeRequest struct {
	Text           *string  `json:"text"`
	MaxLength      int      `json:"max_length"`
	MinLength      int      `json:"min_length"`
	SummaryType    string   `json:"summary_type"`
	TargetLanguage string   `json:"target_language"`
	SaveToHistory  *bool    `json:"save_to_history"`
	Title          string   `json:"title"`
	KeyPoints      []string `json:"key_points"`
	ContentType    string   `json:"content_type"`
	ContentSource  string   `json:"content_source"`
	Filename       string   `json:"filename"`
	FileType       string   `json:"file_type"`
	URLDomain      string   `json:"url_domain"`
	URLAuthor      string   `json:"url_author"`
}

type summarizeResponse struct {
	*summarizer.Result
	HistoryID int64  `json:"history_id,omitempty"`
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) summarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "No text provided for summarization")
		return
	}

	text := strings.TrimSpace(*req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Empty text provided")
		return
	}

	if req.MaxLength <= 0 {
		req.MaxLength = defaultMaxLength
	}
	if req.MinLength <= 0 {
		req.MinLength = defaultMinLength
	}
	if req.SummaryType == "" {
		req.SummaryType = summarizer.TypeBalanced
	}
	if req.ContentType == "" {
		req.ContentType = "text"
	}

	user := auth.UserFromContext(r.Context())
	requestLogger(r).Printf("summarize_request user=%s content_type=%s", user.Username, req.ContentType)

	result, err := s.summarizer.Summarize(r.Context(), summarizer.Request{
		Text:           text,
		MaxLength:      req.MaxLength,
		MinLength:      req.MinLength,
		SummaryType:    req.SummaryType,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		requestLogger(r).Printf("summarize_failed user=%s error=%v", user.Username, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Summarization failed: %v", err))
		return
	}

	resp := summarizeResponse{Result: result, Success: true}
	if (req.SaveToHistory == nil || *req.SaveToHistory) && result.Summary != "" {
		id, err := s.saveHistory(r, user, text, req, result)
		if err != nil {
			requestLogger(r).Printf("history_save_failed user=%s error=%v", user.Username, err)
		} else {
			resp.HistoryID = id
		}
	}

	resp.Timestamp = s.now().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveHistory(r *http.Request, user *store.User, text string, req summarizeRequest, result *summarizer.Result) (int64, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Summary - " + s.now().Format("2006-01-02 15:04")
	}

	entry := &store.Summary{
		UserID:            user.ID,
		Title:             title,
		OriginalText:      text,
		SummaryText:       result.Summary,
		KeyPoints:         req.KeyPoints,
		OriginalWordCount: result.OriginalLength,
		SummaryWordCount:  result.SummaryLength,
		CompressionRatio:  result.CompressionRatio,
		Filename:          req.Filename,
		FileType:          req.FileType,
		DetectedLanguage:  result.DetectedLanguage,
		LanguageName:      result.LanguageName,
		TargetLanguage:    result.TargetLanguage,
		SummaryType:       req.SummaryType,
		ContentType:       req.ContentType,
		ContentSource:     req.ContentSource,
		URLDomain:         req.URLDomain,
		URLAuthor:         req.URLAuthor,
	}
	if err := s.store.SaveSummary(r.Context(), entry); err != nil {
		return 0, err
	}

	requestLogger(r).Printf("history_saved user=%s id=%d", user.Username, entry.ID)
	return entry.ID, nil
}

type keyPointsRequest struct {
	Text           *string `json:"text"`
	NumPoints      int     `json:"num_points"`
	TargetLanguage string  `json:"target_language"`
}

func (s *Server) keyPointsHandler(w http.ResponseWriter, r *http.Request) {
	var req keyPointsRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	text := strings.TrimSpace(*req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Empty text provided")
		return
	}

	n := req.NumPoints
	if n <= 0 {
		n = defaultNumPoints
	}
	n = min(n, maxNumPoints)

	points := s.summarizer.ExtractKeyPoints(r.Context(), text, n, req.TargetLanguage)
	writeSuccess(w, map[string]interface{}{
		"key_points": points,
		"num_points": len(points),
		"timestamp":  s.now().Format(time.RFC3339),
	})
}

// Downloads

type downloadRequest struct {
	OriginalText     *string          `json:"original_text"`
	Summary          *string          `json:"summary"`
	KeyPoints        []string         `json:"key_points"`
	Metadata         *report.Metadata `json:"metadata"`
	OriginalFilename string           `json:"original_filename"`
}

func (s *Server) downloadPDFHandler(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil || req.OriginalText == nil || req.Summary == nil || req.KeyPoints == nil {
		writeError(w, http.StatusBadRequest, "Missing required data for PDF generation")
		return
	}

	now := s.now()
	var buf bytes.Buffer
	err := report.WritePDF(&buf, report.Summary{
		OriginalText: *req.OriginalText,
		Summary:      *req.Summary,
		KeyPoints:    req.KeyPoints,
		Metadata:     req.Metadata,
		GeneratedAt:  now,
	})
	if err != nil {
		requestLogger(r).Printf("pdf_failed error=%v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("PDF generation error: %v", err))
		return
	}

	writeAttachment(w, "application/pdf", report.SummaryFilename("pdf", now), &buf)
}

func (s *Server) downloadTextHandler(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil || req.Summary == nil || req.KeyPoints == nil {
		writeError(w, http.StatusBadRequest, "Missing required data for text generation")
		return
	}

	filename := req.OriginalFilename
	if filename == "" && req.Metadata != nil {
		filename = req.Metadata.Filename
	}

	now := s.now()
	content := report.Text(report.Summary{
		Summary:          *req.Summary,
		KeyPoints:        req.KeyPoints,
		Metadata:         req.Metadata,
		OriginalFilename: filename,
		GeneratedAt:      now,
	})

	writeAttachment(w, "text/plain; charset=utf-8", report.SummaryFilename("txt", now), bytes.NewBufferString(content))
}
