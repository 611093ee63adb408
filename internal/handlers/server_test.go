package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pep299/smartnotes/internal/auth"
	"github.com/pep299/smartnotes/internal/cache"
	"github.com/pep299/smartnotes/internal/config"
	"github.com/pep299/smartnotes/internal/extract"
	"github.com/pep299/smartnotes/internal/mocks"
	"github.com/pep299/smartnotes/internal/store"
)

const sampleText = "Artificial intelligence is changing the way people work and learn. " +
	"Many companies now use machine learning models to automate repetitive tasks. " +
	"Researchers continue to study how these systems can be made more reliable and fair. " +
	"Education is also adapting, with new courses that teach the basics of data science."

const generatedSummary = "AI is reshaping work, research and education."

type testEnv struct {
	server    *Server
	router    http.Handler
	store     *store.Store
	generator *mocks.MockGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		SecretKey:             "test-session-secret",
		AdminUsername:         "admin",
		MaxUploadBytes:        1 << 20,
		MaxConcurrentRequests: 2,
		CacheType:             cache.TypeMemory,
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	generator := &mocks.MockGenerator{Response: generatedSummary}
	manager := cache.NewManagerWithCache(cache.NewMemoryCache(time.Hour), cache.TypeMemory)

	server, err := NewServerWithDeps(cfg, st, generator, manager, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	return &testEnv{server: server, router: server.SetupRoutes(), store: st, generator: generator}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signUp registers a user and logs in, returning the session cookie
func (e *testEnv) signUp(t *testing.T, username string) *http.Cookie {
	t.Helper()
	reg := `{"username":"` + username + `","email":"` + username + `@example.com","password":"secret1"}`
	if w := e.do(t, "POST", "/register", reg, nil); w.Code != http.StatusOK {
		t.Fatalf("Register %s failed: %d %s", username, w.Code, w.Body.String())
	}

	w := e.do(t, "POST", "/login", `{"username":"`+username+`","password":"secret1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Login %s failed: %d %s", username, w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionName {
			return c
		}
	}
	t.Fatal("Expected session cookie after login")
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestNewServerWithDeps(t *testing.T) {
	env := newTestEnv(t)

	if env.server.auth == nil {
		t.Error("Expected auth service to be initialized")
	}
	if env.server.summarizer == nil {
		t.Error("Expected summarizer to be initialized")
	}
	if env.server.webpage == nil {
		t.Error("Expected webpage processor to be initialized")
	}
	if env.server.pages == nil {
		t.Error("Expected page renderer to be initialized")
	}
	if env.server.Store() != env.store {
		t.Error("Expected store accessor to return the store")
	}
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		provider string
		expected string
		wantErr  bool
	}{
		{config.ProviderGemini, "gemini", false},
		{config.ProviderOpenAI, "openai", false},
		{"unknown", "", true},
	}

	for _, test := range tests {
		gen, err := NewGenerator(&config.Config{
			LLMProvider:  test.provider,
			GeminiAPIKey: "key",
			GeminiModel:  "gemini-test",
			OpenAIAPIKey: "key",
			OpenAIModel:  "gpt-test",
		})
		if test.wantErr {
			if err == nil {
				t.Errorf("Expected error for provider %s", test.provider)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewGenerator(%s) failed: %v", test.provider, err)
		}
		if !strings.HasPrefix(gen.Name(), test.expected) {
			t.Errorf("Expected generator name to start with '%s', got '%s'", test.expected, gen.Name())
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", body["status"])
	}
	if body["llm_backend"] != "mock" {
		t.Errorf("Expected backend 'mock', got '%v'", body["llm_backend"])
	}
	formats, _ := body["supported_formats"].([]interface{})
	if len(formats) != 6 {
		t.Errorf("Expected 6 supported formats, got %v", body["supported_formats"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "OPTIONS", "/summarize", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Expected allowed methods header, got '%s'", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"missing fields", `{"username":"bob"}`, "All fields are required"},
		{"short username", `{"username":"bo","email":"b@example.com","password":"secret1"}`, "Username must be at least 3 characters"},
		{"short password", `{"username":"bob","email":"b@example.com","password":"123"}`, "Password must be at least 6 characters"},
		{"taken username", `{"username":"Alice","email":"x@example.com","password":"secret1"}`, "Username already exists"},
		{"taken email", `{"username":"bob","email":"ALICE@example.com","password":"secret1"}`, "Email already registered"},
		{"invalid json", `{`, "All fields are required"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := env.do(t, "POST", "/register", test.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			body := decodeBody(t, w)
			if body["error"] != test.expected {
				t.Errorf("Expected error '%s', got '%v'", test.expected, body["error"])
			}
			if body["success"] != false {
				t.Error("Expected success false")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "POST", "/login", `{"username":"alice","password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "Invalid username/email or password" {
		t.Errorf("Unexpected error '%v'", body["error"])
	}

	w = env.do(t, "POST", "/login", `{"username":"ALICE@EXAMPLE.COM","password":"secret1","remember":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected login by email to succeed, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["username"] != "alice" {
		t.Errorf("Expected username 'alice', got '%v'", body["username"])
	}

	w = env.do(t, "POST", "/login", `{"username":"","password":""}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty credentials, got %d", w.Code)
	}

	w = env.do(t, "GET", "/login", "", cookie)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Errorf("Expected logged in user to be redirected to /, got %d '%s'", w.Code, w.Header().Get("Location"))
	}

	w = env.do(t, "GET", "/login", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "loginForm") {
		t.Errorf("Expected login page, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "GET", "/logout", "", cookie)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("Expected redirect to /login, got %d '%s'", w.Code, w.Header().Get("Location"))
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected session cookie to be cleared")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("Expected redirect to /login, got %d '%s'", w.Code, w.Header().Get("Location"))
	}

	for _, path := range []string{"/api/history", "/languages"} {
		if w := env.do(t, "GET", path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for %s, got %d", path, w.Code)
		}
	}
	if w := env.do(t, "POST", "/summarize", `{"text":"x"}`, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for /summarize, got %d", w.Code)
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	for _, path := range []string{"/", "/history"} {
		w := env.do(t, "GET", path, "", cookie)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "alice") {
			t.Errorf("Expected page %s to show the username", path)
		}
	}

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Errorf("Expected non-admin to be redirected to /, got %d", w.Code)
	}

	admin := env.signUp(t, "admin")
	if w := env.do(t, "GET", "/admin", "", admin); w.Code != http.StatusOK {
		t.Errorf("Expected admin page, got %d", w.Code)
	}

	if w := env.do(t, "GET", "/static/app.js", "", nil); w.Code != http.StatusOK {
		t.Errorf("Expected static asset, got %d", w.Code)
	}
}

func TestLanguages(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "GET", "/languages", "", cookie)
	body := decodeBody(t, w)
	languages, _ := body["languages"].(map[string]interface{})
	if languages["fr"] != "French" {
		t.Errorf("Expected French in languages, got %v", body["languages"])
	}

	w = env.do(t, "POST", "/detect-language", `{"text":"`+sampleText+`"}`, cookie)
	body = decodeBody(t, w)
	if body["detected_language"] != "en" || body["language_name"] != "English" {
		t.Errorf("Expected English detection, got %v", body)
	}

	if w := env.do(t, "POST", "/detect-language", `{"text":"  "}`, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", w.Code)
	}
}

func TestSummarize(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`","key_points":["one"],"content_type":"file","filename":"notes.txt","file_type":"txt"}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["summary"] != generatedSummary {
		t.Errorf("Expected summary '%s', got '%v'", generatedSummary, body["summary"])
	}
	if body["success"] != true || body["timestamp"] == "" {
		t.Errorf("Expected success and timestamp, got %v", body)
	}
	historyID, ok := body["history_id"].(float64)
	if !ok || historyID <= 0 {
		t.Fatalf("Expected history_id, got %v", body["history_id"])
	}

	user, _ := env.store.UserByLogin(context.Background(), "alice")
	saved, err := env.store.GetSummary(context.Background(), user.ID, int64(historyID))
	if err != nil {
		t.Fatalf("Expected saved summary: %v", err)
	}
	if !strings.HasPrefix(saved.Title, "Summary - ") {
		t.Errorf("Expected default title, got '%s'", saved.Title)
	}
	if saved.ContentType != "file" || saved.Filename != "notes.txt" || len(saved.KeyPoints) != 1 {
		t.Errorf("Expected request metadata to be saved, got %+v", saved)
	}
	if saved.SummaryType != "balanced" {
		t.Errorf("Expected default summary type, got '%s'", saved.SummaryType)
	}

	w = env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`","save_to_history":false,"title":"Mine"}`, cookie)
	body = decodeBody(t, w)
	if _, ok := body["history_id"]; ok {
		t.Error("Expected no history_id when save_to_history is false")
	}
}

func TestSummarizeErrors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{"missing text", `{}`, http.StatusBadRequest, "No text provided for summarization"},
		{"empty text", `{"text":"   "}`, http.StatusBadRequest, "Empty text provided"},
		{"invalid json", `not json`, http.StatusBadRequest, "No text provided for summarization"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := env.do(t, "POST", "/summarize", test.body, cookie)
			if w.Code != test.expectedStatus {
				t.Errorf("Expected status %d, got %d", test.expectedStatus, w.Code)
			}
			if body := decodeBody(t, w); body["error"] != test.expectedError {
				t.Errorf("Expected error '%s', got '%v'", test.expectedError, body["error"])
			}
		})
	}

	env.generator.Err = errors.New("quota exceeded")
	w := env.do(t, "POST", "/summarize", `{"text":"`+sampleText+` Different text to avoid the cache."}`, cookie)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 when generation fails, got %d", w.Code)
	}
	if body := decodeBody(t, w); !strings.HasPrefix(body["error"].(string), "Summarization failed") {
		t.Errorf("Unexpected error '%v'", body["error"])
	}
}

func TestKeyPoints(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "POST", "/key-points", `{"text":"`+sampleText+`","num_points":2}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	points, _ := body["key_points"].([]interface{})
	if len(points) != 2 || body["num_points"] != float64(2) {
		t.Errorf("Expected 2 key points, got %v", body)
	}

	if w := env.do(t, "POST", "/key-points", `{"text":""}`, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", w.Code)
	}
}

func TestDownloads(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "POST", "/download-pdf", `{"summary":"s","key_points":[]}`, cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without original_text, got %d", w.Code)
	}

	w = env.do(t, "POST", "/download-pdf", `{"original_text":"o","summary":"s","key_points":["a"],"metadata":{"word_count":10,"compression_ratio":50}}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected PDF, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("Expected application/pdf, got '%s'", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "smartnotes_summary_") {
		t.Errorf("Unexpected disposition '%s'", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("Expected PDF body")
	}

	w = env.do(t, "POST", "/download-text", `{"summary":"s"}`, cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without key_points, got %d", w.Code)
	}

	w = env.do(t, "POST", "/download-text", `{"summary":"The summary","key_points":["Point"],"original_filename":"doc.pdf"}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected text report, got %d", w.Code)
	}
	text := w.Body.String()
	for _, want := range []string{"SMARTNOTES AI SUMMARY REPORT", "Original File: doc.pdf", "The summary", "1. Point"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected text report to contain %q", want)
		}
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".txt") {
		t.Errorf("Expected .txt filename, got '%s'", w.Header().Get("Content-Disposition"))
	}
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, filename, content)
		req := httptest.NewRequest("POST", "/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := upload("../My Notes.txt", []byte(sampleText))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["filename"] != "My_Notes.txt" {
		t.Errorf("Expected sanitized filename, got '%v'", body["filename"])
	}
	if body["file_type"] != "txt" || body["detected_language"] != "en" {
		t.Errorf("Unexpected upload result %v", body)
	}
	if body["word_count"] != float64(len(strings.Fields(sampleText))) {
		t.Errorf("Unexpected word count %v", body["word_count"])
	}

	w = upload("script.exe", []byte("binary"))
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "File type not allowed" {
		t.Errorf("Expected disallowed type error, got %d %s", w.Code, w.Body.String())
	}

	w = upload("empty.txt", []byte("   "))
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "No text could be extracted" {
		t.Errorf("Expected no text error, got %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest("POST", "/upload", strings.NewReader(""))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a file, got %d", w.Code)
	}

	env.server.config.MaxUploadBytes = 512
	w = upload("big.txt", bytes.Repeat([]byte("word "), 1000))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413 for oversized upload, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "File too large. Maximum size is 512 bytes" {
		t.Errorf("Unexpected error '%v'", body["error"])
	}
}

func TestExtractErrorResponse(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{"scanned pdf", fmt.Errorf("extracting pdf: %w", extract.ErrScannedPDF), http.StatusBadRequest, extract.PDFNoTextMessage},
		{"no text", extract.ErrNoText, http.StatusBadRequest, "No text could be extracted"},
		{"unsupported", fmt.Errorf("%w: exe", extract.ErrUnsupportedType), http.StatusBadRequest, "Unsupported file type"},
		{"other", errors.New("zip: not a valid zip file"), http.StatusInternalServerError, "File processing error: zip: not a valid zip file"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status, message := extractErrorResponse(test.err)
			if status != test.expectedStatus {
				t.Errorf("Expected status %d, got %d", test.expectedStatus, status)
			}
			if message != test.expectedMessage {
				t.Errorf("Expected message '%s', got '%s'", test.expectedMessage, message)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{512, "512 bytes"},
		{1536, "1.5 KB"},
		{16 << 20, "16 MB"},
		{3 << 19, "1.5 MB"},
	}

	for _, test := range tests {
		if got := formatSize(test.bytes); got != test.expected {
			t.Errorf("Expected formatSize(%d) '%s', got '%s'", test.bytes, test.expected, got)
		}
	}
}

func TestProcessURL(t *testing.T) {
	article := "<html><head><title>Test Article</title><meta name=\"author\" content=\"Jane\"></head><body><article>" +
		strings.Repeat("<p>"+sampleText+"</p>", 4) + "</article></body></html>"
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(article))
	}))
	defer site.Close()

	env := newTestEnv(t)
	cookie := env.signUp(t, "alice")

	w := env.do(t, "POST", "/process-url", `{"url":"`+site.URL+`/post"}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["content_type"] != "url" || body["domain"] != "127.0.0.1" {
		t.Errorf("Unexpected response %v", body)
	}
	if body["reading_time"].(float64) < 1 {
		t.Errorf("Expected reading time, got %v", body["reading_time"])
	}

	if w := env.do(t, "POST", "/process-url", `{"url":""}`, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty URL, got %d", w.Code)
	}
	w = env.do(t, "POST", "/process-url", `{"url":"ftp://example.com"}`, cookie)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "Invalid URL format" {
		t.Errorf("Expected invalid URL error, got %d %s", w.Code, w.Body.String())
	}
}

func TestHistoryAPI(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")

	for _, title := range []string{"Quantum notes", "Cooking notes"} {
		w := env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`","title":"`+title+`"}`, alice)
		if w.Code != http.StatusOK {
			t.Fatalf("Summarize failed: %d", w.Code)
		}
	}

	w := env.do(t, "GET", "/api/history?per_page=1", "", alice)
	body := decodeBody(t, w)
	if body["total"] != float64(2) || body["pages"] != float64(2) || body["current_page"] != float64(1) {
		t.Errorf("Unexpected pagination %v", body)
	}
	summaries := body["summaries"].([]interface{})
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary on page, got %d", len(summaries))
	}
	first := summaries[0].(map[string]interface{})
	if first["title"] != "Cooking notes" {
		t.Errorf("Expected newest first, got '%v'", first["title"])
	}
	if !strings.HasSuffix(first["original_text"].(string), "...") {
		t.Error("Expected original text preview in list")
	}
	id := int64(first["id"].(float64))
	itemPath := "/api/history/" + strconv.FormatInt(id, 10)

	w = env.do(t, "GET", "/api/history?search=quantum", "", alice)
	if body := decodeBody(t, w); body["total"] != float64(1) {
		t.Errorf("Expected search to match 1, got %v", body["total"])
	}

	w = env.do(t, "GET", itemPath, "", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected item, got %d", w.Code)
	}
	item := decodeBody(t, w)["summary"].(map[string]interface{})
	if item["original_text"] != sampleText {
		t.Error("Expected full original text in item")
	}

	if w := env.do(t, "GET", itemPath, "", bob); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's item, got %d", w.Code)
	}

	w = env.do(t, "POST", itemPath+"/favorite", "", alice)
	if body := decodeBody(t, w); body["is_favorite"] != true {
		t.Errorf("Expected favorite true, got %v", body["is_favorite"])
	}
	w = env.do(t, "POST", itemPath+"/favorite", "", alice)
	if body := decodeBody(t, w); body["is_favorite"] != false {
		t.Errorf("Expected favorite false, got %v", body["is_favorite"])
	}

	if w := env.do(t, "DELETE", itemPath, "", bob); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting another user's item, got %d", w.Code)
	}
	w = env.do(t, "DELETE", itemPath, "", alice)
	if body := decodeBody(t, w); body["message"] != "History item deleted" {
		t.Errorf("Unexpected delete response %v", body)
	}
	if w := env.do(t, "GET", itemPath, "", alice); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestAdminAPI(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	admin := env.signUp(t, "admin")

	if w := env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`","title":"Alice summary"}`, alice); w.Code != http.StatusOK {
		t.Fatalf("Summarize failed: %d", w.Code)
	}

	if w := env.do(t, "GET", "/api/admin/statistics", "", alice); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin, got %d", w.Code)
	}

	w := env.do(t, "GET", "/api/admin/statistics", "", admin)
	stats := decodeBody(t, w)
	if stats["total_users"] != float64(2) || stats["total_summaries"] != float64(1) || stats["today_activity"] != float64(1) {
		t.Errorf("Unexpected statistics %v", stats)
	}
	if stats["most_active_user"] != "alice" || stats["popular_language"] != "English" {
		t.Errorf("Unexpected leaders %v", stats)
	}

	w = env.do(t, "GET", "/api/admin/users", "", admin)
	users := decodeBody(t, w)["users"].([]interface{})
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}

	aliceUser, _ := env.store.UserByLogin(context.Background(), "alice")
	w = env.do(t, "GET", "/api/admin/users/"+strconv.FormatInt(aliceUser.ID, 10), "", admin)
	detail := decodeBody(t, w)["user"].(map[string]interface{})
	if detail["summary_count"] != float64(1) || len(detail["recent_summaries"].([]interface{})) != 1 {
		t.Errorf("Unexpected user detail %v", detail)
	}
	if _, leaked := detail["password_hash"]; leaked {
		t.Error("Expected password hash to be hidden")
	}
	if w := env.do(t, "GET", "/api/admin/users/999", "", admin); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing user, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/admin/summaries", "", admin)
	summaries := decodeBody(t, w)["summaries"].([]interface{})
	if len(summaries) != 1 || summaries[0].(map[string]interface{})["username"] != "alice" {
		t.Fatalf("Unexpected summaries %v", summaries)
	}
	summaryID := int64(summaries[0].(map[string]interface{})["id"].(float64))

	w = env.do(t, "GET", "/api/admin/summaries/"+strconv.FormatInt(summaryID, 10), "", admin)
	if detail := decodeBody(t, w)["summary"].(map[string]interface{}); detail["title"] != "Alice summary" {
		t.Errorf("Unexpected summary detail %v", detail)
	}
	if w := env.do(t, "GET", "/api/admin/summaries/999", "", admin); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing summary, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/admin/activity", "", admin)
	activities := decodeBody(t, w)["activities"].([]interface{})
	if len(activities) != 3 {
		t.Errorf("Expected 3 activities, got %d", len(activities))
	}
}

func TestAdminExports(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	admin := env.signUp(t, "admin")
	env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`"}`, alice)

	tests := []struct {
		path           string
		expectedHeader string
		expectedFile   string
	}{
		{"/api/admin/export/users", "ID,Username,Email", "smartnotes_users_"},
		{"/api/admin/export/summaries", "ID,Title,Username", "smartnotes_summaries_"},
		{"/api/admin/export/user/1", "USER INFORMATION", "smartnotes_user_alice_"},
	}
	for _, test := range tests {
		w := env.do(t, "GET", test.path, "", admin)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", test.path, w.Code)
			continue
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
			t.Errorf("Expected CSV content type for %s", test.path)
		}
		if !strings.HasPrefix(w.Body.String(), test.expectedHeader) {
			t.Errorf("Expected %s to start with '%s', got '%s'", test.path, test.expectedHeader, w.Body.String())
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), test.expectedFile) {
			t.Errorf("Expected filename %s, got '%s'", test.expectedFile, w.Header().Get("Content-Disposition"))
		}
	}

	if w := env.do(t, "GET", "/api/admin/export/user/999", "", admin); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing user export, got %d", w.Code)
	}
}

func TestAdminCache(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	admin := env.signUp(t, "admin")
	env.do(t, "POST", "/summarize", `{"text":"`+sampleText+`","save_to_history":false}`, alice)

	w := env.do(t, "GET", "/api/admin/cache", "", admin)
	body := decodeBody(t, w)
	stats := body["stats"].(map[string]interface{})
	if body["enabled"] != true || stats["total_entries"] != float64(1) || stats["type"] != "memory" {
		t.Errorf("Unexpected cache stats %v", body)
	}

	if w := env.do(t, "DELETE", "/api/admin/cache", "", admin); w.Code != http.StatusOK {
		t.Errorf("Expected cache clear to succeed, got %d", w.Code)
	}
	w = env.do(t, "GET", "/api/admin/cache", "", admin)
	stats = decodeBody(t, w)["stats"].(map[string]interface{})
	if stats["total_entries"] != float64(0) {
		t.Errorf("Expected empty cache, got %v", stats["total_entries"])
	}
}

func TestRunMaintenance(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	if err := env.server.RunMaintenance(context.Background()); err != nil {
		t.Errorf("RunMaintenance failed: %v", err)
	}
}
