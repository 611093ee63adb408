package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pep299/smartnotes/internal/auth"
	"github.com/pep299/smartnotes/internal/cache"
	"github.com/pep299/smartnotes/internal/config"
	"github.com/pep299/smartnotes/internal/extract"
	"github.com/pep299/smartnotes/internal/handlers"
	"github.com/pep299/smartnotes/internal/store"
	"github.com/pep299/smartnotes/internal/summarizer"
	"github.com/pep299/smartnotes/internal/webpage"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, "SmartNotes CLI\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s init-db -password <password> [-email <email>]\n", os.Args[0])
	fmt.Fprintf(w, "  %s summarize (-text <text> | -file <path> | -url <url>) [-type balanced] [-lang en] [-points 5]\n", os.Args[0])
	fmt.Fprintf(w, "  %s -version\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "-help", "--help", "help":
		usage(os.Stdout)
		return
	case "-version", "--version", "version":
		fmt.Printf("SmartNotes CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		return
	case "init-db":
		err = runInitDB(os.Args[2:])
	case "summarize":
		err = runSummarize(os.Args[2:], os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runInitDB creates the schema and makes sure the admin account exists
func runInitDB(args []string) error {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	password := fs.String("password", "", "Admin password")
	email := fs.String("email", "", "Admin email (default: <admin>@smartnotes.local)")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	storeCfg := store.LoadConfig()
	storeCfg.Path = cfg.DatabasePath
	st, err := store.OpenWithConfig(storeCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return ensureAdmin(context.Background(), st, cfg.AdminUsername, *email, *password)
}

func ensureAdmin(ctx context.Context, st *store.Store, username, email, password string) error {
	if len(password) < 6 {
		return errors.New("admin password must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	existing, err := st.UserByLogin(ctx, username)
	switch {
	case err == nil:
		if err := st.SetPassword(ctx, existing.ID, hash); err != nil {
			return err
		}
		log.Printf("admin_password_updated username=%s", existing.Username)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	if email == "" {
		email = username + "@smartnotes.local"
	}
	user, err := st.CreateUser(ctx, username, strings.ToLower(email), hash)
	if err != nil {
		return err
	}
	log.Printf("admin_created username=%s id=%d", user.Username, user.ID)
	return nil
}

// runSummarize summarizes text from one source and prints the result
func runSummarize(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	text := fs.String("text", "", "Text to summarize")
	file := fs.String("file", "", "Document to summarize (txt, pdf, docx, pptx)")
	url := fs.String("url", "", "Web page to summarize")
	summaryType := fs.String("type", summarizer.TypeBalanced, "Summary type: brief, balanced or detailed")
	lang := fs.String("lang", "", "Output language code (default: detected language)")
	points := fs.Int("points", 5, "Number of key points")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall timeout")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	input, err := readInput(ctx, *text, *file, *url)
	if err != nil {
		return err
	}

	generator, err := handlers.NewGenerator(cfg)
	if err != nil {
		return err
	}
	cacheManager, err := cache.NewManager(ctx, cfg.CacheType, time.Duration(cfg.CacheDuration)*time.Hour, cfg.CacheBucket)
	if err != nil {
		return err
	}
	defer cacheManager.Close()

	s := summarizer.New(generator, cacheManager, cfg.MaxConcurrentRequests)
	result, err := s.Summarize(ctx, summarizer.Request{
		Text:           input,
		SummaryType:    *summaryType,
		TargetLanguage: *lang,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Language: %s -> %s\n", result.LanguageName, result.TargetLanguageName)
	fmt.Fprintf(out, "Words: %d -> %d (%.1f%% compression)\n\n", result.OriginalLength, result.SummaryLength, result.CompressionRatio)
	fmt.Fprintf(out, "SUMMARY\n%s\n", result.Summary)

	keyPoints := s.ExtractKeyPoints(ctx, input, *points, *lang)
	if len(keyPoints) > 0 {
		fmt.Fprintf(out, "\nKEY POINTS\n")
		for i, p := range keyPoints {
			fmt.Fprintf(out, "%d. %s\n", i+1, p)
		}
	}
	return nil
}

func readInput(ctx context.Context, text, file, url string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		result, err := extract.File(file, data)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	case url != "":
		page, err := webpage.NewProcessor(nil).Extract(ctx, url)
		if err != nil {
			return "", err
		}
		return page.Text, nil
	default:
		return "", errors.New("one of -text, -file or -url is required")
	}
}
