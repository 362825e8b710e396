package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/billed/internal/billing"
	"github.com/zombor/billed/internal/scanning"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/ui"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// billsOnly hides the scan capability of a store when no scanner is configured
type billsOnly struct {
	store.Store
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("billed")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		publicURL     = fs.StringLong("public-url", "", "Externally visible base URL (default http://localhost:<port>)")
		storeURL      = fs.StringLong("store-url", "", "Bills API used by the screens (default <public-url>/api)")
		storeTimeout  = fs.DurationLong("store-timeout", 30*time.Second, "Timeout of bills API calls made by the screens")
		dbDriver      = fs.StringLong("db-driver", "bolt", "Database driver: 'bolt' or 'postgres'")
		dbPath        = fs.StringLong("db", "billed.db", "Bolt database file path")
		postgresDSN   = fs.StringLong("postgres-dsn", "", "Postgres connection string")
		storageType   = fs.StringLong("storage", "local", "Receipt storage: 'local' or 's3'")
		storagePath   = fs.StringLong("storage-path", "./receipts", "Local storage directory path")
		s3Endpoint    = fs.StringLong("s3-endpoint", "localhost:9000", "S3 endpoint host:port")
		s3AccessKey   = fs.StringLong("s3-access-key", "", "S3 access key")
		s3SecretKey   = fs.StringLong("s3-secret-key", "", "S3 secret key")
		s3Bucket      = fs.StringLong("s3-bucket", "receipts", "S3 bucket name")
		s3Region      = fs.StringLong("s3-region", "", "S3 region")
		s3UseSSL      = fs.BoolLong("s3-use-ssl", "Use TLS for the S3 endpoint")
		scannerType   = fs.StringLong("scanner", "none", "Scanner type: 'none', 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username for the API (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password for the API (optional)")
		sessionSecret = fs.StringLong("session-secret", "", "Secret signing session cookies")
		linkSecret    = fs.StringLong("link-secret", "", "Secret signing receipt links (derived from the session secret if empty)")
		sessionTTL    = fs.DurationLong("session-ttl", 24*time.Hour, "Session lifetime")
		_             = fs.StringLong("config", "", "Config file (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLED"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *sessionSecret == "" {
		slog.Error("Session secret is required. Set --session-secret flag or BILLED_SESSION_SECRET environment variable")
		os.Exit(1)
	}
	if *publicURL == "" {
		*publicURL = fmt.Sprintf("http://localhost:%d", *port)
	}
	if *storeURL == "" {
		*storeURL = strings.TrimSuffix(*publicURL, "/") + "/api"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database based on driver
	var db billing.DB
	switch *dbDriver {
	case "bolt":
		slog.Info("Initializing database...", "driver", *dbDriver, "path", *dbPath)
		boltDB, err := billing.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		db = boltDB
	case "postgres":
		slog.Info("Initializing database...", "driver", *dbDriver)
		pgDB, err := billing.NewPostgresDB(ctx, *postgresDSN)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		db = pgDB
	default:
		slog.Error("Invalid database driver", "driver", *dbDriver, "valid", "bolt or postgres")
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage based on type
	var storage billing.Storage
	switch *storageType {
	case "local":
		slog.Info("Initializing storage...", "type", *storageType, "path", *storagePath)
		local, err := billing.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		storage = local
	case "s3":
		slog.Info("Initializing storage...", "type", *storageType, "endpoint", *s3Endpoint, "bucket", *s3Bucket)
		s3, err := billing.NewS3Storage(billing.S3Config{
			Endpoint:  *s3Endpoint,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			Bucket:    *s3Bucket,
			Region:    *s3Region,
			UseSSL:    *s3UseSSL,
		})
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			slog.Error("Failed to prepare bucket", "error", err)
			os.Exit(1)
		}
		storage = s3
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "local or s3")
		os.Exit(1)
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "none":
		slog.Info("Receipt scanning disabled")
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		gemini, err := scanning.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		scanner = gemini
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		ollama, err := scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
		scanner = ollama
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "none, gemini or ollama")
		os.Exit(1)
	}
	if scanner != nil {
		defer scanner.Close()
	}

	// Initialize sessions
	sessions, err := session.NewManager([]byte(*sessionSecret), *sessionTTL)
	if err != nil {
		slog.Error("Failed to initialize sessions", "error", err)
		os.Exit(1)
	}

	// Initialize the bills API
	linkKey := []byte(*linkSecret)
	if len(linkKey) == 0 {
		linkKey = billing.DeriveLinkKey([]byte(*sessionSecret))
	}
	signer := billing.NewSigner(linkKey)
	billingService := billing.NewService(db, scanner, storage, signer, *publicURL)
	mux := http.NewServeMux()
	billing.NewServerWithMux(billingService, billing.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}, mux)

	// Initialize the screens, which reach the bills API through the remote store client
	remote, err := store.NewHTTP(*storeURL,
		store.WithBasicAuth(*authUser, *authPass),
		store.WithTimeout(*storeTimeout),
	)
	if err != nil {
		slog.Error("Failed to initialize store client", "error", err)
		os.Exit(1)
	}
	ui.NewServerWithMux(func(u session.User) store.Store {
		scoped := remote.For(u.Email)
		if scanner == nil {
			return billsOnly{scoped}
		}
		return scoped
	}, sessions, mux)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", *publicURL, "store", *storeURL)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	} else {
		slog.Warn("Bills API is served without basic auth; any client can act as any user through the X-Billed-User header")
	}

	// Wait for interrupt signal
	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
