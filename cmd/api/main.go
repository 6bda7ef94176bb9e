package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerline/expense-ingest/internal/api/handlers"
	"github.com/ledgerline/expense-ingest/internal/api/middleware"
	"github.com/ledgerline/expense-ingest/internal/extract"
	"github.com/ledgerline/expense-ingest/internal/ingest"
	"github.com/ledgerline/expense-ingest/internal/insights"
	"github.com/ledgerline/expense-ingest/internal/logger"
	"github.com/ledgerline/expense-ingest/internal/settings"
	"github.com/ledgerline/expense-ingest/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		port      = flag.String("port", "8080", "HTTP server port")
		dataDir   = flag.String("data-dir", envOr("DATA_DIR", "data"), "directory for file-backed collections (or set DATA_DIR env)")
		redisAddr = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address; when set, collections live in Redis instead of files (or set REDIS_ADDR env)")
		model     = flag.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model name (or set GEMINI_MODEL env)")
		delay     = flag.Duration("delay", ingest.DefaultDelay, "Delay between AI-backed extraction calls in a batch")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	// Pick the collection backend
	var collections store.Collections
	if *redisAddr != "" {
		redisCollections, err := store.NewRedisCollections(ctx, *redisAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisCollections.Close()
		collections = redisCollections
		log.Info().Str("addr", *redisAddr).Msg("Using Redis-backed collections")
	} else {
		fileCollections, err := store.NewFileCollections(*dataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open data directory")
		}
		collections = fileCollections
		log.Info().Str("dir", *dataDir).Msg("Using file-backed collections")
	}

	expenseStore := store.New(collections)
	settingsService := settings.NewService(collections)

	// The AI capability is optional: without an API key, spreadsheet and JSON
	// imports still work, while PDF, receipt, and insight endpoints report
	// the missing configuration.
	var ai *extract.Gemini
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		var err error
		ai, err = extract.NewGemini(ctx, *model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
	} else {
		log.Warn().Msg("No Gemini API key configured - PDF extraction, receipt scanning, and insights are disabled")
	}

	extractor := extract.NewExtractor(aiOrNil(ai), log)
	var scanner ingest.ReceiptScanner
	var textModel insights.Model
	if ai != nil {
		scanner = ai
		textModel = ai
	}

	importService := ingest.NewService(extractor, scanner, expenseStore, log, ingest.WithDelay(*delay))
	registry := ingest.NewRegistry()
	insightService := insights.NewService(textModel, log)

	// Initialize handlers
	importsHandler := handlers.NewImportsHandler(importService, registry, log)
	expensesHandler := handlers.NewExpensesHandler(expenseStore, log)
	settingsHandler := handlers.NewSettingsHandler(settingsService, log)
	insightsHandler := handlers.NewInsightsHandler(insightService, expenseStore, log)

	// Create router
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/imports", importsHandler.CreateImport).Methods(http.MethodPost)
	api.HandleFunc("/imports/preview", importsHandler.Preview).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}", importsHandler.GetImport).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}", importsHandler.ClearImport).Methods(http.MethodDelete)
	api.HandleFunc("/imports/{id}/commit-all", importsHandler.CommitAll).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}/items/{itemID}/commit", importsHandler.CommitItem).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}/items/{itemID}", importsHandler.RemoveItem).Methods(http.MethodDelete)

	api.HandleFunc("/receipts/scan", importsHandler.ScanReceipt).Methods(http.MethodPost)

	api.HandleFunc("/expenses", expensesHandler.ListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", expensesHandler.CreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/export", expensesHandler.ExportExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id}", expensesHandler.UpdateExpense).Methods(http.MethodPut)
	api.HandleFunc("/expenses/{id}", expensesHandler.DeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/budgets/{month}", settingsHandler.GetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{month}", settingsHandler.PutBudget).Methods(http.MethodPut)

	api.HandleFunc("/insights/suggestions", insightsHandler.GetSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/insights/report", insightsHandler.CreateReport).Methods(http.MethodPost)

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(r),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// aiOrNil keeps a typed-nil *Gemini out of the extract.AI interface value.
func aiOrNil(ai *extract.Gemini) extract.AI {
	if ai == nil {
		return nil
	}
	return ai
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
