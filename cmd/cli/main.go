package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/extract"
	"github.com/ledgerline/expense-ingest/internal/ingest"
	"github.com/ledgerline/expense-ingest/internal/logger"
	"github.com/ledgerline/expense-ingest/internal/store"
	"github.com/shopspring/decimal"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(log)
	case "scan":
		runScan(log)
	case "list":
		runList(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Expense Ingest CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Extract, duplicate-check, and optionally commit expense files")
	fmt.Println("  scan      Extract fields from a single receipt image")
	fmt.Println("  list      List stored expenses")
	fmt.Println("  export    Export stored expenses to a JSON file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openStore(log zerolog.Logger, dataDir string) *store.Store {
	collections, err := store.NewFileCollections(dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data directory")
	}
	return store.New(collections)
}

// newService wires the import pipeline, with AI extraction only when an API
// key is configured.
func newService(ctx context.Context, log zerolog.Logger, expenseStore *store.Store, opts ...ingest.Option) *ingest.Service {
	var ai *extract.Gemini
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		var err error
		ai, err = extract.NewGemini(ctx, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
	}

	var aiCap extract.AI
	var scanner ingest.ReceiptScanner
	if ai != nil {
		aiCap = ai
		scanner = ai
	}
	return ingest.NewService(extract.NewExtractor(aiCap, log), scanner, expenseStore, log, opts...)
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "Directory for file-backed collections")
	commit := fs.Bool("commit", false, "Commit every clean item instead of previewing")
	delay := fs.Duration("delay", ingest.DefaultDelay, "Delay between AI-backed extraction calls")
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		log.Fatal().Msg("Error: at least one file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var files []ingest.File
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to read file")
		}
		files = append(files, ingest.File{Name: filepath.Base(path), Data: data})
	}

	expenseStore := openStore(log, *dataDir)
	session := newService(ctx, log, expenseStore, ingest.WithDelay(*delay)).NewSession()

	err := session.Run(ctx, files, func(item ingest.BatchItem) {
		if item.Status == ingest.StatusProcessing {
			return
		}
		line := fmt.Sprintf("%-10s %s", item.Status, item.FileName)
		if item.Candidate.Merchant != "" {
			line += "  " + item.Candidate.Merchant
		}
		if item.Candidate.Amount != nil {
			line += "  " + item.Candidate.Amount.String()
		}
		if item.Message != "" {
			line += "  (" + item.Message + ")"
		}
		fmt.Println(line)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	if !*commit {
		fmt.Println("Preview only; re-run with -commit to save clean items.")
		return
	}

	results, err := session.CommitAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Commit failed")
	}
	committed := 0
	for _, res := range results {
		if res.Expense != nil {
			committed++
		}
	}
	fmt.Printf("Committed %d of %d items.\n", committed, len(results))
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "Directory for file-backed collections")
	fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		log.Fatal().Msg("Error: exactly one image is required")
	}
	path := fs.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read image")
	}

	expenseStore := openStore(log, *dataDir)
	result, err := newService(ctx, log, expenseStore).ScanReceipt(ctx, filepath.Base(path), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Scan failed")
	}

	c := result.Candidate
	fmt.Printf("Merchant: %s\n", c.Merchant)
	if c.Amount != nil {
		fmt.Printf("Amount:   %s\n", c.Amount)
	}
	if c.Date != nil {
		fmt.Printf("Date:     %s\n", c.Date.Format("2006-01-02"))
	}
	fmt.Printf("Category: %s\n", c.Category)
	if c.UTR != "" {
		fmt.Printf("UTR:      %s\n", c.UTR)
	}
	if result.IsDuplicate {
		fmt.Println("\nWarning: an equivalent expense already exists in the store.")
	}
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "Directory for file-backed collections")
	month := fs.String("month", "", "Restrict to one calendar month (YYYY-MM)")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	var monthFilter time.Time
	if *month != "" {
		var err error
		monthFilter, err = time.Parse("2006-01", *month)
		if err != nil {
			log.Fatal().Str("month", *month).Msg("Invalid month, want YYYY-MM")
		}
	}

	expenses, err := openStore(log, *dataDir).LoadExpenses(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load expenses")
	}

	total := decimal.Zero
	for _, e := range expenses {
		if *month != "" && (e.Date.Year() != monthFilter.Year() || e.Date.Month() != monthFilter.Month()) {
			continue
		}
		fmt.Printf("%s  %-14s %-28s %10s\n", e.Date.Format("2006-01-02"), e.Category, e.Merchant, e.Amount)
		total = total.Add(e.Amount)
	}
	fmt.Printf("\nTotal: %s\n", total)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "Directory for file-backed collections")
	out := fs.String("out", "expenses.json", "Output file")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	expenses, err := openStore(log, *dataDir).LoadExpenses(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load expenses")
	}

	data, err := json.MarshalIndent(expenses, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode expenses")
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("file", *out).Msg("Failed to write export")
	}
	fmt.Printf("Exported %d expenses to %s.\n", len(expenses), *out)
}
