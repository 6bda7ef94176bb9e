package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/dedup"
	"github.com/ledgerline/expense-ingest/internal/expense"
)

// ScanResult is the outcome of a single-entry receipt scan: the extracted
// fields plus whether an equivalent record already exists in the store.
type ScanResult struct {
	Candidate   expense.Candidate `json:"candidate"`
	IsDuplicate bool              `json:"isDuplicate"`
}

// Service creates import sessions and serves single-entry receipt scans. It
// is safe for concurrent use; each Session guards its own state.
type Service struct {
	extractor DocumentExtractor
	scanner   ReceiptScanner
	recorder  Recorder
	sleeper   Sleeper
	delay     time.Duration
	dedupOpts dedup.Options
	log       zerolog.Logger
}

// Option tweaks Service construction.
type Option func(*Service)

// WithSleeper replaces the real timer, for tests.
func WithSleeper(s Sleeper) Option {
	return func(svc *Service) { svc.sleeper = s }
}

// WithDelay overrides the inter-file pacing delay.
func WithDelay(d time.Duration) Option {
	return func(svc *Service) { svc.delay = d }
}

// WithDedupOptions overrides the duplicate matching heuristics.
func WithDedupOptions(opts dedup.Options) Option {
	return func(svc *Service) { svc.dedupOpts = opts }
}

// NewService wires the import pipeline. scanner may be nil, in which case
// image files fail with a configuration error instead of calling out.
func NewService(extractor DocumentExtractor, scanner ReceiptScanner, recorder Recorder, log zerolog.Logger, opts ...Option) *Service {
	svc := &Service{
		extractor: extractor,
		scanner:   scanner,
		recorder:  recorder,
		sleeper:   TimerSleeper{},
		delay:     DefaultDelay,
		log:       log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewSession creates an empty import session ready to Run.
func (svc *Service) NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		extractor: svc.extractor,
		scanner:   svc.scanner,
		recorder:  svc.recorder,
		sleeper:   svc.sleeper,
		delay:     svc.delay,
		dedupOpts: svc.dedupOpts,
		log:       svc.log,
	}
}

// ProcessFile extracts candidates from a single file without opening a
// session. Used by callers that preview a file before importing it.
func (svc *Service) ProcessFile(ctx context.Context, name string, data []byte) ([]expense.Candidate, error) {
	return svc.extractor.ProcessFile(ctx, name, data)
}

// ScanReceipt extracts fields from one receipt image and checks them against
// the persisted store only. The scan feeds a manual entry form, so there is
// no batch to compare against.
func (svc *Service) ScanReceipt(ctx context.Context, name string, image []byte) (ScanResult, error) {
	if svc.scanner == nil {
		return ScanResult{}, fmt.Errorf("receipt scanning requires the AI capability, which is not configured")
	}
	if !isImage(name) {
		return ScanResult{}, fmt.Errorf("scan receipt: %s is not a supported image", name)
	}

	c, err := svc.scanner.ExtractReceiptFields(ctx, image, imageMIME(name))
	if err != nil {
		return ScanResult{}, err
	}
	c.ReceiptImage = dataURL(name, image)

	stored, err := svc.recorder.LoadExpenses(ctx)
	if err != nil {
		// Same degraded-store policy as the batch loop: an unreadable
		// collection means no known duplicates.
		svc.log.Warn().Err(err).Msg("store snapshot unavailable, scan deduplicates against an empty collection")
		stored = nil
	}
	res := dedup.NewDetector(stored, svc.dedupOpts).Check(c)
	return ScanResult{Candidate: c, IsDuplicate: res.IsDuplicate}, nil
}
