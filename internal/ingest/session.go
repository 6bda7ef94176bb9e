package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerline/expense-ingest/internal/dedup"
	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Duplicate messages shown on rejected items.
const (
	msgDuplicateStore = "Duplicate transaction."
	msgDuplicateBatch = "Duplicate in this batch."
)

// DefaultDelay is the pause inserted after each AI-backed extraction call
// except the last, to stay under the model API's rate limits.
const DefaultDelay = time.Second

// DocumentExtractor turns one uploaded file into candidate expenses.
type DocumentExtractor interface {
	ProcessFile(ctx context.Context, name string, data []byte) ([]expense.Candidate, error)
}

// ReceiptScanner extracts structured fields from a single receipt image.
type ReceiptScanner interface {
	ExtractReceiptFields(ctx context.Context, image []byte, mimeType string) (expense.Candidate, error)
}

// Recorder is the store capability the commit path needs: a snapshot read for
// duplicate detection and an append for accepted items. *store.Store
// satisfies it.
type Recorder interface {
	LoadExpenses(ctx context.Context) ([]expense.Expense, error)
	Append(ctx context.Context, records ...expense.Expense) error
}

// Session owns the BatchItems of one import session. All mutation happens
// under its mutex; items are handed out by value only. File processing within
// Run is strictly sequential, so only one item is ever in flight.
type Session struct {
	ID        string
	CreatedAt time.Time

	extractor DocumentExtractor
	scanner   ReceiptScanner
	recorder  Recorder
	sleeper   Sleeper
	delay     time.Duration
	dedupOpts dedup.Options
	log       zerolog.Logger

	mu       sync.Mutex
	items    []*BatchItem
	detector *dedup.Detector
	started  bool
	finished bool
}

// Running reports whether Run has started but not yet finished.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.finished
}

// Finished reports whether Run has completed.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Items returns a copy of the current batch, in the order files were
// supplied.
func (s *Session) Items() []BatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]BatchItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	return items
}

// Item returns a copy of one batch item by ID.
func (s *Session) Item(id string) (BatchItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findLocked(id)
	if item == nil {
		return BatchItem{}, false
	}
	return *item, true
}

func (s *Session) findLocked(id string) *BatchItem {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Run processes the files strictly in order. Each file is extracted, each
// resulting candidate validated and duplicate-checked, and a BatchItem
// appended per candidate (or per failed file). onUpdate, when non-nil, is
// invoked with a copy of the item after every status change.
//
// Run never fails because of a single file: extraction and validation
// failures become error items, and a store snapshot failure degrades to
// duplicate-checking against an empty collection. It returns an error only
// when the context is cancelled.
func (s *Session) Run(ctx context.Context, files []File, onUpdate func(BatchItem)) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("import session %s already ran", s.ID)
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
	}()

	stored, err := s.recorder.LoadExpenses(ctx)
	if err != nil {
		// A degraded store must not block the batch; the duplicate check
		// just sees an empty collection.
		s.log.Warn().Str("session", s.ID).Err(err).Msg("store snapshot unavailable, deduplicating against an empty collection")
		stored = nil
	}
	s.mu.Lock()
	s.detector = dedup.NewDetector(stored, s.dedupOpts)
	s.mu.Unlock()

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.log.Info().Str("session", s.ID).Str("file", file.Name).Msg("processing file")
		s.processFile(ctx, file, onUpdate)

		// The model API throttles bursts, so AI-backed calls are spaced out.
		// Local parsers need no pacing, and the last file has nothing after
		// it to protect.
		if requiresAI(file.Name) && i < len(files)-1 {
			if err := s.sleeper.Sleep(ctx, s.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) processFile(ctx context.Context, file File, onUpdate func(BatchItem)) {
	candidates, err := s.extract(ctx, file)
	if err != nil {
		s.log.Warn().Str("session", s.ID).Str("file", file.Name).Err(err).Msg("file failed")
		item := s.appendItem(file.Name, expense.Candidate{})
		s.resolve(item, StatusError, err.Error(), "", onUpdate)
		return
	}

	for _, c := range candidates {
		item := s.appendItem(file.Name, c)
		s.emit(item, onUpdate)

		if reason := c.MissingFieldReason(); reason != "" {
			s.resolve(item, StatusError, reason, "", onUpdate)
			continue
		}

		res := s.check(c)
		if res.IsDuplicate {
			msg := msgDuplicateStore
			if res.MatchedAgainst == dedup.MatchBatch {
				msg = msgDuplicateBatch
			}
			s.resolve(item, StatusDuplicate, msg, res.MatchedAgainst, onUpdate)
			continue
		}

		s.accept(c)
		s.resolve(item, StatusSuccess, "", "", onUpdate)
	}
}

func (s *Session) extract(ctx context.Context, file File) ([]expense.Candidate, error) {
	if isImage(file.Name) {
		if s.scanner == nil {
			return nil, fmt.Errorf("receipt scanning requires the AI capability, which is not configured")
		}
		c, err := s.scanner.ExtractReceiptFields(ctx, file.Data, imageMIME(file.Name))
		if err != nil {
			return nil, err
		}
		c.ReceiptImage = dataURL(file.Name, file.Data)
		return []expense.Candidate{c}, nil
	}
	return s.extractor.ProcessFile(ctx, file.Name, file.Data)
}

func (s *Session) appendItem(fileName string, c expense.Candidate) *BatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &BatchItem{
		ID:           uuid.NewString(),
		FileName:     fileName,
		Candidate:    c,
		Status:       StatusProcessing,
		ReceiptImage: c.ReceiptImage,
	}
	s.items = append(s.items, item)
	return item
}

func (s *Session) resolve(item *BatchItem, status Status, message, matched string, onUpdate func(BatchItem)) {
	s.mu.Lock()
	item.Status = status
	item.Message = message
	item.MatchedAgainst = matched
	s.mu.Unlock()
	s.emit(item, onUpdate)
}

func (s *Session) emit(item *BatchItem, onUpdate func(BatchItem)) {
	if onUpdate == nil {
		return
	}
	s.mu.Lock()
	snapshot := *item
	s.mu.Unlock()
	onUpdate(snapshot)
}

func (s *Session) check(c expense.Candidate) dedup.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Check(c)
}

func (s *Session) accept(c expense.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.Accept(c)
}

// UpdateCandidate replaces the candidate fields of a success item, for edits
// made between extraction and commit. Terminal items cannot be edited.
func (s *Session) UpdateCandidate(itemID string, c expense.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findLocked(itemID)
	if item == nil {
		return fmt.Errorf("item %s not found in session %s", itemID, s.ID)
	}
	if item.Status != StatusSuccess {
		return fmt.Errorf("item %s is %s and cannot be edited", itemID, item.Status)
	}
	c.ReceiptImage = item.Candidate.ReceiptImage
	item.Candidate = c
	return nil
}

// Commit converts one success item into a persisted Expense and appends it to
// the store, transitioning the item to added. Calling Commit on an item that
// is not in success status is caller misuse and fails loudly.
//
// A zero-or-negative amount found at commit time flips the item to error
// without returning a failure, so a batch-wide commit is never aborted by one
// bad item. A store append failure is likewise logged and skipped: the item
// stays in success and the result carries no Expense.
func (s *Session) Commit(ctx context.Context, itemID string) (CommitResult, error) {
	s.mu.Lock()
	item := s.findLocked(itemID)
	if item == nil {
		s.mu.Unlock()
		return CommitResult{}, fmt.Errorf("commit: item %s not found in session %s", itemID, s.ID)
	}
	if item.Status != StatusSuccess {
		s.mu.Unlock()
		return CommitResult{}, fmt.Errorf("commit: item %s is %s, want %s", itemID, item.Status, StatusSuccess)
	}
	c := item.Candidate
	s.mu.Unlock()

	// Should have been caught during processing, but the candidate may have
	// been edited since; re-check before touching the store.
	if c.Amount == nil || !c.Amount.IsPositive() {
		s.mu.Lock()
		item.Status = StatusError
		item.Message = "amount must be greater than zero"
		snapshot := *item
		s.mu.Unlock()
		return CommitResult{Item: snapshot}, nil
	}

	record, err := buildRecord(c, item.FileName)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit item %s: %w", itemID, err)
	}
	if err := s.recorder.Append(ctx, record); err != nil {
		// The store is degradable: the save is skipped and the item stays
		// in success, so the commit can be retried when the store recovers.
		s.log.Error().Str("session", s.ID).Str("item", itemID).Err(err).Msg("store append failed, commit skipped")
		s.mu.Lock()
		snapshot := *item
		s.mu.Unlock()
		return CommitResult{Item: snapshot}, nil
	}

	s.mu.Lock()
	item.Status = StatusAdded
	item.Message = ""
	snapshot := *item
	s.mu.Unlock()

	s.log.Info().Str("session", s.ID).Str("item", itemID).Str("expense", record.ID).Msg("item committed")
	return CommitResult{Item: snapshot, Expense: &record}, nil
}

// CommitAll commits every success item in batch order. Items that fail the
// commit-time amount re-check flip to error, and items whose save was skipped
// by a degraded store stay in success; both appear in the results without an
// Expense.
func (s *Session) CommitAll(ctx context.Context) ([]CommitResult, error) {
	s.mu.Lock()
	var ids []string
	for _, item := range s.items {
		if item.Status == StatusSuccess {
			ids = append(ids, item.ID)
		}
	}
	s.mu.Unlock()

	results := make([]CommitResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.Commit(ctx, id)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Remove discards one item from the working set without touching the store.
func (s *Session) Remove(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID == itemID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear discards every non-committed item. Added items stay visible; their
// records are already persisted.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.Status == StatusAdded {
			kept = append(kept, item)
		}
	}
	s.items = kept
}

// buildRecord fills commit-time defaults and constructs the persisted record:
// a missing category becomes Other, a missing merchant the fallback literal,
// and empty notes a provenance note naming the source file.
func buildRecord(c expense.Candidate, fileName string) (expense.Expense, error) {
	merchant := strings.TrimSpace(c.Merchant)
	if merchant == "" {
		merchant = "Unknown Merchant"
	}
	notes := strings.TrimSpace(c.Notes)
	if notes == "" {
		if c.ReceiptImage != "" {
			notes = "Imported from " + fileName
		} else {
			notes = "Bulk upload from " + fileName
		}
	}

	record, err := expense.New(*c.Amount, expense.CategoryOrOther(string(c.Category)), *c.Date, merchant, notes)
	if err != nil {
		return expense.Expense{}, err
	}
	record.UTR = strings.TrimSpace(c.UTR)
	record.PaymentMethod = strings.TrimSpace(c.PaymentMethod)
	record.ReceiptImage = c.ReceiptImage
	return record, nil
}

var imageMIMEs = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

func fileExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func isImage(name string) bool {
	_, ok := imageMIMEs[fileExt(name)]
	return ok
}

func imageMIME(name string) string {
	return imageMIMEs[fileExt(name)]
}

// requiresAI reports whether extracting this file calls the remote model,
// which is what the inter-file delay protects.
func requiresAI(name string) bool {
	return fileExt(name) == "pdf" || isImage(name)
}

func dataURL(name string, data []byte) string {
	return "data:" + imageMIME(name) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
