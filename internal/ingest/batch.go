// Package ingest drives import sessions: extracting candidate expenses from
// uploaded files, checking them for duplicates, tracking per-item status, and
// committing accepted items to the store. Files in one batch are processed
// strictly sequentially with an enforced delay between AI-backed extraction
// calls, because the upstream model API throttles concurrent callers.
package ingest

import (
	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Status is the lifecycle state of one BatchItem.
//
// Transitions: processing -> success | error | duplicate, success -> added.
// duplicate, error, and added are terminal; success is the only resting state
// that still awaits a commit decision.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusDuplicate  Status = "duplicate"
	StatusAdded      Status = "added"
)

// Terminal reports whether no further transition can happen from s, other
// than success -> added on commit.
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusDuplicate || s == StatusAdded
}

// BatchItem is one tracked unit of work in an import session: a candidate
// expense plus its status and any error or match metadata. Items are always
// handed out by value; callers never see the session's internal slice.
type BatchItem struct {
	ID             string            `json:"id"`
	FileName       string            `json:"fileName"`
	Candidate      expense.Candidate `json:"candidate"`
	Status         Status            `json:"status"`
	Message        string            `json:"message,omitempty"`
	MatchedAgainst string            `json:"matchedAgainst,omitempty"`
	ReceiptImage   string            `json:"receiptImage,omitempty"`
}

// File is one uploaded input to a batch.
type File struct {
	Name string
	Data []byte
}

// CommitResult reports the outcome of committing one item. Expense is nil
// when the commit-time re-validation flipped the item to error instead of
// appending a record.
type CommitResult struct {
	Item    BatchItem        `json:"item"`
	Expense *expense.Expense `json:"expense,omitempty"`
}
