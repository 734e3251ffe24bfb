package journal

import "errors"

var (
	// ErrTooFewLines indicates a posting with fewer than two lines.
	ErrTooFewLines = errors.New("journal: entry requires at least two lines")
	// ErrUnbalanced indicates debits and credits that do not match exactly.
	// This is a programming error in the caller, never user input.
	ErrUnbalanced = errors.New("journal: entry debits do not equal credits")
	// ErrDuplicateEntryNumber is returned by the store when a concurrent
	// writer claimed the generated entry number first.
	ErrDuplicateEntryNumber = errors.New("journal: duplicate entry number")
	// ErrRetryExhausted indicates the engine gave up generating a unique
	// entry number. Fatal; the enclosing transaction must abort.
	ErrRetryExhausted = errors.New("journal: entry number retries exhausted")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("journal: entry not found")
)
