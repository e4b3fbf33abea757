package sheets

import (
	"context"
	"errors"
)

var ErrNotInitialized = errors.New("sheets service not initialized")

// TransactionMirror keeps one spreadsheet row per transaction, keyed by the
// transaction ID in the first cell.
type TransactionMirror interface {
	// EnsureHeader writes the header row when it differs from header.
	EnsureHeader(ctx context.Context, header []string) error
	// Upsert replaces the row of id with cells, appending it when missing.
	Upsert(ctx context.Context, id int64, cells []string) error
	// Delete removes the row of id. Unknown ids are not an error.
	Delete(ctx context.Context, id int64) error
}
