package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"saldo/internal/core"
	"saldo/internal/export"
	"saldo/internal/importer"
)

// PreviewImport reads an uploaded file and suggests a column mapping.
func (s *TransactionService) PreviewImport(ctx context.Context, filename string, r io.Reader) (importer.Preview, error) {
	table, err := importer.Read(filename, r)
	if err != nil {
		return importer.Preview{}, invalid(err)
	}
	fields, err := s.storage.ListCustomFields(ctx)
	if err != nil {
		return importer.Preview{}, fmt.Errorf("list custom fields: %w", err)
	}
	return importer.NewPreview(table, importer.Targets(fields)), nil
}

// Import converts every row of the file with m and stores them together.
// A single failing row rejects the whole file.
func (s *TransactionService) Import(ctx context.Context, filename string, r io.Reader, m importer.Mapping) ([]core.Transaction, error) {
	table, err := importer.Read(filename, r)
	if err != nil {
		return nil, invalid(err)
	}
	cat, err := loadCatalog(ctx, s.storage)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	txs, err := importer.Convert(table, m, importer.Lookup{
		Categories: cat.categories,
		Accounts:   cat.accounts,
		Fields:     cat.fields,
	}, s.today())
	if err != nil {
		return nil, invalid(err)
	}
	created, err := s.storage.CreateTransactions(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("save import: %w", err)
	}
	slog.InfoContext(ctx, "Transactions imported", "file", filename, "rows", len(created))
	s.publishSync(ctx, created)
	return created, nil
}

// Export writes the transactions matching f to w.
func (s *TransactionService) Export(ctx context.Context, w io.Writer, format export.Format, f core.Filter) error {
	txs, err := s.storage.ListTransactions(ctx, f)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	cat, err := loadCatalog(ctx, s.storage)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := export.Write(w, format, export.Data{
		Transactions: txs,
		Categories:   cat.byID,
		Accounts:     cat.accountIdx,
		Fields:       cat.fields,
	}); err != nil {
		return fmt.Errorf("write %s export: %w", format, err)
	}
	slog.InfoContext(ctx, "Transactions exported", "format", format, "rows", len(txs))
	return nil
}
