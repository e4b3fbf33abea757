// Package backend chooses where the sync worker mirrors transactions.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/config"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/sheets/memory"
)

// MirrorType represents the kind of spreadsheet mirror
type MirrorType string

const (
	SheetsMirror MirrorType = "sheets"
	MemoryMirror MirrorType = "memory"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case SheetsMirror, MemoryMirror:
		return true
	default:
		return false
	}
}

// Config holds configuration for mirror creation
type Config struct {
	Type MirrorType

	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// FromAppConfig picks the Google Sheets mirror when a spreadsheet is
// configured and the in-memory one otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Type:                MemoryMirror,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	if appConfig.SheetsEnabled() {
		c.Type = SheetsMirror
	}
	return c, c.Validate()
}

// Validate validates the mirror configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}
	if c.Type == SheetsMirror {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for the sheets mirror")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("sheet name is required for the sheets mirror")
		}
	}
	return nil
}

// SheetsFactory builds the Google Sheets client. Tests replace it.
type SheetsFactory func(ctx context.Context) (sheets.TransactionMirror, error)

func defaultSheets(ctx context.Context) (sheets.TransactionMirror, error) {
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Factory creates mirrors based on configuration
type Factory struct {
	logger    *slog.Logger
	newSheets SheetsFactory
}

// NewFactory creates a new mirror factory. A nil sheets factory uses the
// Google Sheets client configured from the environment.
func NewFactory(logger *slog.Logger, newSheets SheetsFactory) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if newSheets == nil {
		newSheets = defaultSheets
	}
	return &Factory{logger: logger, newSheets: newSheets}
}

// CreateMirror returns the mirror described by config.
func (f *Factory) CreateMirror(ctx context.Context, config Config) (sheets.TransactionMirror, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsMirror:
		m, err := f.newSheets(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets mirror",
			"spreadsheet_id", config.GoogleSpreadsheetID,
			"sheet", config.GoogleSheetName)
		return m, nil
	default:
		f.logger.Info("Google Sheets disabled - mirroring into memory")
		return memory.New(), nil
	}
}
