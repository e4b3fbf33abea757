package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"saldo/internal/core"
)

func customFieldFromRow(f CustomField) core.CustomField {
	out := core.CustomField{
		ID:              f.ID,
		Name:            f.Name,
		Type:            core.CustomFieldType(f.Type),
		Required:        f.Required,
		TransactionType: core.FieldScope(f.TransactionType),
		Options:         []string{},
	}
	// Options are written by this package only; a bad value leaves them empty.
	_ = json.Unmarshal([]byte(f.Options), &out.Options)
	return out
}

func encodeOptions(opts []string) (string, error) {
	if opts == nil {
		opts = []string{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func (r *SQLiteRepository) CreateCustomField(ctx context.Context, f core.CustomField) (core.CustomField, error) {
	opts, err := encodeOptions(f.Options)
	if err != nil {
		return core.CustomField{}, err
	}
	row, err := r.queries.CreateCustomField(ctx, CreateCustomFieldParams{
		Name:            f.Name,
		Type:            string(f.Type),
		Options:         opts,
		Required:        f.Required,
		TransactionType: string(f.TransactionType),
	})
	if err != nil {
		return core.CustomField{}, translate(err, "create custom field")
	}
	return customFieldFromRow(row), nil
}

func (r *SQLiteRepository) GetCustomField(ctx context.Context, id int64) (core.CustomField, error) {
	row, err := r.queries.GetCustomField(ctx, id)
	if err != nil {
		return core.CustomField{}, translate(err, "get custom field")
	}
	return customFieldFromRow(row), nil
}

func (r *SQLiteRepository) ListCustomFields(ctx context.Context) ([]core.CustomField, error) {
	rows, err := r.queries.ListCustomFields(ctx)
	if err != nil {
		return nil, translate(err, "list custom fields")
	}
	out := make([]core.CustomField, len(rows))
	for i, row := range rows {
		out[i] = customFieldFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCustomField(ctx context.Context, f core.CustomField) (core.CustomField, error) {
	opts, err := encodeOptions(f.Options)
	if err != nil {
		return core.CustomField{}, err
	}
	n, err := r.queries.UpdateCustomField(ctx, UpdateCustomFieldParams{
		Name:            f.Name,
		Type:            string(f.Type),
		Options:         opts,
		Required:        f.Required,
		TransactionType: string(f.TransactionType),
		ID:              f.ID,
	})
	if err := affected(n, err, "update custom field"); err != nil {
		return core.CustomField{}, err
	}
	return r.GetCustomField(ctx, f.ID)
}

// DeleteCustomField also drops the values stored for it.
func (r *SQLiteRepository) DeleteCustomField(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCustomField(ctx, id)
	return affected(n, err, "delete custom field")
}
