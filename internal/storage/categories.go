package storage

import (
	"context"
	"database/sql"
	"fmt"

	"saldo/internal/core"
)

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, translate(err, "list categories")
	}
	out := []core.Category{}
	index := map[int64]int{}
	for _, row := range rows {
		if !row.ParentID.Valid {
			index[row.ID] = len(out)
			out = append(out, core.Category{
				ID:            row.ID,
				Name:          row.Name,
				Icon:          row.Icon,
				Type:          core.CategoryType(row.Type),
				SubCategories: []core.SubCategory{},
			})
			continue
		}
		i, ok := index[row.ParentID.Int64]
		if !ok {
			continue
		}
		out[i].SubCategories = append(out[i].SubCategories, core.SubCategory{ID: row.ID, Name: row.Name, Icon: row.Icon})
	}
	return out, nil
}

// CategoryIndex returns every top-level category keyed by id.
func (r *SQLiteRepository) CategoryIndex(ctx context.Context) (map[int64]core.Category, error) {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[int64]core.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	idx, err := r.CategoryIndex(ctx)
	if err != nil {
		return core.Category{}, err
	}
	c, ok := idx[id]
	if !ok {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

// CreateCategory stores c and its subcategories together.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var id int64
	err := r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		row, err := q.CreateCategory(ctx, CreateCategoryParams{Name: c.Name, Icon: c.Icon, Type: string(c.Type)})
		if err != nil {
			return translate(err, "create category")
		}
		id = row.ID
		for _, s := range c.SubCategories {
			if _, err := q.CreateCategory(ctx, CreateCategoryParams{
				ParentID: sql.NullInt64{Int64: id, Valid: true},
				Name:     s.Name,
				Icon:     s.Icon,
				Type:     string(c.Type),
			}); err != nil {
				return translate(err, "create subcategory")
			}
		}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, id)
}

// UpdateCategory changes name, icon and type; subcategories follow the type.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	err := r.inTx(ctx, func(q *Queries, _ *sql.Tx) error {
		n, err := q.UpdateCategory(ctx, UpdateCategoryParams{Name: c.Name, Icon: c.Icon, Type: string(c.Type), ID: c.ID})
		if err := affected(n, err, "update category"); err != nil {
			return err
		}
		return translate(q.UpdateSubCategoryTypes(ctx, string(c.Type), c.ID), "update subcategories")
	})
	if err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	return affected(n, err, "delete category")
}

func (r *SQLiteRepository) AddSubCategory(ctx context.Context, parentID int64, s core.SubCategory) (core.SubCategory, error) {
	parent, err := r.queries.GetCategory(ctx, parentID)
	if err != nil {
		return core.SubCategory{}, translate(err, "get category")
	}
	if parent.ParentID.Valid {
		return core.SubCategory{}, fmt.Errorf("%w: %d is a subcategory", core.ErrInvalidCategory, parentID)
	}
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		ParentID: sql.NullInt64{Int64: parentID, Valid: true},
		Name:     s.Name,
		Icon:     s.Icon,
		Type:     parent.Type,
	})
	if err != nil {
		return core.SubCategory{}, translate(err, "create subcategory")
	}
	return core.SubCategory{ID: row.ID, Name: row.Name, Icon: row.Icon}, nil
}

func (r *SQLiteRepository) DeleteSubCategory(ctx context.Context, parentID, subID int64) error {
	n, err := r.queries.DeleteSubCategory(ctx, subID, parentID)
	return affected(n, err, "delete subcategory")
}
