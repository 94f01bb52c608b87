package remote

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

const (
	opSelect = "select"
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
)

var errMissingDatabase = errors.New("remote: database handle is required")

// GormClient implements Client over a gorm connection.
type GormClient struct {
	db *gorm.DB
}

// NewGormClient wraps an open gorm connection.
func NewGormClient(db *gorm.DB) (*GormClient, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &GormClient{db: db}, nil
}

func (c *GormClient) scoped(ctx context.Context, table string, filters []Filter) *gorm.DB {
	tx := c.db.WithContext(ctx).Table(table)
	for _, filter := range filters {
		tx = tx.Where(filter.Column+" = ?", filter.Value)
	}
	return tx
}

func (c *GormClient) Select(ctx context.Context, table string, query Query, dest any) error {
	tx := c.scoped(ctx, table, query.Filters)
	if query.SinceColumn != "" {
		tx = tx.Where(query.SinceColumn+" >= ?", query.Since)
	}
	if query.Order != "" {
		tx = tx.Order(query.Order)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return newStoreError(opSelect, table, err)
	}
	return nil
}

func (c *GormClient) Insert(ctx context.Context, table string, rows any) error {
	if err := c.db.WithContext(ctx).Table(table).Create(rows).Error; err != nil {
		return newStoreError(opInsert, table, err)
	}
	return nil
}

func (c *GormClient) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, newStoreError(opUpdate, table, ErrEmptyFilter)
	}
	result := c.scoped(ctx, table, filters).Updates(patch)
	if result.Error != nil {
		return 0, newStoreError(opUpdate, table, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, newStoreError(opUpdate, table, ErrNoRows)
	}
	return result.RowsAffected, nil
}

func (c *GormClient) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, newStoreError(opDelete, table, ErrEmptyFilter)
	}
	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, filter := range filters {
		clauses = append(clauses, filter.Column+" = ?")
		args = append(args, filter.Value)
	}
	statement := "DELETE FROM " + table + " WHERE " + strings.Join(clauses, " AND ")
	result := c.db.WithContext(ctx).Exec(statement, args...)
	if result.Error != nil {
		return 0, newStoreError(opDelete, table, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, newStoreError(opDelete, table, ErrNoRows)
	}
	return result.RowsAffected, nil
}

var _ Client = (*GormClient)(nil)
