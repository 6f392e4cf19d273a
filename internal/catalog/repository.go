// Package catalog reads the locally synced product table. The chat surface
// resolves product codes against this table instead of round-tripping to the
// ERP for every quotation line.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound indicates no product matches the given code.
var ErrNotFound = errors.New("catalog: product not found")

// Product is one row of the synced catalog.
type Product struct {
	ID            int
	Code          string
	Name          string
	Collection    string
	ProductType   string
	Color         string
	ListPrice     float64
	OdooProductID int
}

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository looks up products in postgres.
type Repository struct {
	db DB
}

// NewRepository initializes a catalog repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("catalog: db required")
	}
	return &Repository{db: db}
}

const productColumns = `id, code, name, collection, product_type, color, list_price, odoo_product_id`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Collection,
		&p.ProductType,
		&p.Color,
		&p.ListPrice,
		&p.OdooProductID,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolveCode finds the product with the exact code, case-insensitively.
func (r *Repository) ResolveCode(ctx context.Context, code string) (*Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE upper(code) = upper($1)
	`, productColumns)

	p, err := scanProduct(r.db.QueryRow(ctx, query, strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: resolve code failed: %w", err)
	}
	return p, nil
}

// Search matches the query against code and name.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}
	sql := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE code ILIKE $1 OR name ILIKE $1
		ORDER BY name
		LIMIT $2
	`, productColumns)

	rows, err := r.db.Query(ctx, sql, "%"+strings.TrimSpace(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search failed: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan failed: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate failed: %w", err)
	}
	return products, nil
}
