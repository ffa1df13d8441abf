package store

import (
	"context"
)

const productColumns = "id, title, slug, price, stock, active"

// ListActiveProducts returns the storefront catalog.
func (s *Store) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+` FROM products WHERE active ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProductBySlug loads one product regardless of active state.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock, &p.Active)
	return p, err
}
