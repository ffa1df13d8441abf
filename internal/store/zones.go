package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// ListShippingZones returns every configured zone.
func (s *Store) ListShippingZones(ctx context.Context) ([]ShippingZone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, postal_prefixes FROM shipping_zones ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShippingZone
	for rows.Next() {
		var z ShippingZone
		if err := rows.Scan(&z.ID, &z.Name, &z.PostalPrefixes); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// ListShippingMethodsByZone returns a zone's methods in configured order.
func (s *Store) ListShippingMethodsByZone(ctx context.Context, zoneID pgtype.UUID) ([]ShippingMethod, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, zone_id, name, base_cost, eta_days, free_above, position
		FROM shipping_methods WHERE zone_id = $1 ORDER BY position`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShippingMethod
	for rows.Next() {
		var m ShippingMethod
		if err := rows.Scan(&m.ID, &m.ZoneID, &m.Name, &m.BaseCost, &m.ETADays, &m.FreeAbove, &m.Position); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
