package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/cache"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// Querier is the persistence surface the shipping service needs.
type Querier interface {
	ListShippingZones(ctx context.Context) ([]store.ShippingZone, error)
	ListShippingMethodsByZone(ctx context.Context, zoneID pgtype.UUID) ([]store.ShippingMethod, error)
}

// Service materialises the configured rate table from the store. The table
// changes rarely, so reads go through a short-lived cache.
type Service struct {
	Q        Querier
	Cache    *cache.Cache
	CacheTTL time.Duration
	Currency string
}

type cachedTable struct {
	Zones   []store.ShippingZone            `json:"zones"`
	Methods map[string][]store.ShippingMethod `json:"methods"`
}

// Table loads the full rate table.
func (s *Service) Table(ctx context.Context) (*RateTable, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("shipping service not configured")
	}
	var payload cachedTable
	if !s.Cache.Get(ctx, cache.KeyShippingZones, &payload) {
		zones, err := s.Q.ListShippingZones(ctx)
		if err != nil {
			return nil, err
		}
		payload.Zones = zones
		payload.Methods = make(map[string][]store.ShippingMethod, len(zones))
		for _, z := range zones {
			methods, err := s.Q.ListShippingMethodsByZone(ctx, z.ID)
			if err != nil {
				return nil, err
			}
			payload.Methods[zoneKey(z.ID)] = methods
		}
		s.Cache.Set(ctx, cache.KeyShippingZones, payload, s.CacheTTL)
	}
	zones := make([]Zone, 0, len(payload.Zones))
	for _, row := range payload.Zones {
		zones = append(zones, s.zoneFromRows(row, payload.Methods[zoneKey(row.ID)]))
	}
	return NewRateTable(zones), nil
}

// QuoteFor resolves the destination and prices every available method against
// the subtotal.
func (s *Service) QuoteFor(ctx context.Context, destination string, subtotal money.Money) (Zone, []MethodQuote, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return Zone{}, nil, err
	}
	zone, err := table.Resolve(destination)
	if err != nil {
		return Zone{}, nil, err
	}
	return zone, Quote(zone, subtotal), nil
}

// Invalidate drops the cached table after zone administration.
func (s *Service) Invalidate(ctx context.Context) {
	s.Cache.Invalidate(ctx, cache.KeyShippingZones)
}

func (s *Service) zoneFromRows(row store.ShippingZone, methodRows []store.ShippingMethod) Zone {
	methods := make([]Method, 0, len(methodRows))
	for _, m := range methodRows {
		method := Method{
			ID:       m.ID,
			Name:     m.Name,
			BaseCost: money.New(m.BaseCost, s.Currency),
			ETADays:  m.ETADays,
		}
		if m.FreeAbove.Valid {
			threshold := money.New(m.FreeAbove.Int64, s.Currency)
			method.FreeAbove = &threshold
		}
		methods = append(methods, method)
	}
	return Zone{Name: row.Name, PostalPrefixes: row.PostalPrefixes, Methods: methods}
}

func zoneKey(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
