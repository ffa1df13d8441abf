package shipping

import (
	"errors"
	"strings"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

// ErrUnresolvedDestination is returned when no configured zone matches the
// destination. Callers must treat it as "cannot quote shipping yet", never
// as zero-cost shipping.
var ErrUnresolvedDestination = errors.New("shipping destination not recognised")

// Method describes a single shipping option within a zone.
type Method struct {
	ID        string
	Name      string
	BaseCost  money.Money
	ETADays   int32
	FreeAbove *money.Money
}

// Zone groups the shipping methods served from a set of postal prefixes.
// Methods keep their configured order (fastest first by convention) and are
// never re-sorted by price.
type Zone struct {
	Name           string
	PostalPrefixes []string
	Methods        []Method
}

// MethodQuote pairs a method with its effective cost for a given subtotal.
type MethodQuote struct {
	Method        Method
	EffectiveCost money.Money
}

// RateTable resolves destinations to zones and quotes method costs.
type RateTable struct {
	zones []Zone
}

// NewRateTable builds a table from configured zones.
func NewRateTable(zones []Zone) *RateTable {
	return &RateTable{zones: zones}
}

// Resolve maps a destination postal code to its zone. The longest matching
// configured prefix wins so that a dense city prefix can override a broader
// regional one.
func (t *RateTable) Resolve(destination string) (Zone, error) {
	code := strings.TrimSpace(destination)
	if t == nil || code == "" {
		return Zone{}, ErrUnresolvedDestination
	}
	var (
		best    Zone
		bestLen = -1
	)
	for _, zone := range t.zones {
		for _, prefix := range zone.PostalPrefixes {
			p := strings.TrimSpace(prefix)
			if p == "" || !strings.HasPrefix(code, p) {
				continue
			}
			if len(p) > bestLen {
				best = zone
				bestLen = len(p)
			}
		}
	}
	if bestLen < 0 {
		return Zone{}, ErrUnresolvedDestination
	}
	return best, nil
}

// Quote returns every method of the zone with its effective cost for the
// given subtotal. A method with a free-shipping threshold costs zero once
// subtotal >= threshold; the boundary is inclusive.
func Quote(zone Zone, subtotal money.Money) []MethodQuote {
	quotes := make([]MethodQuote, 0, len(zone.Methods))
	for _, m := range zone.Methods {
		cost := m.BaseCost
		if m.FreeAbove != nil && subtotal.Cmp(*m.FreeAbove) >= 0 {
			cost = money.Zero(m.BaseCost.Currency)
		}
		quotes = append(quotes, MethodQuote{Method: m, EffectiveCost: cost})
	}
	return quotes
}

// SelectQuote finds the quote for the requested method id.
func SelectQuote(quotes []MethodQuote, methodID string) (MethodQuote, bool) {
	for _, q := range quotes {
		if q.Method.ID == methodID {
			return q, true
		}
	}
	return MethodQuote{}, false
}
