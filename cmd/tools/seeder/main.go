package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-bazaar/internal/app"
	"github.com/noah-isme/backend-bazaar/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.NewDBPool(ctx, cfg, "bazaar-seeder")
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	seedUsers(ctx, pool)
	seedProducts(ctx, pool)
	seedShipping(ctx, pool)
	seedCoupons(ctx, pool)

	log.Println("seeding completed")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	users := []struct {
		Name     string
		Email    string
		Role     string
		Password string
	}{
		{"Bazaar Admin", "admin@bazaar.example", "admin", "admin-dev-password"},
		{"Asha Nair", "asha@example.com", "customer", "customer-password"},
		{"Rohan Mehta", "rohan@example.com", "customer", "customer-password"},
		{"Priya Iyer", "priya@example.com", "customer", "customer-password"},
	}
	log.Println("seeding users")
	for _, u := range users {
		hash, err := app.HashPassword(u.Password)
		if err != nil {
			log.Fatalf("hash password for %s: %v", u.Email, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO users (email, name, role, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		`, u.Email, u.Name, u.Role, hash)
		if err != nil {
			log.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	products := []struct {
		Title string
		Slug  string
		Price int64
		Stock int32
	}{
		{"Steel Water Bottle", "steel-water-bottle", 50_000, 120},
		{"Cotton Kurta", "cotton-kurta", 129_900, 60},
		{"Desk Lamp", "desk-lamp", 100_000, 45},
		{"Ceramic Mug Set", "ceramic-mug-set", 74_900, 80},
		{"Jute Tote Bag", "jute-tote-bag", 39_900, 200},
		{"Bamboo Cutting Board", "bamboo-cutting-board", 64_500, 35},
	}
	log.Println("seeding products")
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (title, slug, price, stock, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price, stock = EXCLUDED.stock
		`, p.Title, p.Slug, p.Price, p.Stock)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.Slug, err)
		}
	}
}

func seedShipping(ctx context.Context, pool *pgxpool.Pool) {
	zones := []struct {
		Name     string
		Prefixes []string
		Methods  []struct {
			ID        string
			Name      string
			BaseCost  int64
			ETADays   int32
			FreeAbove *int64
		}
	}{
		{
			Name:     "Metro South",
			Prefixes: []string{"56", "60"},
			Methods: []struct {
				ID        string
				Name      string
				BaseCost  int64
				ETADays   int32
				FreeAbove *int64
			}{
				{"express", "Express", 25_000, 1, nil},
				{"standard", "Standard", 10_000, 4, ptr(int64(150_000))},
			},
		},
		{
			Name:     "North",
			Prefixes: []string{"11", "12"},
			Methods: []struct {
				ID        string
				Name      string
				BaseCost  int64
				ETADays   int32
				FreeAbove *int64
			}{
				{"standard", "Standard", 15_000, 5, ptr(int64(200_000))},
			},
		},
	}
	log.Println("seeding shipping zones")
	for _, z := range zones {
		var zoneID string
		err := pool.QueryRow(ctx, `
			INSERT INTO shipping_zones (name, postal_prefixes)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET postal_prefixes = EXCLUDED.postal_prefixes
			RETURNING id
		`, z.Name, z.Prefixes).Scan(&zoneID)
		if err != nil {
			log.Fatalf("seed zone %s: %v", z.Name, err)
		}
		for i, m := range z.Methods {
			_, err := pool.Exec(ctx, `
				INSERT INTO shipping_methods (id, zone_id, name, base_cost, eta_days, free_above, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id, zone_id) DO UPDATE SET base_cost = EXCLUDED.base_cost, free_above = EXCLUDED.free_above, position = EXCLUDED.position
			`, m.ID, zoneID, m.Name, m.BaseCost, m.ETADays, m.FreeAbove, i)
			if err != nil {
				log.Fatalf("seed method %s/%s: %v", z.Name, m.ID, err)
			}
		}
	}
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) {
	coupons := []struct {
		Code       string
		Kind       string
		PercentBps int32
		Value      int64
		MinSpend   int64
		Limit      int32
		Emails     []string
		ExpiresIn  time.Duration
	}{
		{Code: "SAVE20", Kind: "percent", PercentBps: 2000, Limit: 3, ExpiresIn: 90 * 24 * time.Hour},
		{Code: "FLAT100", Kind: "fixed_amount", Value: 10_000, MinSpend: 50_000, Limit: 1, ExpiresIn: 30 * 24 * time.Hour},
		{Code: "VIP30", Kind: "percent", PercentBps: 3000, MinSpend: 100_000, Limit: 1,
			Emails: []string{"asha@example.com"}, ExpiresIn: 60 * 24 * time.Hour},
	}
	log.Println("seeding coupons")
	for _, c := range coupons {
		expires := time.Now().Add(c.ExpiresIn)
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, kind, percent_bps, value, min_spend, expires_at, per_user_limit, assigned_emails, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind, percent_bps = EXCLUDED.percent_bps, value = EXCLUDED.value,
				min_spend = EXCLUDED.min_spend, expires_at = EXCLUDED.expires_at,
				per_user_limit = EXCLUDED.per_user_limit, assigned_emails = EXCLUDED.assigned_emails
		`, c.Code, c.Kind, c.PercentBps, c.Value, c.MinSpend, expires, c.Limit, c.Emails)
		if err != nil {
			log.Fatalf("seed coupon %s: %v", c.Code, err)
		}
	}
}

func ptr[T any](v T) *T { return &v }
