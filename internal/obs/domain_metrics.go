package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponRedemptionsTotal counts coupon redemption attempts by outcome.
	CouponRedemptionsTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout confirmation outcomes.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutDuration records checkout confirmation latency in milliseconds.
	CheckoutDuration prometheus.Histogram
	// ShippingQuoteTotal counts shipping quote resolutions by outcome.
	ShippingQuoteTotal *prometheus.CounterVec
	// EventDispatchAttempts counts outbox dispatch attempts regardless of outcome.
	EventDispatchAttempts prometheus.Counter
	// EventDispatchTotal tracks outbox dispatch outcomes per topic.
	EventDispatchTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Count of coupon redemption attempts by outcome.",
		}, []string{"outcome"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout confirmation outcomes.",
		}, []string{"result"})
		CheckoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Checkout confirmation latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		ShippingQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quote_total",
			Help:      "Count of shipping quote resolutions by outcome.",
		}, []string{"result"})
		EventDispatchAttempts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_dispatch_attempts_total",
			Help:      "Total number of outbox event dispatch attempts.",
		})
		EventDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_dispatch_total",
			Help:      "Count of outbox event dispatch outcomes per topic.",
		}, []string{"topic", "result"})

		mustRegisterCollector(reg, CouponRedemptionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponRedemptionsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutDuration = v
			}
		})
		mustRegisterCollector(reg, ShippingQuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShippingQuoteTotal = v
			}
		})
		mustRegisterCollector(reg, EventDispatchAttempts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				EventDispatchAttempts = v
			}
		})
		mustRegisterCollector(reg, EventDispatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				EventDispatchTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
