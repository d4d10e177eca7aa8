package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PurchasesTotal counts purchase create/update outcomes.
	PurchasesTotal *prometheus.CounterVec
	// PurchasePreviewTotal counts totals-preview computations.
	PurchasePreviewTotal prometheus.Counter
	// PurchaseGrandTotal observes the grand total of persisted purchases.
	PurchaseGrandTotal prometheus.Histogram
	// TaxAttachRejectedTotal counts rejected tax attachments by reason.
	TaxAttachRejectedTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PurchasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Count of purchase write outcomes.",
		}, []string{"op", "result"})
		PurchasePreviewTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_previews_total",
			Help:      "Count of purchase totals previews computed.",
		})
		PurchaseGrandTotal = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purchase_grand_total",
			Help:      "Distribution of persisted purchase grand totals.",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		})
		TaxAttachRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_attach_rejected_total",
			Help:      "Count of rejected tax attachments by reason.",
		}, []string{"reason"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})
		WebhookAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		mustRegisterCollector(reg, PurchasesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PurchasesTotal = v
			}
		})
		mustRegisterCollector(reg, PurchasePreviewTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PurchasePreviewTotal = v
			}
		})
		mustRegisterCollector(reg, PurchaseGrandTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PurchaseGrandTotal = v
			}
		})
		mustRegisterCollector(reg, TaxAttachRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TaxAttachRejectedTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookAttemptLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				WebhookAttemptLatency = v
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
