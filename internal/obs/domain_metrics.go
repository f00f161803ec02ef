package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoiceSessionsTotal counts invoice session requests by outcome.
	InvoiceSessionsTotal *prometheus.CounterVec
	// InvoiceLinesCreatedTotal counts line records created by get-or-create.
	InvoiceLinesCreatedTotal prometheus.Counter
	// InvoiceGeneratedTotal counts PDF generation attempts by outcome.
	InvoiceGeneratedTotal *prometheus.CounterVec
	// InvoiceGenerateLatency records end to end generation latency in milliseconds.
	InvoiceGenerateLatency prometheus.Histogram
	// SnapshotReadsTotal counts snapshot reads by the store that answered.
	SnapshotReadsTotal *prometheus.CounterVec
	// InvoiceExportsTotal counts CSV exports by outcome.
	InvoiceExportsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers invoice collectors.
// Collectors are usable (but unregistered) when this is never called.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		initDomainCollectors(namespace)

		mustRegisterCollector(reg, InvoiceSessionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceSessionsTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceLinesCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InvoiceLinesCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceGeneratedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceGeneratedTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceGenerateLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				InvoiceGenerateLatency = v
			}
		})
		mustRegisterCollector(reg, SnapshotReadsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SnapshotReadsTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceExportsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceExportsTotal = v
			}
		})
	})
}

func initDomainCollectors(namespace string) {
	InvoiceSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_sessions_total",
		Help:      "Count of invoice session requests by outcome.",
	}, []string{"result"})
	InvoiceLinesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_lines_created_total",
		Help:      "Number of invoice line records created on first use.",
	})
	InvoiceGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_generated_total",
		Help:      "Count of invoice PDF generation outcomes.",
	}, []string{"result"})
	InvoiceGenerateLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "invoice_generate_duration_ms",
		Help:      "Invoice generation latency in milliseconds.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	})
	SnapshotReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_snapshot_reads_total",
		Help:      "Snapshot reads by answering store (primary, fallback, miss).",
	}, []string{"source"})
	InvoiceExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoice_exports_total",
		Help:      "Count of CSV export outcomes.",
	}, []string{"result"})
}

func init() {
	// Unregistered defaults so callers never hit nil collectors.
	initDomainCollectors("coreb")
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
