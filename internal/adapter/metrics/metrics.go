package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the orchestrator and worker.
type Metrics struct {
	JobsTotal          *prometheus.CounterVec
	JobRetriesTotal    *prometheus.CounterVec
	DeadLetterTotal    *prometheus.CounterVec
	DNSChecksTotal     *prometheus.CounterVec
	DomainsVerified    prometheus.Counter
	BillingSyncTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	APIKeyCacheHits    prometheus.Counter
	APIKeyCacheMisses  prometheus.Counter
}

// New initializes metrics on the default Prometheus registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith initializes metrics on a specific registerer. Tests use a fresh
// registry per instance so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total number of processed jobs by type and outcome.",
		}, []string{"type", "outcome"}),
		JobRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "jobs",
			Name:      "retries_total",
			Help:      "Total number of job retries scheduled after transient failures.",
		}, []string{"type"}),
		DeadLetterTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "jobs",
			Name:      "dead_letter_total",
			Help:      "Total number of jobs parked on the dead-letter stream.",
		}, []string{"type"}),
		DNSChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "dns",
			Name:      "checks_total",
			Help:      "Total number of per-record DNS checks by result.",
		}, []string{"result"}),
		DomainsVerified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "dns",
			Name:      "domains_verified_total",
			Help:      "Total number of domain verifications completed successfully.",
		}),
		BillingSyncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "billing",
			Name:      "sync_total",
			Help:      "Total number of subscription quantity pushes by dimension and status.",
		}, []string{"dimension", "status"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "messaging",
			Name:      "notifications_total",
			Help:      "Total number of notification sends by status.",
		}, []string{"status"}),
		APIKeyCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tenant_provisioner",
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}
