package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"admin-console/core/jobs"
	"admin-console/core/reconcile"
)

// Metrics holds the console's own counters. It is created before the GraphQL
// client so the client can report into it.
type Metrics struct {
	loginOutcomes  *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
	linkMutations  *prometheus.CounterVec
	graphqlCalls   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_login_attempts_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_guard_decisions_total",
			Help: "Route guard decisions by reason.",
		}, []string{"reason"}),
		linkMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_link_mutations_total",
			Help: "Assignment link mutations by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		graphqlCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_graphql_request_duration_seconds",
			Help:    "GraphQL round trip latency by operation and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.loginOutcomes, m.guardDecisions, m.linkMutations, m.graphqlCalls}
}

func (m *Metrics) LoginOutcome(outcome string) {
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GuardDecision(reason string) {
	m.guardDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) LinkMutation(kind reconcile.Kind, op, outcome string) {
	m.linkMutations.WithLabelValues(string(kind), op, outcome).Inc()
}

// ObserveGraphQL matches gql.Observer.
func (m *Metrics) ObserveGraphQL(operation string, took time.Duration, outcome string) {
	m.graphqlCalls.WithLabelValues(operation, outcome).Observe(took.Seconds())
}

type janitorMetricsCollector struct {
	janitor *jobs.Janitor
	cached  func() int
	editors func() int

	ticksTotalDesc      *prometheus.Desc
	tickErrorsTotalDesc *prometheus.Desc
	lastTickDesc        *prometheus.Desc
	purgedTotalDesc     *prometheus.Desc
	cachedSessionsDesc  *prometheus.Desc
	openEditorsDesc     *prometheus.Desc
}

func newJanitorMetricsCollector(janitor *jobs.Janitor, cached, editors func() int) prometheus.Collector {
	return &janitorMetricsCollector{
		janitor: janitor,
		cached:  cached,
		editors: editors,
		ticksTotalDesc: prometheus.NewDesc(
			"console_worker_ticks_total",
			"Total number of janitor ticks.",
			[]string{"worker"},
			nil,
		),
		tickErrorsTotalDesc: prometheus.NewDesc(
			"console_worker_tick_errors_total",
			"Total number of janitor tick errors.",
			[]string{"worker"},
			nil,
		),
		lastTickDesc: prometheus.NewDesc(
			"console_worker_last_tick_timestamp",
			"Unix timestamp of the last janitor tick.",
			[]string{"worker"},
			nil,
		),
		purgedTotalDesc: prometheus.NewDesc(
			"console_sessions_purged_total",
			"Expired session records removed from storage.",
			nil,
			nil,
		),
		cachedSessionsDesc: prometheus.NewDesc(
			"console_sessions_cached",
			"Console sessions held in memory.",
			nil,
			nil,
		),
		openEditorsDesc: prometheus.NewDesc(
			"console_editors_open",
			"Assignment editors currently open.",
			nil,
			nil,
		),
	}
}

func (c *janitorMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticksTotalDesc
	ch <- c.tickErrorsTotalDesc
	ch <- c.lastTickDesc
	ch <- c.purgedTotalDesc
	ch <- c.cachedSessionsDesc
	ch <- c.openEditorsDesc
}

func (c *janitorMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	if c.janitor != nil {
		s := c.janitor.StatsSnapshot()
		ch <- prometheus.MustNewConstMetric(c.ticksTotalDesc, prometheus.CounterValue, float64(s.TicksTotal), "session_janitor")
		ch <- prometheus.MustNewConstMetric(c.tickErrorsTotalDesc, prometheus.CounterValue, float64(s.TickErrorsTotal), "session_janitor")
		if s.LastTickAtUTC != nil {
			ch <- prometheus.MustNewConstMetric(c.lastTickDesc, prometheus.GaugeValue, float64(s.LastTickAtUTC.UTC().Unix()), "session_janitor")
		}
		ch <- prometheus.MustNewConstMetric(c.purgedTotalDesc, prometheus.CounterValue, float64(s.PurgedTotal))
	}
	if c.cached != nil {
		ch <- prometheus.MustNewConstMetric(c.cachedSessionsDesc, prometheus.GaugeValue, float64(c.cached()))
	}
	if c.editors != nil {
		ch <- prometheus.MustNewConstMetric(c.openEditorsDesc, prometheus.GaugeValue, float64(c.editors()))
	}
}
