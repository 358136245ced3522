// Package metrics defines the Prometheus metrics of the SIGEM service.
// Everything registers with the default registry through promauto.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const namespace = "sigem"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - outcome: "authenticated", "pending", "invalid_credentials", "superseded", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SignupsTotal counts completed signups.
// Label:
//   - profile: "inserted" or "failed" (identity created without a profile row)
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of signups, by profile insert outcome.",
	},
	[]string{"profile"},
)

// LogoutsTotal counts logouts.
// Label:
//   - backend: "ok" or "failed" (local session cleared anyway)
var LogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of logouts, by backend sign-out outcome.",
	},
	[]string{"backend"},
)

// GuardDecisionsTotal counts route guard decisions.
// Labels:
//   - action: "admit" or "redirect"
//   - state: auth state kind of the caller
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions.",
	},
	[]string{"action", "state"},
)

// ── Resolution metrics ────────────────────────────────────────────────────────

// ProfileResolutionsTotal counts profile resolutions.
// Label:
//   - outcome: "ok", "not_found", "unavailable"
var ProfileResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_resolutions_total",
		Help:      "Total number of profile resolutions, by outcome.",
	},
	[]string{"outcome"},
)

// ProfileResolutionDuration measures a single profile lookup.
var ProfileResolutionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "profile_resolution_duration_seconds",
		Help:      "Duration of profile resolutions.",
		Buckets:   prometheus.DefBuckets,
	},
)

// StaleResolutionsTotal counts resolutions discarded because a newer
// identity change superseded them.
var StaleResolutionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_resolutions_total",
		Help:      "Total number of profile resolutions discarded as stale.",
	},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// EventsQueueDepth tracks the backlog of each session event worker.
// Label:
//   - worker_id: numeric worker index
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_events_queue_depth",
		Help:      "Current number of session events pending in each dispatcher worker.",
	},
	[]string{"worker_id"},
)

// ObserveQueueDepth is a queue.DepthFunc.
func ObserveQueueDepth(worker string, depth int) {
	EventsQueueDepth.WithLabelValues(worker).Set(float64(depth))
}

// RegisterActiveSessions exposes count as the live client session gauge.
// Call it once.
func RegisterActiveSessions(count func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_client_sessions",
			Help:      "Number of live client sessions held by this process.",
		},
		func() float64 { return float64(count()) },
	)
}

// ── Instrumentation ───────────────────────────────────────────────────────────

type instrumentedResolver struct {
	next ports.ProfileResolver
}

// InstrumentResolver records outcome and latency of every resolution.
func InstrumentResolver(next ports.ProfileResolver) ports.ProfileResolver {
	return instrumentedResolver{next: next}
}

func (r instrumentedResolver) Resolve(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	start := time.Now()
	profile, err := r.next.Resolve(ctx, identity)
	ProfileResolutionDuration.Observe(time.Since(start).Seconds())
	ProfileResolutionsTotal.WithLabelValues(resolutionOutcome(err)).Inc()
	return profile, err
}

func resolutionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrProfileNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}
