// Package metrics defines and registers all custom Prometheus metrics for the
// HealthVault auth service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto; the HTTP layer exposes them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthvault"

// ── OTP metrics ───────────────────────────────────────────────────────────────

// OTPIssuedTotal counts passcodes written to the record store.
// Label:
//   - purpose: "registration", "login" or "reset"
var OTPIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_issued_total",
		Help:      "Total number of one-time passcodes issued.",
	},
	[]string{"purpose"},
)

// OTPVerificationsTotal counts verification attempts by outcome.
// Labels:
//   - purpose: the passcode purpose
//   - outcome: "verified", "not_found", "expired", "mismatch", "exhausted"
var OTPVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_verifications_total",
		Help:      "Total number of passcode verification attempts, by outcome.",
	},
	[]string{"purpose", "outcome"},
)

// OTPRateLimitedTotal counts issuance requests rejected by the limiter.
var OTPRateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_rate_limited_total",
		Help:      "Total number of passcode issuances rejected by the rate limiter.",
	},
	[]string{"purpose"},
)

// ── Delivery metrics ──────────────────────────────────────────────────────────

// DeliveriesTotal counts notification sends after retries.
// Labels:
//   - purpose: the passcode purpose
//   - result: "sent" or "failed"
var DeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total number of passcode deliveries, by final result.",
	},
	[]string{"purpose", "result"},
)

// DeliveryAttemptsTotal counts individual transport attempts, retries included.
var DeliveryAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_attempts_total",
		Help:      "Total number of transport attempts, including retries.",
	},
	[]string{"result"},
)

// DeliveryDuration measures end-to-end delivery time including retries.
var DeliveryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_duration_seconds",
		Help:      "Duration of passcode delivery including retries and backoff.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"result"},
)

// DeliveryQueueDepth tracks jobs waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var DeliveryQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "delivery_queue_depth",
		Help:      "Current number of deliveries pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsCreatedTotal counts sessions minted, by role and flow.
// Labels:
//   - role: "patient" or "doctor"
//   - flow: "registration" or "login"
var SessionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of sessions created.",
	},
	[]string{"role", "flow"},
)

// SessionValidationsTotal counts token validations.
// Label:
//   - result: "valid", or the rejection reason ("missing", "no_session",
//     "expired", "bad_token", "mismatch", "no_user", "error")
var SessionValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Total number of session token validations, by result.",
	},
	[]string{"result"},
)

// ── Housekeeping metrics ──────────────────────────────────────────────────────

// CleanupDeletedTotal counts rows removed by the expiry sweeper.
// Label:
//   - kind: "otp" or "session"
var CleanupDeletedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_deleted_total",
		Help:      "Total number of expired records removed by cleanup.",
	},
	[]string{"kind"},
)

// UsersRegisteredTotal counts accounts created, by role.
var UsersRegisteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_registered_total",
		Help:      "Total number of accounts created, by role.",
	},
	[]string{"role"},
)
