package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain-level Prometheus collectors.
type Metrics struct {
	WebhookEvents    *prometheus.CounterVec
	Payouts          *prometheus.CounterVec
	PayoutCents      *prometheus.CounterVec
	TrackingFailures prometheus.Counter
	CartsRecovered   prometheus.Counter
	RecoveryEmails   prometheus.Counter
	WaitlistSignups  prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagescope_webhook_events_total",
			Help: "Payment webhook events processed, by provider and event type.",
		}, []string{"provider", "event_type"}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagescope_referral_payouts_total",
			Help: "Referral payout attempts, by outcome method.",
		}, []string{"method"}),
		PayoutCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagescope_referral_payout_cents_total",
			Help: "Referral reward cents, split into paid and pending.",
		}, []string{"state"}),
		TrackingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagescope_referral_tracking_failures_total",
			Help: "Payouts whose bookkeeping update failed after money moved.",
		}),
		CartsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagescope_carts_recovered_total",
			Help: "Abandoned carts converted after a recovery email.",
		}),
		RecoveryEmails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagescope_cart_recovery_emails_total",
			Help: "Cart recovery emails sent.",
		}),
		WaitlistSignups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagescope_waitlist_signups_total",
			Help: "Waitlist signups accepted.",
		}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.Payouts,
		m.PayoutCents,
		m.TrackingFailures,
		m.CartsRecovered,
		m.RecoveryEmails,
		m.WaitlistSignups,
	)
	return m
}

func (m *Metrics) RecordWebhookEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(provider, eventType).Inc()
}

func (m *Metrics) RecordPayout(method string, paidCents, pendingCents int64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "none"
	}
	m.Payouts.WithLabelValues(method).Inc()
	if paidCents > 0 {
		m.PayoutCents.WithLabelValues("paid").Add(float64(paidCents))
	}
	if pendingCents > 0 {
		m.PayoutCents.WithLabelValues("pending").Add(float64(pendingCents))
	}
}

func (m *Metrics) RecordTrackingFailure() {
	if m == nil {
		return
	}
	m.TrackingFailures.Inc()
}

func (m *Metrics) RecordCartRecovered(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.CartsRecovered.Add(float64(count))
}

func (m *Metrics) RecordRecoveryEmail() {
	if m == nil {
		return
	}
	m.RecoveryEmails.Inc()
}

func (m *Metrics) RecordWaitlistSignup() {
	if m == nil {
		return
	}
	m.WaitlistSignups.Inc()
}

// HTTPMetrics instruments the gin engine.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg *prometheus.Registry) *HTTPMetrics {
	h := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagescope_http_requests_total",
			Help: "HTTP requests, by route, method and status.",
		}, []string{"route", "method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagescope_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(h.Requests, h.Duration)
	return h
}

func (h *HTTPMetrics) Observe(route, method string, status int, elapsed time.Duration) {
	if h == nil {
		return
	}
	h.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	h.Duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
