package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campuscredits_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerPostingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_ledger_postings_total",
			Help: "Total number of ledger transactions written",
		},
		[]string{"kind"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_submissions_total",
			Help: "Total number of entities submitted for review",
		},
		[]string{"kind"},
	)

	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_reviews_total",
			Help: "Total number of review decisions",
		},
		[]string{"kind", "decision"},
	)

	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_event_registrations_total",
			Help: "Event registration attempts by result",
		},
		[]string{"result"},
	)

	AttendanceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campuscredits_attendance_marked_total",
			Help: "Total number of registrations marked attended",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscredits_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campuscredits_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordLedgerPosting(kind string) {
	LedgerPostingsTotal.WithLabelValues(kind).Inc()
}

func RecordSubmission(kind string) {
	SubmissionsTotal.WithLabelValues(kind).Inc()
}

func RecordReview(kind, decision string) {
	ReviewsTotal.WithLabelValues(kind, decision).Inc()
}

// RecordRegistration takes "ok" or the error kind that rejected the attempt.
func RecordRegistration(result string) {
	RegistrationsTotal.WithLabelValues(result).Inc()
}

func RecordAttendance() {
	AttendanceTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}
