package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admission control metrics
	RateLimitAllowed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_ratelimit_allowed_total",
		Help: "Total number of requests admitted by a rate limit policy",
	}, []string{"policy"})
	RateLimitDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_ratelimit_denied_total",
		Help: "Total number of requests rejected by a rate limit policy",
	}, []string{"policy"})
	RateLimitEntriesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "site_ratelimit_entries_swept_total",
		Help: "Total number of expired rate limit entries removed by the sweeper",
	})

	// Authentication metrics
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_login_attempts_total",
		Help: "Total number of administrator login attempts grouped by outcome",
	}, []string{"outcome"})
	AuthGateRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_auth_gate_rejected_total",
		Help: "Total number of requests to protected paths without a valid session",
	}, []string{"kind"})

	// Form intake metrics
	FormSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_form_submissions_total",
		Help: "Total number of public form submissions grouped by form and outcome",
	}, []string{"form", "outcome"})

	// Newsletter metrics
	NewsletterRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_newsletter_runs_total",
		Help: "Total number of newsletter campaign runs grouped by outcome",
	}, []string{"outcome"})
	NewsletterRecipients = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_newsletter_recipients_total",
		Help: "Total number of newsletter deliveries grouped by result",
	}, []string{"result"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_queued_total",
		Help: "Total number of notification mails accepted by the queue",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_queue_dropped_total",
		Help: "Total number of notification mails dropped because the queue was full or stopping",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_retry_scheduled_total",
		Help: "Total number of notification mail retries scheduled",
	}, []string{"host"})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_mail_failed_total",
		Help: "Total number of notification mails that failed after all retries",
	}, []string{"host"})

	// Audit metrics
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_audit_events_written_total",
		Help: "Total number of audit events written grouped by sink",
	}, []string{"sink"})
	AuditEventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_audit_events_failed_total",
		Help: "Total number of audit events that could not be written grouped by sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(RateLimitAllowed)
	prometheus.MustRegister(RateLimitDenied)
	prometheus.MustRegister(RateLimitEntriesSwept)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(AuthGateRejected)
	prometheus.MustRegister(FormSubmissions)
	prometheus.MustRegister(NewsletterRuns)
	prometheus.MustRegister(NewsletterRecipients)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailQueueDropped)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailFailed)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditEventsFailed)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
