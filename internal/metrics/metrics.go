package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application-level instruments. All label sets are
// low-cardinality: routes are gin templates, never raw paths.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	workEventsLogged *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	remindersCreated prometheus.Counter
	invoicesEmailed  prometheus.Counter
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "HTTP requests by route, method, and status code.",
	}, []string{"route", "method", "status_code"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route"})
	workEventsLogged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_work_events_logged_total",
		Help: "Work events logged by type.",
	}, []string{"type"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_webhook_events_total",
		Help: "Billing webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	remindersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_reminders_created_total",
		Help: "Follow-up reminders created by the sweeper.",
	})
	invoicesEmailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_invoices_emailed_total",
		Help: "Invoices emailed to clients.",
	})

	registerer.MustRegister(
		httpRequests,
		httpDuration,
		workEventsLogged,
		webhookEvents,
		remindersCreated,
		invoicesEmailed,
	)

	return &Metrics{
		httpRequests:     httpRequests,
		httpDuration:     httpDuration,
		workEventsLogged: workEventsLogged,
		webhookEvents:    webhookEvents,
		remindersCreated: remindersCreated,
		invoicesEmailed:  invoicesEmailed,
	}
}

func (m *Metrics) RecordWorkEvent(eventType string) {
	if m == nil {
		return
	}
	m.workEventsLogged.WithLabelValues(strings.TrimSpace(eventType)).Inc()
}

func (m *Metrics) RecordWebhookEvent(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(strings.TrimSpace(provider), strings.TrimSpace(outcome)).Inc()
}

func (m *Metrics) RecordRemindersCreated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.remindersCreated.Add(float64(count))
}

func (m *Metrics) RecordInvoiceEmailed() {
	if m == nil {
		return
	}
	m.invoicesEmailed.Inc()
}

// GinMiddleware instruments every request. Unmatched routes are collapsed
// into a single label value to bound cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
