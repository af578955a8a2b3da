package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "water_billing_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"
	resultCreated  = "created"
	resultExisting = "existing"
)

var (
	registerOnce sync.Once

	submissionTotal   *prometheus.CounterVec
	submissionLatency *prometheus.HistogramVec
	submissionReject  *prometheus.CounterVec

	paymentGenerateTotal   *prometheus.CounterVec
	paymentGenerateLatency *prometheus.HistogramVec
	paymentTransitions     *prometheus.CounterVec

	tariffResolveFailures *prometheus.CounterVec
	clampedSlots          prometheus.Counter

	outboxPublishTotal *prometheus.CounterVec
	consumerLag        *prometheus.GaugeVec
	relayTotal         *prometheus.CounterVec
)

// Init registers engine metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		submissionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_submissions_total",
				Help: "Total reading submissions by result",
			},
			[]string{"result"},
		)
		submissionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reading_submission_latency_seconds",
				Help:    "Reading submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		submissionReject = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_rejections_total",
				Help: "Rejected reading submissions by reason",
			},
			[]string{"reason"},
		)

		paymentGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_generate_total",
				Help: "Payment generation calls by result",
			},
			[]string{"result"},
		)
		paymentGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_generate_latency_seconds",
				Help:    "Payment generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		paymentTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_transitions_total",
				Help: "Payment status transitions by target status",
			},
			[]string{"status"},
		)

		tariffResolveFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tariff_resolve_failures_total",
				Help: "Tariff resolution failures by reason",
			},
			[]string{"reason"},
		)
		clampedSlots = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "usage_clamped_slots_total",
				Help: "Slots whose reading was lower than the baseline and billed as zero",
			},
		)

		outboxPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Outbox dispatch attempts by result",
			},
			[]string{"result"},
		)
		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)
		relayTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "kafka_relay_total",
				Help: "Events relayed to Kafka by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			submissionTotal,
			submissionLatency,
			submissionReject,
			paymentGenerateTotal,
			paymentGenerateLatency,
			paymentTransitions,
			tariffResolveFailures,
			clampedSlots,
			outboxPublishTotal,
			consumerLag,
			relayTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSubmission records submission latency and result.
func ObserveSubmission(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if submissionTotal != nil {
		submissionTotal.WithLabelValues(result).Inc()
	}
	if submissionLatency != nil {
		submissionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSubmissionRejected increments the rejection counter.
func IncSubmissionRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if submissionReject != nil {
		submissionReject.WithLabelValues(reason).Inc()
	}
}

// ObservePaymentGenerate records generation latency and result.
func ObservePaymentGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if paymentGenerateTotal != nil {
		paymentGenerateTotal.WithLabelValues(result).Inc()
	}
	if paymentGenerateLatency != nil {
		paymentGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPaymentTransition counts MarkPaid/Cancel transitions.
func IncPaymentTransition(status string) {
	if status == "" {
		status = "unknown"
	}
	if paymentTransitions != nil {
		paymentTransitions.WithLabelValues(status).Inc()
	}
}

// IncTariffResolveFailure increments tariff failures.
func IncTariffResolveFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if tariffResolveFailures != nil {
		tariffResolveFailures.WithLabelValues(reason).Inc()
	}
}

// AddClampedSlots increments the clamped slot counter by count.
func AddClampedSlots(count int) {
	if count <= 0 {
		return
	}
	if clampedSlots != nil {
		clampedSlots.Add(float64(count))
	}
}

// IncOutboxDispatch counts outbox dispatch attempts.
func IncOutboxDispatch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if outboxPublishTotal != nil {
		outboxPublishTotal.WithLabelValues(result).Inc()
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// IncKafkaRelay counts relayed events.
func IncKafkaRelay(result string) {
	if result == "" {
		result = resultSuccess
	}
	if relayTotal != nil {
		relayTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected
	ResultCreated  = resultCreated
	ResultExisting = resultExisting
)
