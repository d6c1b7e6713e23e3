package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_evaluations_total",
			Help: "Total number of rule engine invocations by outcome (count)",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_evaluation_duration_ms",
			Help:    "Duration of rule engine invocations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"outcome"},
	)

	RulesMatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_rules_matched_total",
			Help: "Total number of rules whose conditions matched (count)",
		},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_actions_total",
			Help: "Total number of dispatched actions by type, status and error code (count)",
		},
		[]string{"action_type", "status", "error"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_action_duration_ms",
			Help:    "Duration of action collaborator calls in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"action_type"},
	)

	ReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_replays_total",
			Help: "Total number of duplicate occurrences answered from the ledger (count)",
		},
	)

	LedgerClaimConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_claim_conflicts_total",
			Help: "Total number of ledger claims that hit an existing entry (count)",
		},
		[]string{"resolution"},
	)

	RuleCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_cache_requests_total",
			Help: "Total number of rule cache lookups by backend and result (count)",
		},
		[]string{"backend", "result"},
	)

	RuleCacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_cache_invalidations_total",
			Help: "Total number of tenant rule cache invalidations (count)",
		},
		[]string{"backend", "source"},
	)

	RuleStoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_store_errors_total",
			Help: "Total number of failed rule store lookups (count)",
		},
	)

	RuleMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_mutations_total",
			Help: "Total number of rule administration changes (count)",
		},
		[]string{"action"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(EvaluationsTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(RulesMatchedTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(ReplaysTotal)
	prometheus.MustRegister(LedgerClaimConflictsTotal)
	prometheus.MustRegister(RuleCacheRequestsTotal)
	prometheus.MustRegister(RuleCacheInvalidationsTotal)
	prometheus.MustRegister(RuleStoreErrorsTotal)
}

func RegisterRulesMetrics() {
	prometheus.MustRegister(RuleMutationsTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterDatabaseMetrics() {
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveEvaluation(outcome string, duration time.Duration) {
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	EvaluationDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func AddRulesMatched(count int) {
	RulesMatchedTotal.Add(float64(count))
}

func IncAction(actionType, status, errorCode string) {
	ActionsTotal.WithLabelValues(actionType, status, errorCode).Inc()
}

func ObserveActionDuration(actionType string, duration time.Duration) {
	ActionDuration.WithLabelValues(actionType).Observe(float64(duration.Milliseconds()))
}

func IncReplay() {
	ReplaysTotal.Inc()
}

func IncLedgerClaimConflict(resolution string) {
	LedgerClaimConflictsTotal.WithLabelValues(resolution).Inc()
}

func IncRuleCacheRequest(backend, result string) {
	RuleCacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

func IncRuleCacheInvalidation(backend, source string) {
	RuleCacheInvalidationsTotal.WithLabelValues(backend, source).Inc()
}

func IncRuleStoreError() {
	RuleStoreErrorsTotal.Inc()
}

func IncRuleMutation(action string) {
	RuleMutationsTotal.WithLabelValues(action).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
