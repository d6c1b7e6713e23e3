package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultStoreTimeout      = 2 * time.Second
	DefaultActionTimeout     = 5 * time.Second
	DefaultLedgerTimeout     = 2 * time.Second
	DefaultClaimLease        = 2 * time.Minute
	DefaultClaimWait         = 3 * time.Second
	DefaultClaimPollInterval = 100 * time.Millisecond
	DefaultRuleCacheTTL      = 5 * time.Minute
)

const (
	CacheKeyPrefixRules = "rules:"
)

const (
	DefaultEventTopic        = "domain_events"
	DefaultRuleChangeTopic   = "rule_changes"
	DefaultNotificationTopic = "notifications"
	DefaultDLQTopic          = "domain_events_dlq"
)

const (
	DefaultMongoDBName       = "ruleflow"
	DefaultRecordsCollection = "records"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderRequestID = "X-Request-ID"
	HeaderSignature = "X-Signature-256"
	HeaderUserID    = "X-User-ID"
)

const (
	ServiceNameEngine = "engine-service"
	ServiceNameRules  = "rules-service"
)
