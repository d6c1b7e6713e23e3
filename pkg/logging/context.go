package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey      = "trace_id"
	RequestIDKey    = "request_id"
	TenantIDKey     = "tenant_id"
	OccurrenceIDKey = "occurrence_id"
	ServiceNameKey  = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestIDKey), requestID)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey(TenantIDKey), tenantID)
}

func WithOccurrenceID(ctx context.Context, occurrenceID string) context.Context {
	return context.WithValue(ctx, contextKey(OccurrenceIDKey), occurrenceID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func value(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return value(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return value(ctx, RequestIDKey)
}

func GetTenantID(ctx context.Context) string {
	return value(ctx, TenantIDKey)
}

func GetOccurrenceID(ctx context.Context) string {
	return value(ctx, OccurrenceIDKey)
}

func GetServiceName(ctx context.Context) string {
	return value(ctx, ServiceNameKey)
}

// GetLogFields returns the correlation fields stored in ctx as zap key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []string{TraceIDKey, RequestIDKey, TenantIDKey, OccurrenceIDKey, ServiceNameKey} {
		if v := value(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
