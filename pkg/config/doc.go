// Package config loads application configuration from an optional
// YAML file and GATHERLY_* environment variables. Environment values
// override file values.
//
// Server settings:
//
//	GATHERLY_HOST="0.0.0.0"
//	GATHERLY_PORT="8080"
//	GATHERLY_HEALTH_PORT="9090"
//	GATHERLY_READ_TIMEOUT="15s"
//	GATHERLY_MAX_BODY_BYTES="67108864"
//
// Storage settings:
//
//	GATHERLY_POSTGRES_URL="postgres://localhost/gatherly"
//	GATHERLY_POSTGRES_MAX_CONNS="20"
//	GATHERLY_S3_BUCKET="gatherly-media"
//	GATHERLY_S3_REGION="us-east-1"
//	GATHERLY_REDIS_URL="redis://localhost:6379"
//
// Observability settings:
//
//	GATHERLY_LOG_LEVEL="info"  # debug, info, warn, error
//	GATHERLY_METRICS_ENABLED="true"
//	GATHERLY_OTEL_ENABLED="false"
//	GATHERLY_OTEL_ENDPOINT="otel-collector:4317"
//
// A full config file can be pointed at with GATHERLY_CONFIG_FILE.
package config
