package remote

// Config holds configuration for the remote table API.
type Config struct {
	// Endpoint is the base URL of the remote table service.
	Endpoint string `mapstructure:"endpoint" default:"http://localhost:8090"`
	// Token is the bearer token used to authenticate API calls.
	Token string `mapstructure:"token" default:""`
	// KeyField is the remote field holding the record's natural key.
	KeyField string `mapstructure:"key_field" default:"Key"`
	// MaxBatchSize is the maximum number of records per batch call.
	MaxBatchSize int `mapstructure:"max_batch_size" default:"10"`
	// Workers is the number of concurrent batch dispatches.
	Workers int `mapstructure:"workers" default:"4"`
	// RatePerSecond caps outgoing API calls per second.
	RatePerSecond float64 `mapstructure:"rate_per_second" default:"5"`
	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// CatalogTTLSeconds is the time-to-live for the cached table catalog.
	CatalogTTLSeconds int `mapstructure:"catalog_ttl_seconds" default:"300"`
	// TimeoutSeconds is the per-request HTTP timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
