package api //nolint:revive // package name is intentional

const (
	// DefaultMaxBodySize is the default maximum request body size (1MB).
	// Prompts are short; anything larger is rejected before decoding.
	DefaultMaxBodySize = 1 << 20

	// MaxRecentLogsLimit caps the limit query parameter of the metrics endpoint.
	MaxRecentLogsLimit = 1000
)
