package redis

// Config holds Redis connection and channel settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// ChannelPrefix namespaces the pub/sub channels
	ChannelPrefix string

	// Pool settings
	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:           "redis://localhost:6379",
		ChannelPrefix: "gameroom",
		PoolSize:      10,
		MinIdleConns:  2,
	}
}
