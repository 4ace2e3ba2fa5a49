package clients

import "time"

const (
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	USER_AGENT      = "trendlens-client/1.0 (+https://github.com/spacesedan/trendlens)"
)
