package playback

import "time"

type Config struct {
	RateLimit  int // requests per window and client, 0 disables
	RateWindow time.Duration
}

func (c Config) withDefaultValues() Config {
	if c.RateWindow == 0 {
		c.RateWindow = time.Minute
	}
	return c
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
