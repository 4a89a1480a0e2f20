package player

type Config struct {
	SessionPath string
	HlsJsUrl    string
}

func (c Config) withDefaultValues() Config {
	if c.SessionPath == "" {
		c.SessionPath = "/playback-session"
	}
	if c.HlsJsUrl == "" {
		c.HlsJsUrl = "https://cdn.jsdelivr.net/npm/hls.js@1"
	}
	return c
}
