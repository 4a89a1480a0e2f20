package streamtoken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BaseUrl string
	Secret  string
	Timeout time.Duration // single attempt, whole request
}

func (c Config) withDefaultValues() Config {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	c.BaseUrl = strings.TrimRight(c.BaseUrl, "/")
	return c
}

type Token struct {
	Token     string
	StreamUrl string
	ExpiresAt time.Time
}

type Reason string

const (
	ReasonNotConfigured Reason = "not_configured"
	ReasonTransport     Reason = "transport"
	ReasonStatus        Reason = "status"
	ReasonDecode        Reason = "decode"
)

// Failure is the only error Mint returns.
type Failure struct {
	Reason Reason
	Status int
	Err    error
}

func (f *Failure) Error() string {
	switch {
	case f.Status != 0:
		return fmt.Sprintf("stream token %s: http %d", f.Reason, f.Status)
	case f.Err != nil:
		return fmt.Sprintf("stream token %s: %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("stream token %s", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type mintRequest struct {
	ContentID string `json:"contentId"`
	Storage   string `json:"storage"`
}

type mintResponse struct {
	Token     string    `json:"token"`
	StreamUrl string    `json:"streamUrl"`
	ExpiresAt timestamp `json:"expiresAt"`
}

// timestamp accepts unix seconds, unix milliseconds or RFC 3339.
type timestamp struct {
	time.Time
}

// values above this are treated as milliseconds
const millisThreshold = 1e11

func (t *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromUnix(n)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	t.Time = fromUnix(n)
	return nil
}

func fromUnix(n float64) time.Time {
	if n > millisThreshold {
		return time.UnixMilli(int64(n))
	}
	return time.Unix(int64(n), 0)
}
