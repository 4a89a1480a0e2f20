package streamtoken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const generatePath = "/generate-token"

// ClientCtx mints edge-verifiable stream URLs from the signing worker.
// It never retries, callers have fallbacks.
type ClientCtx struct {
	logger zerolog.Logger
	config Config
	http   *http.Client
}

func New(config *Config) *ClientCtx {
	c := config.withDefaultValues()

	return &ClientCtx{
		logger: log.With().Str("module", "streamtoken").Logger(),
		config: c,
		http: &http.Client{
			Timeout: c.Timeout,
		},
	}
}

func (c *ClientCtx) Configured() bool {
	return c != nil && c.config.BaseUrl != "" && c.config.Secret != ""
}

// Mint asks for a token covering objectPath. Every failure is returned as
// *Failure, a nil client reports ReasonNotConfigured.
func (c *ClientCtx) Mint(ctx context.Context, objectPath string, backendHint string) (*Token, error) {
	if !c.Configured() {
		return nil, &Failure{Reason: ReasonNotConfigured}
	}

	body, err := json.Marshal(mintRequest{
		ContentID: objectPath,
		Storage:   backendHint,
	})
	if err != nil {
		return nil, &Failure{Reason: ReasonDecode, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseUrl+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Failure{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &Failure{Reason: ReasonStatus, Status: resp.StatusCode}
	}

	var data mintResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&data); err != nil {
		return nil, &Failure{Reason: ReasonDecode, Err: err}
	}

	if data.StreamUrl == "" {
		return nil, &Failure{Reason: ReasonDecode, Err: errors.New("response without streamUrl")}
	}

	c.logger.Debug().Str("path", objectPath).Time("expires", data.ExpiresAt.Time).Msg("stream token minted")

	return &Token{
		Token:     data.Token,
		StreamUrl: data.StreamUrl,
		ExpiresAt: data.ExpiresAt.Time,
	}, nil
}
