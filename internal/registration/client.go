package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// Outbound failure classification for the handshake.
var (
	// ErrUpstreamUnavailable means the peer could not be reached or answered
	// outside 2xx during version discovery.
	ErrUpstreamUnavailable = errors.New("peer platform unavailable")

	// ErrUnsupportedVersion means the peer does not offer our OCPI version.
	ErrUnsupportedVersion = errors.New("no mutually supported version")
)

// maxResponseBytes bounds peer response bodies.
const maxResponseBytes = 1 << 20

// VersionsClient performs outbound version discovery against a peer platform.
// Calls are bounded by the client timeout and run through a circuit breaker so
// a flapping peer fails fast.
type VersionsClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewVersionsClient creates a VersionsClient with the given request timeout.
func NewVersionsClient(timeout time.Duration, logger *zap.Logger) *VersionsClient {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "peer-versions",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("versions client circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &VersionsClient{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// GetVersions fetches the peer's version list, authenticating with token.
func (c *VersionsClient) GetVersions(ctx context.Context, versionsURL, token string) ([]ocpi.Version, error) {
	var versions []ocpi.Version
	if err := c.getJSON(ctx, versionsURL, token, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersionDetails fetches the endpoint list of one peer version.
func (c *VersionsClient) GetVersionDetails(ctx context.Context, detailsURL, token string) (*ocpi.VersionDetails, error) {
	var details ocpi.VersionDetails
	if err := c.getJSON(ctx, detailsURL, token, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// getJSON fetches url and decodes the envelope's data field into out. Every
// failure mode (transport, timeout, non-2xx, undecodable body, open breaker)
// maps to ErrUpstreamUnavailable: the handshake only cares that discovery did
// not produce an answer.
func (c *VersionsClient) getJSON(ctx context.Context, url, token string, out interface{}) error {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Token "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	if err != nil {
		c.logger.Warn("version discovery failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var envelope struct {
		Data       json.RawMessage `json:"data"`
		StatusCode int             `json:"status_code"`
	}
	raw := body.([]byte)
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: undecodable response: %v", ErrUpstreamUnavailable, err)
	}
	if envelope.StatusCode != 0 && envelope.StatusCode != ocpi.StatusSuccess {
		return fmt.Errorf("%w: peer status code %d", ErrUpstreamUnavailable, envelope.StatusCode)
	}

	// Bare payloads (no envelope) are tolerated for interoperability.
	payload := envelope.Data
	if payload == nil {
		payload = raw
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: undecodable payload: %v", ErrUpstreamUnavailable, err)
	}

	return nil
}
