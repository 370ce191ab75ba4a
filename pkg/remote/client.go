package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/packfinderz-mobile/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-mobile/pkg/errors"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
)

var errBaseURLRequired = errors.New("remote base url is required")

// Client is the stateless REST wrapper over the storefront API. Failures are
// classified into the shared error taxonomy so callers can scope their
// fallback behavior: transport failures map to NETWORK_UNREACHABLE, anything
// the server answered maps to SERVER_REJECTED (or NOT_FOUND for 404s).
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the API wrapper.
func NewClient(cfg config.RemoteConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		authToken:  strings.TrimSpace(cfg.AuthToken),
		logger:     logg,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s: not found", method, path))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return pkgerrors.New(pkgerrors.CodeServerRejected,
			fmt.Sprintf("%s %s: %s", method, path, resp.Status)).
			WithDetails(map[string]any{
				"status": resp.StatusCode,
				"body":   strings.TrimSpace(string(snippet)),
			})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeServerRejected, err, "decode response body")
	}
	return nil
}

// classifyTransportError separates connectivity failures from everything
// else. The observer's last signal can race the actual call, so the read
// path keys its local fallback off this code.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "request canceled")
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return pkgerrors.Wrap(pkgerrors.CodeNetworkUnreachable, err, "remote unreachable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeNetworkUnreachable, err, "remote call failed")
}
