// Package integrations holds the outbound HTTP clients for the CRM, the
// project-management tool and the accounting system.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// maxResponseBytes caps how much of a response body is kept
const maxResponseBytes = 64 << 10

// Response is the raw outcome of a successful call
type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned when the remote side answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message + " " + payload.Error); msg != "" {
			return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, msg)
		}
	}
	return fmt.Sprintf("remote returned status %d", e.StatusCode)
}

// Client posts JSON documents to one external system
type Client struct {
	httpClient *http.Client
	target     string
	baseURL    string
	apiKey     string
}

// NewClient creates a client; an empty baseURL leaves it unconfigured
func NewClient(target, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		target:     target,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Target names the external system
func (c *Client) Target() string {
	return c.target
}

// Configured reports whether calls will actually be sent
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Post sends payload as JSON to path
func (c *Client) Post(ctx context.Context, path string, payload any) (*Response, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%s integration is not configured", c.target)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", c.target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+strings.TrimLeft(path, "/"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", c.target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

// Clients groups the outbound integrations
type Clients struct {
	CRM        *Client
	PM         *Client
	Accounting *Client
}

// NewClients builds the integration clients from configuration
func NewClients(cfg *config.Config) *Clients {
	return &Clients{
		CRM:        NewClient(models.IntegrationTargetCRM, cfg.CRMBaseURL, cfg.IntegrationAPIKey, cfg.IntegrationTimeout),
		PM:         NewClient(models.IntegrationTargetPM, cfg.PMBaseURL, cfg.IntegrationAPIKey, cfg.IntegrationTimeout),
		Accounting: NewClient(models.IntegrationTargetAccounting, cfg.AccountingBaseURL, cfg.IntegrationAPIKey, cfg.IntegrationTimeout),
	}
}
