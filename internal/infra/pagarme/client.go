package pagarme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"poll-app/internal/infra/metrics"
)

const defaultBaseURL = "https://api.pagar.me/1"

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	PostbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// Client talks to the Pagar.me transactions API.
type Client struct {
	apiKey      string
	baseURL     string
	postbackURL string
	httpClient  *http.Client
	metrics     *metrics.Metrics
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PAGARME_API_KEY not set")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		postbackURL: cfg.PostbackURL,
		httpClient:  hc,
		metrics:     cfg.Metrics,
	}, nil
}

type Document struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Customer struct {
	ExternalID   string     `json:"external_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Type         string     `json:"type"`
	Country      string     `json:"country"`
	Documents    []Document `json:"documents,omitempty"`
	PhoneNumbers []string   `json:"phone_numbers,omitempty"`
}

type CreateTransactionRequest struct {
	Amount        int64                  `json:"amount"`
	PaymentMethod string                 `json:"payment_method"`
	CardHash      string                 `json:"card_hash,omitempty"`
	CardID        string                 `json:"card_id,omitempty"`
	Installments  int                    `json:"installments,omitempty"`
	PostbackURL   string                 `json:"postback_url,omitempty"`
	Customer      *Customer              `json:"customer,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type apiRequest struct {
	APIKey string `json:"api_key"`
	CreateTransactionRequest
}

// APIErrorDetail is one entry of the errors array Pagar.me returns.
type APIErrorDetail struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name"`
	Message       string `json:"message"`
}

type APIError struct {
	StatusCode int
	Errors     []APIErrorDetail
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.Message != "" {
			msgs = append(msgs, d.Message)
		}
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("pagarme: HTTP %d", e.StatusCode)
	}
	return "pagarme: " + strings.Join(msgs, "; ")
}

// IsClientError reports whether the API rejected the request itself
// (bad card data, bad key), as opposed to failing.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// CreateTransaction charges the customer. It returns the decoded
// transaction and the raw response body.
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, json.RawMessage, error) {
	if req.PostbackURL == "" {
		req.PostbackURL = c.postbackURL
	}

	tx, raw, err := c.createTransaction(ctx, req)
	c.metrics.ObserveGatewayCall("pagarme", "create_transaction", err)
	return tx, raw, err
}

func (c *Client) createTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, json.RawMessage, error) {
	body, err := json.Marshal(apiRequest{APIKey: c.apiKey, CreateTransactionRequest: req})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("pagarme request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Errors []APIErrorDetail `json:"errors"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Errors = payload.Errors
		}
		return nil, nil, apiErr
	}

	var tx Transaction
	if err := json.Unmarshal(respBody, &tx); err != nil {
		return nil, nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &tx, json.RawMessage(respBody), nil
}
