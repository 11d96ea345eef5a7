// Package payclaw provides a small Go client for the payclawd REST API.
// Agent frameworks embed it to request single-use virtual cards and report
// purchase outcomes without speaking HTTP themselves.
package payclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client wraps the HTTP interactions with a payclawd instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient instantiates a client for the given payclawd base URL. When
// httpClient is nil the default client is used; payclawd imposes no deadline
// of its own, so callers that need one should pass a client with a Timeout.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("payclaw: base url is empty")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("payclaw: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: trimmed, httpClient: httpClient}, nil
}

// AuthorizationRequest is the payload for requesting a virtual card.
type AuthorizationRequest struct {
	Merchant        string  `json:"merchant"`
	EstimatedAmount float64 `json:"estimated_amount"`
	Description     string  `json:"description"`
}

// Card carries the issued card material.
type Card struct {
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
	HolderName string `json:"billing_name"`
}

// AuthorizationResult mirrors the daemon's authorization response. Status is
// one of approved, denied, pending_approval or error.
type AuthorizationResult struct {
	Status           string   `json:"status"`
	Code             string   `json:"code,omitempty"`
	IntentID         string   `json:"intent_id,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Message          string   `json:"message,omitempty"`
	Card             *Card    `json:"card,omitempty"`
	ApproveEndpoint  string   `json:"approve_endpoint,omitempty"`
	RemainingBalance *float64 `json:"remaining_balance,omitempty"`
	Instructions     string   `json:"instructions,omitempty"`
}

// SettlementRequest is the payload for reporting a purchase outcome.
type SettlementRequest struct {
	IntentID          string   `json:"intent_id"`
	Success           bool     `json:"success"`
	ActualAmount      *float64 `json:"actual_amount,omitempty"`
	MerchantName      string   `json:"merchant_name,omitempty"`
	Items             string   `json:"items,omitempty"`
	OrderConfirmation string   `json:"order_confirmation,omitempty"`
}

// SettlementResult mirrors the daemon's settlement response. IntentMatch is
// "match", "mismatch" or nil when the purchase failed or on error results.
type SettlementResult struct {
	Status               string   `json:"status"`
	Code                 string   `json:"code,omitempty"`
	Message              string   `json:"message,omitempty"`
	IntentMatch          *string  `json:"intent_match,omitempty"`
	IntentMismatchReason string   `json:"intent_mismatch_reason,omitempty"`
	TransactionID        string   `json:"transaction_id,omitempty"`
	RemainingBalance     *float64 `json:"remaining_balance,omitempty"`
	ActualAmount         *float64 `json:"actual_amount,omitempty"`
}

// BalanceResult mirrors the daemon's balance response.
type BalanceResult struct {
	Status           string   `json:"status"`
	Code             string   `json:"code,omitempty"`
	Message          string   `json:"message,omitempty"`
	AvailableBalance *float64 `json:"available_balance,omitempty"`
}

// IdentityResult mirrors the daemon's agent identity response.
type IdentityResult struct {
	Status            string `json:"status"`
	Code              string `json:"code,omitempty"`
	Message           string `json:"message,omitempty"`
	AgentDisclosure   string `json:"agent_disclosure,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	TrustURL          string `json:"trust_url,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
}

// APIError represents a transport-level or shell-level failure. Domain
// outcomes (denials, state errors) never surface here; they arrive as
// regular results with a status of denied or error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("payclaw api error (%d): %s", e.StatusCode, e.Message)
}

// RequestAuthorization asks payclawd for a single-use virtual card.
func (c *Client) RequestAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationResult, error) {
	var result AuthorizationResult
	if err := c.post(ctx, "/api/v1/authorizations", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SettleAuthorization reports the outcome of a purchase.
func (c *Client) SettleAuthorization(ctx context.Context, req SettlementRequest) (*SettlementResult, error) {
	var result SettlementResult
	if err := c.post(ctx, "/api/v1/settlements", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Balance fetches the currently available balance.
func (c *Client) Balance(ctx context.Context) (*BalanceResult, error) {
	var result BalanceResult
	if err := c.get(ctx, "/api/v1/balance", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Identity fetches the agent identity disclosure.
func (c *Client) Identity(ctx context.Context) (*IdentityResult, error) {
	var result IdentityResult
	if err := c.get(ctx, "/api/v1/identity", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr == nil && len(data) > 0 {
			var body struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(data, &body) == nil && body.Error != "" {
				apiErr.Message = body.Error
			} else {
				apiErr.Message = strings.TrimSpace(string(data))
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
