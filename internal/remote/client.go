package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	xerrors "PayClaw/internal/errors"
)

// Config 描述访问 PayClaw 远端策略与账本服务所需的信息。
type Config struct {
	BaseURL string
	APIKey  string
	// HTTPClient 可选。默认客户端不设置超时：核心不对网络调用强加截止时间，
	// 需要限时的调用方自行传入带 Timeout 的客户端或使用 context。
	HTTPClient *http.Client
}

// Client 通过认证的 JSON 通道调用远端服务的四个账本操作。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError 是远端调用失败的统一形态：网络不可达、401 与任何非 2xx
// 响应都归一化为一个携带可读信息和（若有）HTTP 状态码的错误。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("payclaw api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payclaw api error: %s", e.Message)
}

// NewClient 校验配置并创建远端客户端。缺失端点或凭证属于配置错误。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "PAYCLAW_API_URL is not set")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "PAYCLAW_API_URL is not a valid URL")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "PAYCLAW_API_KEY is not set")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

// IntentResponse 是远端创建 Intent 的应答。
type IntentResponse struct {
	ID                   string        `json:"id"`
	Status               string        `json:"status"`
	MerchantURL          string        `json:"merchant_url"`
	EstimatedAmountCents int64         `json:"estimated_amount_cents"`
	PolicyResult         *PolicyResult `json:"policy_result"`
	CreatedAt            string        `json:"created_at"`
}

// PolicyResult 是策略引擎附带的开放结构，核心只读取 reason 字段。
type PolicyResult struct {
	Reason string `json:"reason"`
}

// DenialReason 返回拒绝原因：优先取 policy_result.reason，缺失时回退到原始状态串。
// 回退规则是命名约定而非各调用点的临时判断。
func (r *IntentResponse) DenialReason() string {
	if r == nil {
		return ""
	}
	if r.PolicyResult != nil && strings.TrimSpace(r.PolicyResult.Reason) != "" {
		return r.PolicyResult.Reason
	}
	return r.Status
}

// CardResponse 是远端签发卡片的应答。
type CardResponse struct {
	CardNumber     string `json:"card_number"`
	ExpMonth       int    `json:"exp_month"`
	ExpYear        int    `json:"exp_year"`
	CVV            string `json:"cvv"`
	LastFour       string `json:"last_four"`
	CardholderName string `json:"cardholder_name"`
	IntentID       string `json:"intent_id"`
}

// TransactionResponse 是远端记录结算的应答。intent_match 为三态：
// true、false 或 null（无结论）。
type TransactionResponse struct {
	ID                   string  `json:"id"`
	IntentID             string  `json:"intent_id"`
	AmountCents          int64   `json:"amount_cents"`
	IntentMatch          *bool   `json:"intent_match"`
	IntentMismatchReason *string `json:"intent_mismatch_reason"`
	Status               string  `json:"status"`
}

// BalanceResponse 是远端余额查询的应答。available = balance − held。
type BalanceResponse struct {
	BalanceCents      int64 `json:"balance_cents"`
	HeldCents         int64 `json:"held_cents"`
	AvailableCents    int64 `json:"available_cents"`
	BalanceLimitCents int64 `json:"balance_limit_cents"`
}

// IdentityResponse 是 Badge 身份标识的应答。
type IdentityResponse struct {
	AgentDisclosure   string `json:"agent_disclosure"`
	VerificationToken string `json:"verification_token"`
	TrustURL          string `json:"trust_url"`
	Contact           string `json:"contact"`
	PrincipalVerified bool   `json:"principal_verified"`
	MFAConfirmed      bool   `json:"mfa_confirmed"`
}

// CreateIntent 提交授权提案，批准、拒绝或待批准由远端策略引擎决定。
func (c *Client) CreateIntent(ctx context.Context, merchantURL string, estimatedAmountCents int64, description string) (*IntentResponse, error) {
	payload := map[string]any{
		"merchant_url":           merchantURL,
		"estimated_amount_cents": estimatedAmountCents,
		"description":            description,
	}
	var resp IntentResponse
	if err := c.post(ctx, "/api/intents", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCard 获取已批准 Intent 的卡片信息。
func (c *Client) GetCard(ctx context.Context, intentID string) (*CardResponse, error) {
	endpoint := "/api/cards?intent_id=" + url.QueryEscape(intentID)
	var resp CardResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportTransaction 上报结算结果。intent_match 由远端计算，客户端不复算。
func (c *Client) ReportTransaction(ctx context.Context, intentID, merchantName, merchantURL string, amountCents int64) (*TransactionResponse, error) {
	payload := map[string]any{
		"intent_id":    intentID,
		"amount_cents": amountCents,
	}
	if merchantName != "" {
		payload["merchant_name"] = merchantName
	}
	if merchantURL != "" {
		payload["merchant_url"] = merchantURL
	}
	var resp TransactionResponse
	if err := c.post(ctx, "/api/transactions", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBalance 查询余额。每次操作都重新查询，不缓存：余额可能被其他客户端改变。
func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/api/wallet/balance", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAgentIdentity 获取 Badge 身份标识。
func (c *Client) GetAgentIdentity(ctx context.Context) (*IdentityResponse, error) {
	var resp IdentityResponse
	if err := c.get(ctx, "/api/identity", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("could not reach PayClaw API at %s, check PAYCLAW_API_URL", c.baseURL)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &APIError{StatusCode: resp.StatusCode, Message: "authentication failed, check your PAYCLAW_API_KEY"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := ""
		if readErr == nil && len(data) > 0 {
			var body struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(data, &body); err == nil {
				if body.Error != "" {
					message = body.Error
				} else if body.Message != "" {
					message = body.Message
				}
			}
			if message == "" {
				message = strings.TrimSpace(string(data))
			}
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
