package ledger

import (
	"context"
	"encoding/json"

	"PayClaw/internal/intent"
)

// Verdict 表示结算时对账的结论。
type Verdict string

const (
	// VerdictMatch 表示实际金额落在预估金额的容差范围内。
	VerdictMatch Verdict = "match"
	// VerdictMismatch 表示实际金额明显偏离预估金额。
	VerdictMismatch Verdict = "mismatch"
	// VerdictNone 表示本次结算没有对账结论（购买失败时）。
	// 在 JSON 中序列化为显式的 null。
	VerdictNone Verdict = "none"
)

// MarshalJSON 把无结论的 Verdict 输出为 null，与远端服务的 intent_match 字段保持一致。
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v == VerdictNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

// AuthorizationRequest 描述一次授权提案。字段已经过外层校验。
type AuthorizationRequest struct {
	Merchant        string
	MerchantURL     string
	EstimatedAmount float64
	Description     string
}

// Authorization 是账本对授权提案做出的决定。
type Authorization struct {
	IntentID string
	Status   intent.Status
	// Reason 在拒绝时携带机器可读的拒绝原因。
	Reason string
	// AvailableBalance 是决定时刻的可用余额，尚未计入本次预留。
	AvailableBalance float64
}

// SettlementRequest 描述一次购买结果上报。
type SettlementRequest struct {
	IntentID string
	Success  bool
	// ActualAmount 为空时由持有 Intent 记录的一方按预估金额补齐。
	ActualAmount *float64
	MerchantName string
	MerchantURL  string
}

// SettlementRecord 是账本记录结算后的结果。
type SettlementRecord struct {
	TransactionID    string
	Verdict          Verdict
	MismatchReason   string
	EstimatedAmount  float64
	ChargedAmount    float64
	RemainingBalance float64
}

// Ledger 抽象余额与 Intent 记录的归属方，本地账本与远端服务各实现一份。
// 余额充足性检查是授权决定的第一条规则，因此并入 CreateAuthorization，
// 单独暴露只会重新引入先检查后执行的竞态。
type Ledger interface {
	// QueryBalance 返回当前可用余额。纯读取，任何实现都不允许缓存。
	QueryBalance(ctx context.Context) (float64, error)
	// CreateAuthorization 记录 Intent 并做出批准、拒绝或待批准的决定。
	// Intent 总是先落账再决定，被拒绝的请求同样留有审计记录。
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
	// IssueCard 为已批准的 Intent 返回卡片信息。
	IssueCard(ctx context.Context, intentID string) (*intent.Card, error)
	// RecordSettlement 对账并记录结算结果。每个 Intent 至多结算一次。
	RecordSettlement(ctx context.Context, req SettlementRequest) (*SettlementRecord, error)
}

// AgentIdentity 是 Badge 身份标识：智能体在与商户交互时出示的披露信息。
type AgentIdentity struct {
	AgentDisclosure   string `json:"agent_disclosure"`
	VerificationToken string `json:"verification_token"`
	TrustURL          string `json:"trust_url"`
	Contact           string `json:"contact"`
	PrincipalVerified bool   `json:"principal_verified"`
	MFAConfirmed      bool   `json:"mfa_confirmed"`
}

// 拒绝原因的机器可读取值。远端策略引擎可能返回这里未列出的原因，原样透传。
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonAmountLimitExceeded = "amount_limit_exceeded"
)
