package spend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	xerrors "PayClaw/internal/errors"
	"PayClaw/internal/intent"
	"PayClaw/internal/ledger"
	"PayClaw/pkg/logger"
)

// productName 出现在每个对外结果中，标识结果来源。
const productName = "PayClaw"

// instructionsAfterApproval 指导智能体在交易后回报结果。
const instructionsAfterApproval = "Use this card to complete the purchase. " +
	"After the transaction, report the outcome with the intent_id and the actual amount charged."

// Service 是 Intent 生命周期管理器：同一套决策语义，由注入的账本
// 决定状态归属于本地还是远端。所有结果都以带标签的结构体返回，
// 任何失败（配置、网络、状态冲突）都不会以 error 形式越过此边界。
type Service struct {
	ledger   ledger.Ledger
	identity IdentitySource
}

// Option 定义可选的 Service 配置。
type Option func(*Service)

// WithIdentitySource 配置 Badge 身份来源。未配置时使用内置的沙箱身份。
func WithIdentitySource(src IdentitySource) Option {
	return func(s *Service) {
		if src != nil {
			s.identity = src
		}
	}
}

// New 创建生命周期管理器。
func New(l ledger.Ledger, opts ...Option) *Service {
	s := &Service{ledger: l, identity: sandboxIdentity{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AuthorizationInput 是上层传入的已校验授权请求字段。
type AuthorizationInput struct {
	Merchant        string  `json:"merchant"`
	EstimatedAmount float64 `json:"estimated_amount"`
	Description     string  `json:"description"`
}

// SettlementInput 是上层传入的已校验结算上报字段。
type SettlementInput struct {
	IntentID          string   `json:"intent_id"`
	Success           bool     `json:"success"`
	ActualAmount      *float64 `json:"actual_amount,omitempty"`
	MerchantName      string   `json:"merchant_name,omitempty"`
	Items             string   `json:"items,omitempty"`
	OrderConfirmation string   `json:"order_confirmation,omitempty"`
}

// AuthorizationResult 是授权请求的对外结果。
type AuthorizationResult struct {
	ProductName      string       `json:"product_name"`
	Status           string       `json:"status"`
	Code             string       `json:"code,omitempty"`
	IntentID         string       `json:"intent_id,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	Message          string       `json:"message,omitempty"`
	Card             *intent.Card `json:"card,omitempty"`
	MerchantURL      string       `json:"merchant_url,omitempty"`
	EstimatedAmount  *float64     `json:"estimated_amount,omitempty"`
	ApproveEndpoint  string       `json:"approve_endpoint,omitempty"`
	RemainingBalance *float64     `json:"remaining_balance,omitempty"`
	Instructions     string       `json:"instructions,omitempty"`
}

// SettlementResult 是结算上报的对外结果。IntentMatch 为空指针时省略，
// 指向 VerdictNone 时序列化为显式 null。
type SettlementResult struct {
	Status               string          `json:"status"`
	Code                 string          `json:"code,omitempty"`
	Message              string          `json:"message,omitempty"`
	IntentMatch          *ledger.Verdict `json:"intent_match,omitempty"`
	IntentMismatchReason string          `json:"intent_mismatch_reason,omitempty"`
	TransactionID        string          `json:"transaction_id,omitempty"`
	RemainingBalance     *float64        `json:"remaining_balance,omitempty"`
	EstimatedAmount      *float64        `json:"estimated_amount,omitempty"`
	ActualAmount         *float64        `json:"actual_amount,omitempty"`
	MerchantName         string          `json:"merchant_name,omitempty"`
	Items                string          `json:"items,omitempty"`
	OrderConfirmation    string          `json:"order_confirmation,omitempty"`
}

// BalanceResult 是余额查询的对外结果。
type BalanceResult struct {
	Status           string   `json:"status"`
	Code             string   `json:"code,omitempty"`
	Message          string   `json:"message,omitempty"`
	AvailableBalance *float64 `json:"available_balance,omitempty"`
}

// RequestAuthorization 处理一次授权请求：校验 → 记录 Intent 并取得
// 决定 → 按决定整形响应。Intent 总是先落账，被拒绝的请求同样留痕。
func (s *Service) RequestAuthorization(ctx context.Context, in AuthorizationInput) *AuthorizationResult {
	if strings.TrimSpace(in.Merchant) == "" {
		return authorizationError(xerrors.New(xerrors.CodeInvalidArgument, "merchant is required"))
	}
	if in.EstimatedAmount <= 0 {
		return authorizationError(xerrors.New(xerrors.CodeInvalidArgument, "estimated_amount must be positive"))
	}

	auth, err := s.ledger.CreateAuthorization(ctx, ledger.AuthorizationRequest{
		Merchant:        in.Merchant,
		MerchantURL:     NormalizeMerchantURL(in.Merchant),
		EstimatedAmount: in.EstimatedAmount,
		Description:     in.Description,
	})
	if err != nil {
		return authorizationError(err)
	}

	switch auth.Status {
	case intent.StatusDenied:
		return s.denied(in, auth)
	case intent.StatusPendingApproval:
		return s.pendingApproval(in, auth)
	default:
		return s.approved(ctx, in, auth)
	}
}

// denied 整形拒绝结果。余额未被触碰，remaining 即决定时刻的可用余额。
func (s *Service) denied(in AuthorizationInput, auth *ledger.Authorization) *AuthorizationResult {
	message := fmt.Sprintf("PayClaw denied: %s", auth.Reason)
	if auth.Reason == ledger.ReasonInsufficientBalance {
		message = fmt.Sprintf("PayClaw denied: requested $%.2f but your PayClaw balance is only $%.2f available.",
			in.EstimatedAmount, auth.AvailableBalance)
	}
	remaining := auth.AvailableBalance
	logger.Audit().Info("authorization_denied",
		slog.String("intent_id", auth.IntentID),
		slog.String("merchant", in.Merchant),
		slog.Float64("estimated_amount", in.EstimatedAmount),
		slog.String("reason", auth.Reason),
	)
	return &AuthorizationResult{
		ProductName:      productName,
		Status:           "denied",
		IntentID:         auth.IntentID,
		Reason:           auth.Reason,
		Message:          message,
		RemainingBalance: &remaining,
	}
}

// pendingApproval 整形待人工批准结果：给出批准端点，不签发卡片。
func (s *Service) pendingApproval(in AuthorizationInput, auth *ledger.Authorization) *AuthorizationResult {
	remaining := auth.AvailableBalance
	estimated := in.EstimatedAmount
	return &AuthorizationResult{
		ProductName: productName,
		Status:      "pending_approval",
		IntentID:    auth.IntentID,
		MerchantURL: NormalizeMerchantURL(in.Merchant),
		Message: fmt.Sprintf("PayClaw requires your approval. Ask the user to approve $%.2f at %s.",
			in.EstimatedAmount, in.Merchant),
		EstimatedAmount:  &estimated,
		ApproveEndpoint:  fmt.Sprintf("/api/intents/%s/approve", auth.IntentID),
		RemainingBalance: &remaining,
	}
}

// approved 签发卡片并整形批准结果。扣除预留后的余额在本端计算
// （available − estimated），不重新查询，避免与尚未入账的预留赛跑。
func (s *Service) approved(ctx context.Context, in AuthorizationInput, auth *ledger.Authorization) *AuthorizationResult {
	card, err := s.ledger.IssueCard(ctx, auth.IntentID)
	if err != nil {
		return authorizationError(err)
	}
	remaining := auth.AvailableBalance - in.EstimatedAmount
	logger.Audit().Info("authorization_approved",
		slog.String("intent_id", auth.IntentID),
		slog.String("merchant", in.Merchant),
		slog.Float64("estimated_amount", in.EstimatedAmount),
		slog.Float64("remaining_balance", remaining),
	)
	return &AuthorizationResult{
		ProductName:      productName,
		Status:           "approved",
		IntentID:         auth.IntentID,
		Card:             card,
		RemainingBalance: &remaining,
		Instructions:     instructionsAfterApproval,
	}
}

// SettleAuthorization 处理一次结算上报：查找 → 状态检查 → 金额对账 →
// 扣款，全部由账本完成，这里负责整形与审计。
func (s *Service) SettleAuthorization(ctx context.Context, in SettlementInput) *SettlementResult {
	if strings.TrimSpace(in.IntentID) == "" {
		return settlementError(xerrors.New(xerrors.CodeInvalidArgument, "intent_id is required"))
	}
	if in.Success && in.ActualAmount != nil && *in.ActualAmount <= 0 {
		return settlementError(xerrors.New(xerrors.CodeInvalidArgument, "actual_amount must be positive"))
	}

	rec, err := s.ledger.RecordSettlement(ctx, ledger.SettlementRequest{
		IntentID:     in.IntentID,
		Success:      in.Success,
		ActualAmount: in.ActualAmount,
		MerchantName: in.MerchantName,
	})
	if err != nil {
		return settlementError(err)
	}

	verdict := rec.Verdict
	remaining := rec.RemainingBalance
	result := &SettlementResult{
		Status:               "recorded",
		IntentMatch:          &verdict,
		IntentMismatchReason: rec.MismatchReason,
		TransactionID:        rec.TransactionID,
		RemainingBalance:     &remaining,
		MerchantName:         in.MerchantName,
		Items:                in.Items,
		OrderConfirmation:    in.OrderConfirmation,
	}

	if !in.Success {
		result.Message = "Purchase reported as failed. No amount deducted."
	} else {
		charged := rec.ChargedAmount
		result.ActualAmount = &charged
		if rec.EstimatedAmount > 0 {
			estimated := rec.EstimatedAmount
			result.EstimatedAmount = &estimated
		}
	}

	logger.Audit().Info("settlement_recorded",
		slog.String("intent_id", in.IntentID),
		slog.String("transaction_id", rec.TransactionID),
		slog.Bool("success", in.Success),
		slog.String("intent_match", string(rec.Verdict)),
		slog.Float64("charged_amount", rec.ChargedAmount),
		slog.Float64("remaining_balance", rec.RemainingBalance),
	)
	return result
}

// Balance 返回当前可用余额。纯读取，无副作用。
func (s *Service) Balance(ctx context.Context) *BalanceResult {
	available, err := s.ledger.QueryBalance(ctx)
	if err != nil {
		return &BalanceResult{
			Status:  "error",
			Code:    string(xerrors.CodeOf(err)),
			Message: xerrors.MessageOf(err),
		}
	}
	return &BalanceResult{Status: "ok", AvailableBalance: &available}
}

// NormalizeMerchantURL 做最小化的商户地址归一：缺少协议时补 https://。
// merchant 是供人读的意图文本而非安全边界，重度归一化没有收益。
func NormalizeMerchantURL(merchant string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(merchant), "//")
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

// authorizationError 把内部错误整形为 error 状态的授权结果。
func authorizationError(err error) *AuthorizationResult {
	logError(err)
	return &AuthorizationResult{
		ProductName: productName,
		Status:      "error",
		Code:        string(xerrors.CodeOf(err)),
		Message:     xerrors.MessageOf(err),
	}
}

// settlementError 把内部错误整形为 error 状态的结算结果。
func settlementError(err error) *SettlementResult {
	logError(err)
	return &SettlementResult{
		Status:  "error",
		Code:    string(xerrors.CodeOf(err)),
		Message: xerrors.MessageOf(err),
	}
}

func logError(err error) {
	attrs := []any{
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.String("error", err.Error()),
	}
	if xerrors.ShouldAlert(err) {
		logger.L().Error("spend_operation_failed", attrs...)
		return
	}
	logger.L().Warn("spend_operation_failed", attrs...)
}
