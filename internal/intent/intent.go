package intent

import (
	xerrors "PayClaw/internal/errors"
)

// Status 表示 Intent 在授权生命周期中的状态。
type Status string

const (
	// StatusPending 表示 Intent 已记录，等待结算。本地账本的初始状态。
	StatusPending Status = "pending"
	// StatusApproved 表示远端策略引擎已批准并可签发卡片。
	StatusApproved Status = "approved"
	// StatusDenied 表示授权请求被拒绝，Intent 仅留作审计记录。
	StatusDenied Status = "denied"
	// StatusPendingApproval 表示远端要求人工批准后才能签发卡片。
	StatusPendingApproval Status = "pending_approval"
	// StatusFailed 表示购买失败，Intent 已终结且未扣款。
	StatusFailed Status = "failed"
	// StatusCompleted 表示购买成功并已按实际金额扣款。
	StatusCompleted Status = "completed"
)

// Intent 描述一笔拟议中的购买授权。
type Intent struct {
	ID              string   `json:"id"`
	Merchant        string   `json:"merchant"`
	MerchantURL     string   `json:"merchant_url,omitempty"`
	EstimatedAmount float64  `json:"estimated_amount"`
	Description     string   `json:"description,omitempty"`
	Status          Status   `json:"status"`
	DenialReason    string   `json:"denial_reason,omitempty"`
	ActualAmount    *float64 `json:"actual_amount,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// BillingAddress 是沙箱卡片附带的账单地址。
type BillingAddress struct {
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Card 是授权成功后签发的一次性虚拟卡。仅存在于授权结果中，核心不持久化。
type Card struct {
	Number         string          `json:"number"`
	ExpMonth       int             `json:"exp_month"`
	ExpYear        int             `json:"exp_year"`
	CVV            string          `json:"cvv"`
	HolderName     string          `json:"billing_name"`
	BillingAddress *BillingAddress `json:"billing_address,omitempty"`
}

var (
	// ErrIntentNotFound 表示指定的 Intent 不存在。
	ErrIntentNotFound = xerrors.New(CodeIntentNotFound, "intent not found")
	// ErrIntentSettled 表示 Intent 已经结算过，不允许再次结算。
	ErrIntentSettled = xerrors.New(CodeIntentSettled, "intent already settled", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrIntentDenied 表示对被拒绝的 Intent 请求卡片或结算。
	ErrIntentDenied = xerrors.New(CodeIntentDenied, "intent was denied", xerrors.WithSeverity(xerrors.SeverityInfo))
)

const (
	CodeIntentNotFound   xerrors.Code = "INTENT_NOT_FOUND"
	CodeIntentSettled    xerrors.Code = "INTENT_ALREADY_SETTLED"
	CodeIntentDenied     xerrors.Code = "INTENT_DENIED"
	CodeIntentValidation xerrors.Code = "INTENT_VALIDATION_FAILED"
)

func init() {
	xerrors.Register(CodeIntentNotFound, xerrors.Attributes{
		Message:  "intent not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeIntentSettled, xerrors.Attributes{
		Message:  "intent already settled",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeIntentDenied, xerrors.Attributes{
		Message:  "intent was denied",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeIntentValidation, xerrors.Attributes{
		Message:  "intent validation failed",
		Severity: xerrors.SeverityInfo,
	})
}

// Settled 报告 Intent 是否已离开可结算状态。
func (i *Intent) Settled() bool {
	if i == nil {
		return false
	}
	switch i.Status {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Clone 返回深拷贝，避免调用方共享内部指针。
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	clone := *i
	if i.ActualAmount != nil {
		amount := *i.ActualAmount
		clone.ActualAmount = &amount
	}
	return &clone
}

// IsValidStatus 检查给定的状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusApproved, StatusDenied, StatusPendingApproval, StatusFailed, StatusCompleted:
		return true
	default:
		return false
	}
}
