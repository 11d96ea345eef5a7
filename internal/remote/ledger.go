package remote

import (
	"context"
	stdErrors "errors"
	"math"
	"net/http"
	"strconv"

	xerrors "PayClaw/internal/errors"
	"PayClaw/internal/intent"
	"PayClaw/internal/ledger"
)

// Ledger 把远端服务适配为账本能力。余额与 Intent 状态完全由远端持有，
// 本端只做金额换算与错误归一化，不解释策略决定。
type Ledger struct {
	client *Client
}

// NewLedger 基于远端客户端创建账本适配器。
func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

// Cents 把主币种金额换算为整数分。四舍五入只允许发生在这一个位置。
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Dollars 把整数分换算回主币种金额。
func Dollars(cents int64) float64 {
	return float64(cents) / 100
}

// QueryBalance 每次重新查询远端余额，从不缓存。
func (l *Ledger) QueryBalance(ctx context.Context) (float64, error) {
	balance, err := l.client.GetBalance(ctx)
	if err != nil {
		return 0, wrapAPIError(err)
	}
	return Dollars(balance.AvailableCents), nil
}

// CreateAuthorization 先在远端落账 Intent，再读取决定。远端策略引擎
// 是唯一的裁决方，即便余额充足也可能因其他原因拒绝。
func (l *Ledger) CreateAuthorization(ctx context.Context, req ledger.AuthorizationRequest) (*ledger.Authorization, error) {
	resp, err := l.client.CreateIntent(ctx, req.MerchantURL, Cents(req.EstimatedAmount), req.Description)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	balance, err := l.client.GetBalance(ctx)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	auth := &ledger.Authorization{
		IntentID:         resp.ID,
		AvailableBalance: Dollars(balance.AvailableCents),
	}
	switch resp.Status {
	case "approved":
		auth.Status = intent.StatusApproved
	case "pending_approval":
		auth.Status = intent.StatusPendingApproval
	default:
		// 未知状态一律按拒绝处理，原因透传 policy_result.reason，
		// 缺失时回退到原始状态串。
		auth.Status = intent.StatusDenied
		auth.Reason = resp.DenialReason()
	}
	return auth, nil
}

// IssueCard 获取远端签发的卡片。
func (l *Ledger) IssueCard(ctx context.Context, intentID string) (*intent.Card, error) {
	resp, err := l.client.GetCard(ctx, intentID)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return &intent.Card{
		Number:     resp.CardNumber,
		ExpMonth:   resp.ExpMonth,
		ExpYear:    resp.ExpYear,
		CVV:        resp.CVV,
		HolderName: resp.CardholderName,
	}, nil
}

// RecordSettlement 上报结算并转述远端的对账结论。金额缺省规则由持有
// Intent 记录的一方执行：远端按自己的记录补齐，这里上报零金额即可。
func (l *Ledger) RecordSettlement(ctx context.Context, req ledger.SettlementRequest) (*ledger.SettlementRecord, error) {
	var amountCents int64
	if req.Success && req.ActualAmount != nil {
		amountCents = Cents(*req.ActualAmount)
	}

	tx, err := l.client.ReportTransaction(ctx, req.IntentID, req.MerchantName, req.MerchantURL, amountCents)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	balance, err := l.client.GetBalance(ctx)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	rec := &ledger.SettlementRecord{
		TransactionID:    tx.ID,
		Verdict:          ledger.VerdictNone,
		ChargedAmount:    Dollars(tx.AmountCents),
		RemainingBalance: Dollars(balance.AvailableCents),
	}
	if req.Success && tx.IntentMatch != nil {
		if *tx.IntentMatch {
			rec.Verdict = ledger.VerdictMatch
		} else {
			rec.Verdict = ledger.VerdictMismatch
		}
	}
	if tx.IntentMismatchReason != nil {
		rec.MismatchReason = *tx.IntentMismatchReason
	}
	return rec, nil
}

// AgentIdentity 获取远端的 Badge 身份标识。
func (l *Ledger) AgentIdentity(ctx context.Context) (*ledger.AgentIdentity, error) {
	resp, err := l.client.GetAgentIdentity(ctx)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return &ledger.AgentIdentity{
		AgentDisclosure:   resp.AgentDisclosure,
		VerificationToken: resp.VerificationToken,
		TrustURL:          resp.TrustURL,
		Contact:           resp.Contact,
		PrincipalVerified: resp.PrincipalVerified,
		MFAConfirmed:      resp.MFAConfirmed,
	}, nil
}

// wrapAPIError 把客户端的统一失败形态映射到错误码体系：
// 401 归为凭证被拒，其余（含网络不可达）归为传输失败。
func wrapAPIError(err error) error {
	var apiErr *APIError
	if !stdErrors.As(err, &apiErr) {
		return xerrors.Wrap(xerrors.CodeTransport, err, "")
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return xerrors.New(xerrors.CodeAuthentication, apiErr.Message)
	}
	var opts []xerrors.Option
	if apiErr.StatusCode > 0 {
		opts = append(opts, xerrors.WithMetadata("status_code", strconv.Itoa(apiErr.StatusCode)))
	}
	return xerrors.New(xerrors.CodeTransport, apiErr.Message, opts...)
}

// ensure interface compliance at compile time
var _ ledger.Ledger = (*Ledger)(nil)
