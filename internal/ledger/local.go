package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "PayClaw/internal/errors"
	"PayClaw/internal/intent"
	"PayClaw/internal/policy"
)

// LocalLedger 在进程内持有余额与全部 Intent 记录，不依赖任何外部服务。
// 请求按序到达时锁并无必要，但保留互斥量可以让测试并发运行。
type LocalLedger struct {
	mu      sync.RWMutex
	balance float64
	intents map[string]*intent.Intent
	pol     policy.Policy
	card    intent.Card
}

// NewLocal 按策略初始化本地账本。
func NewLocal(pol policy.Policy) *LocalLedger {
	return &LocalLedger{
		balance: pol.StartingBalance,
		intents: make(map[string]*intent.Intent),
		pol:     pol,
		card:    pol.Card(),
	}
}

// QueryBalance 返回当前可用余额。
func (l *LocalLedger) QueryBalance(_ context.Context) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance, nil
}

// CreateAuthorization 先记录 Intent 再做出决定，被拒绝的请求留有审计记录。
// 决定顺序：单笔限额、余额充足性。拒绝不触碰余额。
func (l *LocalLedger) CreateAuthorization(_ context.Context, req AuthorizationRequest) (*Authorization, error) {
	if req.EstimatedAmount <= 0 {
		return nil, xerrors.New(intent.CodeIntentValidation, "estimated amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().Unix()
	rec := &intent.Intent{
		ID:              uuid.NewString(),
		Merchant:        req.Merchant,
		MerchantURL:     req.MerchantURL,
		EstimatedAmount: req.EstimatedAmount,
		Description:     req.Description,
		Status:          intent.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch {
	case l.pol.MaxPurchase > 0 && req.EstimatedAmount > l.pol.MaxPurchase:
		rec.Status = intent.StatusDenied
		rec.DenialReason = ReasonAmountLimitExceeded
	case req.EstimatedAmount > l.balance:
		rec.Status = intent.StatusDenied
		rec.DenialReason = ReasonInsufficientBalance
	}
	l.intents[rec.ID] = rec

	return &Authorization{
		IntentID:         rec.ID,
		Status:           rec.Status,
		Reason:           rec.DenialReason,
		AvailableBalance: l.balance,
	}, nil
}

// IssueCard 返回沙箱卡片。被拒绝或已结算的 Intent 无卡可发。
func (l *LocalLedger) IssueCard(_ context.Context, intentID string) (*intent.Card, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.intents[intentID]
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	if rec.Status == intent.StatusDenied {
		return nil, intent.ErrIntentDenied
	}
	if rec.Settled() {
		return nil, intent.ErrIntentSettled
	}
	card := l.card
	return &card, nil
}

// RecordSettlement 对账并结算。每个 Intent 至多结算一次：
// 未知或已结算的 Intent 返回错误且不产生任何状态变化。
func (l *LocalLedger) RecordSettlement(_ context.Context, req SettlementRequest) (*SettlementRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.intents[req.IntentID]
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	if rec.Status != intent.StatusPending {
		if rec.Status == intent.StatusDenied {
			return nil, intent.ErrIntentDenied
		}
		return nil, intent.ErrIntentSettled
	}

	now := time.Now().Unix()

	if !req.Success {
		rec.Status = intent.StatusFailed
		rec.UpdatedAt = now
		return &SettlementRecord{
			TransactionID:    uuid.NewString(),
			Verdict:          VerdictNone,
			EstimatedAmount:  rec.EstimatedAmount,
			ChargedAmount:    0,
			RemainingBalance: l.balance,
		}, nil
	}

	charged := rec.EstimatedAmount
	if req.ActualAmount != nil {
		charged = *req.ActualAmount
	}

	verdict := VerdictMatch
	mismatchReason := ""
	if !l.pol.Matches(rec.EstimatedAmount, charged) {
		verdict = VerdictMismatch
		mismatchReason = "actual amount deviates from the estimate beyond the configured tolerance"
	}

	// 扣款无条件执行：余额充足性在授权阶段已经校验过。
	l.balance -= charged
	rec.Status = intent.StatusCompleted
	rec.ActualAmount = &charged
	rec.UpdatedAt = now

	return &SettlementRecord{
		TransactionID:    uuid.NewString(),
		Verdict:          verdict,
		MismatchReason:   mismatchReason,
		EstimatedAmount:  rec.EstimatedAmount,
		ChargedAmount:    charged,
		RemainingBalance: l.balance,
	}, nil
}

// Intent 返回指定 Intent 的快照，主要供审计与测试使用。
func (l *LocalLedger) Intent(id string) (*intent.Intent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.intents[id]
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	return rec.Clone(), nil
}

// ensure interface compliance at compile time
var _ Ledger = (*LocalLedger)(nil)
