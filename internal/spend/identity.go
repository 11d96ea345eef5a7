package spend

import (
	"context"

	xerrors "PayClaw/internal/errors"
	"PayClaw/internal/ledger"
)

// IdentitySource 提供 Badge 身份标识。远端模式从服务获取，本地模式
// 返回内置的沙箱身份。
type IdentitySource interface {
	AgentIdentity(ctx context.Context) (*ledger.AgentIdentity, error)
}

// IdentityResult 是身份查询的对外结果。
type IdentityResult struct {
	ProductName       string `json:"product_name"`
	Status            string `json:"status"`
	Code              string `json:"code,omitempty"`
	Message           string `json:"message,omitempty"`
	AgentDisclosure   string `json:"agent_disclosure,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
	TrustURL          string `json:"trust_url,omitempty"`
	Contact           string `json:"contact,omitempty"`
	PrincipalVerified bool   `json:"principal_verified,omitempty"`
	MFAConfirmed      bool   `json:"mfa_confirmed,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
}

// Identity 返回智能体身份标识，与其他操作一样以带标签的结果返回。
func (s *Service) Identity(ctx context.Context) *IdentityResult {
	id, err := s.identity.AgentIdentity(ctx)
	if err != nil {
		logError(err)
		return &IdentityResult{
			ProductName: productBadgeName,
			Status:      "error",
			Code:        string(xerrors.CodeOf(err)),
			Message:     xerrors.MessageOf(err),
		}
	}
	return &IdentityResult{
		ProductName:       productBadgeName,
		Status:            "active",
		AgentDisclosure:   id.AgentDisclosure,
		VerificationToken: id.VerificationToken,
		TrustURL:          id.TrustURL,
		Contact:           id.Contact,
		PrincipalVerified: id.PrincipalVerified,
		MFAConfirmed:      id.MFAConfirmed,
		Instructions: "Include the agent_disclosure when interacting with merchants. " +
			"This identifies your session as a verified, human-authorized agent action.",
	}
}

const productBadgeName = "PayClaw Badge"

// sandboxIdentity 是本地模式的静态 Badge 身份。
type sandboxIdentity struct{}

func (sandboxIdentity) AgentIdentity(context.Context) (*ledger.AgentIdentity, error) {
	return &ledger.AgentIdentity{
		AgentDisclosure: "This session is operated by an AI agent under PayClaw Agentic Intent. " +
			"The agent acts on behalf of a verified, MFA-authenticated principal. " +
			"Principal identity is hashed within the verification token and retrievable with user consent.",
		VerificationToken: "pc_v1_sandbox_mock_token",
		TrustURL:          "https://payclaw.io/trust",
		Contact:           "agent_identity@payclaw.io",
		PrincipalVerified: true,
		MFAConfirmed:      true,
	}, nil
}
