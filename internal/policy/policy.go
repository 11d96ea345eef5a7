package policy

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"PayClaw/internal/intent"
)

// 本地账本的默认策略参数。对应 configs/policy.yaml 中未填写的字段。
const (
	DefaultStartingBalance = 500.0
	DefaultMatchTolerance  = 0.20
	DefaultMaxPurchase     = 500.0
)

// Policy 描述本地账本的授权与对账策略。
type Policy struct {
	// StartingBalance 是进程启动时本地账本的初始可用余额（主币种单位）。
	StartingBalance float64 `yaml:"starting_balance"`
	// MatchTolerance 是实际金额与预估金额允许的偏差比例，[0, 1)。
	MatchTolerance float64 `yaml:"match_tolerance"`
	// MaxPurchase 是单笔授权的金额上限，0 表示不限制。
	MaxPurchase float64 `yaml:"max_purchase_amount"`
	// SandboxCard 覆盖默认的沙箱卡片信息。
	SandboxCard *SandboxCard `yaml:"sandbox_card"`
}

// SandboxCard 对应 policy.yaml 中的沙箱卡片定义。
type SandboxCard struct {
	Number      string `yaml:"number"`
	ExpMonth    int    `yaml:"exp_month"`
	ExpYear     int    `yaml:"exp_year"`
	CVV         string `yaml:"cvv"`
	HolderName  string `yaml:"holder_name"`
	AddressLine string `yaml:"address_line"`
	City        string `yaml:"city"`
	State       string `yaml:"state"`
	Zip         string `yaml:"zip"`
	Country     string `yaml:"country"`
}

// Default 返回全部取默认值的策略。
func Default() Policy {
	return Policy{
		StartingBalance: DefaultStartingBalance,
		MatchTolerance:  DefaultMatchTolerance,
		MaxPurchase:     DefaultMaxPurchase,
	}
}

// Load 解析 YAML 策略文件。路径为空时直接返回默认策略。
func Load(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("读取策略文件失败: %w", err)
	}

	pol := Default()
	if err := yaml.Unmarshal(content, &pol); err != nil {
		return Policy{}, fmt.Errorf("解析策略文件失败: %w", err)
	}
	if err := pol.Validate(); err != nil {
		return Policy{}, err
	}
	return pol, nil
}

// Validate 检查策略参数是否落在允许范围内。
func (p Policy) Validate() error {
	if p.StartingBalance < 0 {
		return fmt.Errorf("starting_balance 不能为负数: %v", p.StartingBalance)
	}
	if p.MatchTolerance < 0 || p.MatchTolerance >= 1 {
		return fmt.Errorf("match_tolerance 必须落在 [0, 1): %v", p.MatchTolerance)
	}
	if p.MaxPurchase < 0 {
		return fmt.Errorf("max_purchase_amount 不能为负数: %v", p.MaxPurchase)
	}
	return nil
}

// Matches 判断实际金额是否落在预估金额的容差范围内。
func (p Policy) Matches(estimated, actual float64) bool {
	diff := math.Abs(actual - estimated)
	return diff <= p.MatchTolerance*estimated
}

// Card 返回策略指定的沙箱卡片，未配置时返回内置默认卡。
func (p Policy) Card() intent.Card {
	if p.SandboxCard == nil {
		return defaultSandboxCard()
	}
	card := intent.Card{
		Number:     p.SandboxCard.Number,
		ExpMonth:   p.SandboxCard.ExpMonth,
		ExpYear:    p.SandboxCard.ExpYear,
		CVV:        p.SandboxCard.CVV,
		HolderName: p.SandboxCard.HolderName,
	}
	if p.SandboxCard.AddressLine != "" {
		card.BillingAddress = &intent.BillingAddress{
			Line1:   p.SandboxCard.AddressLine,
			City:    p.SandboxCard.City,
			State:   p.SandboxCard.State,
			Zip:     p.SandboxCard.Zip,
			Country: p.SandboxCard.Country,
		}
	}
	return card
}

// defaultSandboxCard 是本地模式内置的测试卡。
func defaultSandboxCard() intent.Card {
	return intent.Card{
		Number:     "4242424242424242",
		ExpMonth:   12,
		ExpYear:    2028,
		CVV:        "123",
		HolderName: "Test User",
		BillingAddress: &intent.BillingAddress{
			Line1:   "123 Main St",
			City:    "Austin",
			State:   "TX",
			Zip:     "78701",
			Country: "US",
		},
	}
}
