package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	pol, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pol.StartingBalance != DefaultStartingBalance {
		t.Fatalf("starting balance = %v, want %v", pol.StartingBalance, DefaultStartingBalance)
	}
	if pol.MatchTolerance != DefaultMatchTolerance {
		t.Fatalf("match tolerance = %v, want %v", pol.MatchTolerance, DefaultMatchTolerance)
	}
	if pol.MaxPurchase != DefaultMaxPurchase {
		t.Fatalf("max purchase = %v, want %v", pol.MaxPurchase, DefaultMaxPurchase)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `starting_balance: 1000.0
match_tolerance: 0.10
sandbox_card:
  number: "5555555555554444"
  exp_month: 6
  exp_year: 2030
  cvv: "999"
  holder_name: "Agent Smith"
  address_line: "1 Infinite Loop"
  city: "Cupertino"
  state: "CA"
  zip: "95014"
  country: "US"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	pol, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pol.StartingBalance != 1000 {
		t.Fatalf("starting balance = %v, want 1000", pol.StartingBalance)
	}
	if pol.MatchTolerance != 0.10 {
		t.Fatalf("match tolerance = %v, want 0.10", pol.MatchTolerance)
	}
	// 未填写的字段保持默认值。
	if pol.MaxPurchase != DefaultMaxPurchase {
		t.Fatalf("max purchase = %v, want default %v", pol.MaxPurchase, DefaultMaxPurchase)
	}

	card := pol.Card()
	if card.Number != "5555555555554444" || card.HolderName != "Agent Smith" {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.BillingAddress == nil || card.BillingAddress.City != "Cupertino" {
		t.Fatalf("billing address not loaded: %+v", card.BillingAddress)
	}
}

func TestLoadInvalidTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("match_tolerance: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for tolerance 1.5")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestMatchesTolerance(t *testing.T) {
	pol := Default()

	cases := []struct {
		name      string
		estimated float64
		actual    float64
		want      bool
	}{
		{"exact", 100, 100, true},
		{"within upper bound", 100, 119, true},
		{"at upper bound", 100, 120, true},
		{"above upper bound", 100, 121, false},
		{"within lower bound", 100, 80, true},
		{"below lower bound", 100, 79, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pol.Matches(tc.estimated, tc.actual); got != tc.want {
				t.Fatalf("Matches(%v, %v) = %v, want %v", tc.estimated, tc.actual, got, tc.want)
			}
		})
	}
}

func TestMatchesZeroTolerance(t *testing.T) {
	pol := Default()
	pol.MatchTolerance = 0

	if !pol.Matches(50, 50) {
		t.Fatalf("exact amount should match with zero tolerance")
	}
	if pol.Matches(50, 50.01) {
		t.Fatalf("any deviation should mismatch with zero tolerance")
	}
}

func TestDefaultSandboxCard(t *testing.T) {
	card := Default().Card()
	if card.Number != "4242424242424242" {
		t.Fatalf("card number = %q", card.Number)
	}
	if card.BillingAddress == nil || card.BillingAddress.State != "TX" {
		t.Fatalf("default billing address missing: %+v", card.BillingAddress)
	}
}
