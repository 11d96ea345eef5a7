package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PayClaw/internal/ledger"
	"PayClaw/internal/policy"
	"PayClaw/internal/spend"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := spend.New(ledger.NewLocal(policy.Default()))
	srv := httptest.NewServer(NewServer(":0", svc).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuthorizationEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/authorizations", `{"merchant": "amazon.com", "estimated_amount": 100, "description": "cable"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result spend.AuthorizationResult
	decode(t, resp, &result)
	if result.Status != "approved" {
		t.Fatalf("status = %q: %+v", result.Status, result)
	}
	if result.Card == nil {
		t.Fatalf("card missing")
	}
}

// 核心的 error 结果同样以 200 返回，HTTP 状态码只反映请求是否成形。
func TestDomainErrorsReturnOK(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/settlements", `{"intent_id": "missing", "success": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result spend.SettlementResult
	decode(t, resp, &result)
	if result.Status != "error" {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if result.Code != "INTENT_NOT_FOUND" {
		t.Fatalf("code = %q", result.Code)
	}
}

func TestMalformedJSONReturnsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/authorizations", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]string
	decode(t, resp, &body)
	if body["error"] == "" {
		t.Fatalf("error message missing: %v", body)
	}
}

func TestOversizedFieldsRejected(t *testing.T) {
	srv := newTestServer(t)

	payload := `{"merchant": "` + strings.Repeat("x", maxMerchantLen+1) + `", "estimated_amount": 10}`
	resp := postJSON(t, srv.URL+"/api/v1/authorizations", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSettlementLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var auth spend.AuthorizationResult
	decode(t, postJSON(t, srv.URL+"/api/v1/authorizations", `{"merchant": "amazon.com", "estimated_amount": 100}`), &auth)
	if auth.Status != "approved" {
		t.Fatalf("authorization failed: %+v", auth)
	}

	settleBody := `{"intent_id": "` + auth.IntentID + `", "success": true, "actual_amount": 115, "merchant_name": "Amazon"}`
	resp := postJSON(t, srv.URL+"/api/v1/settlements", settleBody)

	var settle spend.SettlementResult
	decode(t, resp, &settle)
	if settle.Status != "recorded" {
		t.Fatalf("settlement failed: %+v", settle)
	}
	if settle.IntentMatch == nil || *settle.IntentMatch != ledger.VerdictMatch {
		t.Fatalf("intent match = %v", settle.IntentMatch)
	}

	balanceResp, err := http.Get(srv.URL + "/api/v1/balance")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	defer balanceResp.Body.Close()

	var balance spend.BalanceResult
	decode(t, balanceResp, &balance)
	if balance.AvailableBalance == nil || *balance.AvailableBalance != 385 {
		t.Fatalf("balance = %v, want 385", balance.AvailableBalance)
	}
}

func TestIdentityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/identity")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	defer resp.Body.Close()

	var result spend.IdentityResult
	decode(t, resp, &result)
	if result.Status != "active" {
		t.Fatalf("status = %q", result.Status)
	}
	if result.VerificationToken == "" {
		t.Fatalf("verification token missing")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/authorizations")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
