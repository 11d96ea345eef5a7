package payclaw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestAuthorizationApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/authorizations" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req AuthorizationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Merchant != "Amazon" || req.EstimatedAmount != 100 {
			t.Fatalf("unexpected payload: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "approved",
			"intent_id": "int_123",
			"card": {"number": "4242424242424242", "exp_month": 12, "exp_year": 2028, "cvv": "123"},
			"remaining_balance": 400.0
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	result, err := client.RequestAuthorization(context.Background(), AuthorizationRequest{
		Merchant:        "Amazon",
		EstimatedAmount: 100,
		Description:     "USB cable",
	})
	if err != nil {
		t.Fatalf("RequestAuthorization: %v", err)
	}
	if result.Status != "approved" {
		t.Fatalf("status = %q, want approved", result.Status)
	}
	if result.IntentID != "int_123" {
		t.Fatalf("intent_id = %q, want int_123", result.IntentID)
	}
	if result.Card == nil || result.Card.Number != "4242424242424242" {
		t.Fatalf("card not decoded: %+v", result.Card)
	}
	if result.RemainingBalance == nil || *result.RemainingBalance != 400 {
		t.Fatalf("remaining_balance not decoded: %v", result.RemainingBalance)
	}
}

func TestSettleAuthorizationNullMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/settlements" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "recorded", "intent_match": null, "transaction_id": "txn_1"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	result, err := client.SettleAuthorization(context.Background(), SettlementRequest{
		IntentID: "int_123",
		Success:  false,
	})
	if err != nil {
		t.Fatalf("SettleAuthorization: %v", err)
	}
	if result.IntentMatch != nil {
		t.Fatalf("intent_match = %v, want nil", *result.IntentMatch)
	}
	if result.TransactionID != "txn_1" {
		t.Fatalf("transaction_id = %q", result.TransactionID)
	}
}

func TestBalanceAndIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/balance":
			_, _ = w.Write([]byte(`{"status": "ok", "available_balance": 385.0}`))
		case "/api/v1/identity":
			_, _ = w.Write([]byte(`{"status": "ok", "verification_token": "pc_v1_sandbox_mock_token"}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	balance, err := client.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.AvailableBalance == nil || *balance.AvailableBalance != 385 {
		t.Fatalf("available_balance = %v", balance.AvailableBalance)
	}
	identity, err := client.Identity(context.Background())
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if identity.VerificationToken != "pc_v1_sandbox_mock_token" {
		t.Fatalf("verification_token = %q", identity.VerificationToken)
	}
}

func TestAPIErrorFromErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid request body"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Balance(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid request body" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("   ", nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
	client, err := NewClient("http://localhost:8090/", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if strings.HasSuffix(client.baseURL, "/") {
		t.Fatalf("base url not trimmed: %q", client.baseURL)
	}
}
