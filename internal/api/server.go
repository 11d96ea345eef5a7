package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"PayClaw/internal/observability/metrics"
	"PayClaw/internal/spend"
)

// 请求字段的长度与金额上界，超出即拒绝进入核心。
const (
	maxMerchantLen     = 500
	maxDescriptionLen  = 1000
	maxItemsLen        = 2000
	maxConfirmationLen = 200
)

// Server 负责暴露 REST 接口，供外层协议工具驱动授权生命周期。
type Server struct {
	addr string
	svc  *spend.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, svc *spend.Service) *Server {
	return &Server{addr: addr, svc: svc}
}

// Router 返回配置好全部路由的处理器。
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/authorizations", s.handleAuthorize).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/settlements", s.handleSettle).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/identity", s.handleIdentity).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleAuthorize 处理授权请求。核心的任何结果（含 error 状态）都原样
// 序列化并以 200 返回，只有请求本身不成形才返回 4xx。
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var in spend.AuthorizationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "request body is not valid JSON", r.Method, "/api/v1/authorizations", started)
		return
	}
	if len(in.Merchant) > maxMerchantLen || len(in.Description) > maxDescriptionLen {
		respondError(w, http.StatusBadRequest, "merchant or description exceeds the allowed length", r.Method, "/api/v1/authorizations", started)
		return
	}

	result := s.svc.RequestAuthorization(r.Context(), in)
	metrics.ObserveAuthorization(result.Status)
	respondJSON(w, http.StatusOK, result, r.Method, "/api/v1/authorizations", started)
}

// handleSettle 处理结算上报。
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var in spend.SettlementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "request body is not valid JSON", r.Method, "/api/v1/settlements", started)
		return
	}
	if len(in.MerchantName) > maxMerchantLen || len(in.Items) > maxItemsLen || len(in.OrderConfirmation) > maxConfirmationLen {
		respondError(w, http.StatusBadRequest, "a settlement field exceeds the allowed length", r.Method, "/api/v1/settlements", started)
		return
	}

	result := s.svc.SettleAuthorization(r.Context(), in)
	if result.IntentMatch != nil {
		metrics.ObserveSettlement(string(*result.IntentMatch))
	}
	respondJSON(w, http.StatusOK, result, r.Method, "/api/v1/settlements", started)
}

// handleBalance 返回当前可用余额。
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	result := s.svc.Balance(r.Context())
	respondJSON(w, http.StatusOK, result, r.Method, "/api/v1/balance", started)
}

// handleIdentity 返回 Badge 身份标识。
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	result := s.svc.Identity(r.Context())
	respondJSON(w, http.StatusOK, result, r.Method, "/api/v1/identity", started)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.Method, "/healthz", time.Now())
}

func respondJSON(w http.ResponseWriter, code int, payload any, method, endpoint string, started time.Time) {
	metrics.ObserveHTTPRequest(method, endpoint, code, time.Since(started))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, message, method, endpoint string, started time.Time) {
	respondJSON(w, code, map[string]string{"error": message}, method, endpoint, started)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
