package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authorizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payclaw_authorizations_total",
		Help: "Total authorization requests processed, labeled by outcome status.",
	}, []string{"status"})

	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payclaw_settlements_total",
		Help: "Total settlements recorded, labeled by reconciliation verdict.",
	}, []string{"verdict"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payclaw_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payclaw_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

// ObserveAuthorization 记录一次授权请求的结果。
func ObserveAuthorization(status string) {
	authorizationsTotal.WithLabelValues(status).Inc()
}

// ObserveSettlement 记录一次结算的对账结论。
func ObserveSettlement(verdict string) {
	settlementsTotal.WithLabelValues(verdict).Inc()
}

// ObserveHTTPRequest 记录一次 HTTP 请求的状态码与耗时。
func ObserveHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler 以 Prometheus 暴露格式输出全部指标。
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer 启动独立的 /metrics HTTP 服务，直到上下文取消。
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
