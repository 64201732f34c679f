package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer 是 *http.Server 的可替换子集。
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// MetricsServer 在 suture 监督下暴露 /metrics。
type MetricsServer struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewMetricsServer 在 addr 上挂载 Prometheus handler。
func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return NewMetricsServerFrom(&http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

// NewMetricsServerFrom 包装一个已构造的 server。
func NewMetricsServerFrom(server HTTPServer) *MetricsServer {
	return &MetricsServer{server: server, shutdownTimeout: 5 * time.Second}
}

// Serve 实现 suture.Service。
func (m *MetricsServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (m *MetricsServer) String() string {
	return "metrics-server"
}
