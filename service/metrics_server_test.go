package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockHTTPServer struct {
	listenErr error
	stopped   chan struct{}
}

func newMockHTTPServer(listenErr error) *mockHTTPServer {
	return &mockHTTPServer{listenErr: listenErr, stopped: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopped
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	close(m.stopped)
	return nil
}

func TestMetricsServer_GracefulShutdown(t *testing.T) {
	m := NewMetricsServerFrom(newMockHTTPServer(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := m.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "metrics-server", m.String())
}

func TestMetricsServer_ListenFailure(t *testing.T) {
	m := NewMetricsServerFrom(newMockHTTPServer(errors.New("address in use")))
	err := m.Serve(context.Background())
	assert.ErrorContains(t, err, "address in use")
}
