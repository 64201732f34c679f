package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/moviematch/core"
)

type mockTrainer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockTrainer) Train(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("train called without deadline")
	}
	return m.err
}

func (m *mockTrainer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRetrainService_String(t *testing.T) {
	s := NewRetrainService(&mockTrainer{}, RetrainConfig{})
	assert.Equal(t, "retrain-service", s.String())
}

func TestRetrainService_StartupOnly(t *testing.T) {
	trainer := &mockTrainer{}
	s := NewRetrainService(trainer, RetrainConfig{OnStartup: true})

	err := s.Serve(context.Background())
	assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	assert.Equal(t, 1, trainer.Calls())
}

func TestRetrainService_NoStartup(t *testing.T) {
	trainer := &mockTrainer{}
	s := NewRetrainService(trainer, RetrainConfig{Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, trainer.Calls())
}

func TestRetrainService_Scheduled(t *testing.T) {
	trainer := &mockTrainer{err: core.ErrTrainingInProgress}
	s := NewRetrainService(trainer, RetrainConfig{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_ = s.Serve(ctx)
	assert.GreaterOrEqual(t, trainer.Calls(), 2)
}

func TestRetrainService_FailureKeepsRunning(t *testing.T) {
	trainer := &mockTrainer{err: errors.New("catalog down")}
	s := NewRetrainService(trainer, RetrainConfig{OnStartup: true, Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, trainer.Calls(), 2)
}

func TestRetrainService_UnderSupervisor(t *testing.T) {
	r, _ := newRecommender(t, nil)
	sup := suture.NewSimple("test")
	sup.Add(NewRetrainService(r, RetrainConfig{OnStartup: true}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	assert.Eventually(t, func() bool { return r.Status().IndexReady }, time.Second, 10*time.Millisecond)
	cancel()
	<-errCh
}
