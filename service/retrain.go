package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/logging"
)

// DefaultTrainTimeout 单次重训的默认超时。
const DefaultTrainTimeout = 10 * time.Minute

// Trainer 执行一次重训。
type Trainer interface {
	Train(ctx context.Context) error
}

// RetrainConfig 配置周期重训。
type RetrainConfig struct {
	// OnStartup 服务启动时立即训练一次
	OnStartup bool
	// Interval 重训周期，<= 0 表示只在启动时训练
	Interval time.Duration
	// Timeout 单次重训超时，<= 0 使用 DefaultTrainTimeout
	Timeout time.Duration
}

// RetrainService 在 suture 监督下周期重训快照。
type RetrainService struct {
	trainer Trainer
	config  RetrainConfig
	logger  zerolog.Logger
}

var _ suture.Service = (*RetrainService)(nil)

// NewRetrainService 创建重训服务。
func NewRetrainService(trainer Trainer, cfg RetrainConfig) *RetrainService {
	return &RetrainService{
		trainer: trainer,
		config:  cfg,
		logger:  logging.Component("retrain"),
	}
}

// Serve 实现 suture.Service。
// 没有配置周期时，启动训练结束后返回 suture.ErrDoNotRestart。
func (s *RetrainService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("retrain service starting")

	if s.config.OnStartup {
		s.train(ctx, "startup")
	}

	if s.config.Interval <= 0 {
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retrain service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.train(ctx, "scheduled")
		}
	}
}

func (s *RetrainService) train(ctx context.Context, trigger string) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTrainTimeout
	}
	trainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.trainer.Train(trainCtx)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrTrainingInProgress):
		s.logger.Debug().Str("trigger", trigger).Msg("retrain skipped, already in progress")
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("retrain failed, will retry on schedule")
	}
}

// String 返回服务名，供 suture 日志使用。
func (s *RetrainService) String() string {
	return "retrain-service"
}
