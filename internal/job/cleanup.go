package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 表达式带秒字段
// "0 0 3 * * *"      // 每天凌晨3点
// "0 */5 * * * *"    // 每隔5分钟

// Cleaner 清理过期通知
type Cleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

// Scheduler 定时任务
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.SugaredLogger
}

// NewScheduler 创建定时任务调度器
func NewScheduler(logger *zap.SugaredLogger) *Scheduler {
	timezone, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		timezone = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(timezone), cron.WithChain(cron.Recover(cron.DiscardLogger))),
		logger: logger,
	}
}

// AddCleanup 注册已读通知清理任务
func (s *Scheduler) AddCleanup(spec string, cleaner Cleaner, days int) error {
	_, err := s.cron.AddFunc(spec, func() {
		RunCleanup(context.Background(), cleaner, days, s.logger)
	})
	if err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}
	s.logger.Infof("已注册通知清理任务: %s，保留 %d 天", spec, days)
	return nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务完成
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// Entries 已注册的任务数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunCleanup 执行一次清理
func RunCleanup(ctx context.Context, cleaner Cleaner, days int, logger *zap.SugaredLogger) {
	start := time.Now()
	removed, err := cleaner.Cleanup(ctx, days)
	if err != nil {
		logger.Errorf("清理已读通知失败: %v", err)
		return
	}
	logger.Infow("清理已读通知完成",
		"removed", removed,
		"days", days,
		"elapsed", time.Since(start).String())
}
