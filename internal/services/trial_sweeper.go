package services

import (
	"fmt"

	"salonhub/internal/engine"
	"salonhub/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TrialSweeper 试用到期定时任务
// 每小时扫描一次，把宽限期已结束的试用租户标记为past_due。
// 硬门禁本身在每次请求时即时计算，这里只负责订阅状态的最终落库。
type TrialSweeper struct {
	cron          *cron.Cron
	tenantService *TenantService
	logger        *logrus.Logger
	isRunning     bool
}

// NewTrialSweeper 创建试用到期定时任务
func NewTrialSweeper() *TrialSweeper {
	return &TrialSweeper{
		cron:          cron.New(),
		tenantService: NewTenantService(),
		logger:        logger.GetLogger(),
	}
}

// Start 启动定时任务
func (s *TrialSweeper) Start() error {
	if s.isRunning {
		return fmt.Errorf("试用到期任务已经在运行")
	}

	if _, err := s.cron.AddFunc("0 * * * *", s.sweep); err != nil {
		return fmt.Errorf("注册试用到期任务失败: %v", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("试用到期定时任务启动成功")

	// 启动时先执行一轮，补上停机期间漏掉的扫描
	go s.sweep()
	return nil
}

// Stop 停止定时任务
func (s *TrialSweeper) Stop() {
	if !s.isRunning {
		return
	}
	s.cron.Stop()
	s.isRunning = false
	s.logger.Info("试用到期定时任务已停止")
}

// sweep 执行一轮扫描
func (s *TrialSweeper) sweep() {
	affected, err := s.tenantService.MarkExpiredTrialsPastDue(engine.TrialGraceDays)
	if err != nil {
		s.logger.Errorf("试用到期扫描失败: %v", err)
		return
	}
	if affected > 0 {
		s.logger.Infof("试用到期扫描完成，%d 个租户标记为past_due", affected)
	}
}
