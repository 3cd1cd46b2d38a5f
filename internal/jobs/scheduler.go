// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасное начисление дохода
// и ежедневная уборка просроченных апгрейдов и сессий.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/common"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/admin"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/shop"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	income    *income.Engine
	shop      *shop.Service
	adminRepo *admin.Repository
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(incomeEng *income.Engine, shopSvc *shop.Service, adminRepo *admin.Repository) *Scheduler {
	c := cron.New(cron.WithLocation(common.MoscowLocation()))

	return &Scheduler{
		cron:      c,
		income:    incomeEng,
		shop:      shopSvc,
		adminRepo: adminRepo,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Начисление дохода каждый час
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Начисление дохода")
		if err := s.income.Sweep(ctx, time.Now()); err != nil {
			log.WithError(err).Error("[CRON] Ошибка начисления дохода")
		}
	})

	// Ежедневная уборка в 00:30 по Москве
	s.cron.AddFunc("30 0 * * *", func() {
		log.Info("[CRON] Ежедневная уборка")
		if err := s.shop.ExpireOld(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка деактивации апгрейдов")
		}
		if err := s.adminRepo.CleanupExpired(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка очистки админ-сессий")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
