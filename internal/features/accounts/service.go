// Package accounts — регистрация игроков и сводная статистика.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Длина реферального кода в hex-символах.
const referralCodeLen = 8

// Service — регистрация, профили и рейтинги игроков.
type Service struct {
	st           store.Store
	levels       *game.LevelTable
	income       *income.Engine
	leveling     *leveling.Engine
	achievements *achievements.Engine
	notifier     notify.Dispatcher
	logger       *logrus.Logger

	now func() time.Time
}

func NewService(
	st store.Store,
	levels *game.LevelTable,
	inc *income.Engine,
	lvl *leveling.Engine,
	ach *achievements.Engine,
	notifier notify.Dispatcher,
	logger *logrus.Logger,
) *Service {
	return &Service{
		st:           st,
		levels:       levels,
		income:       inc,
		leveling:     lvl,
		achievements: ach,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock подменяет источник времени (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetOrRegister возвращает аккаунт по telegram_id, создавая его при первом
// обращении. refCode — реферальный код из ссылки-приглашения; пустая строка
// или неизвестный код регистрируют без реферера. Попытка зарегистрироваться
// по собственному коду — apperrors.ErrSelfReferral.
//
// При привязке реферера его счётчик приглашённых растёт в той же транзакции,
// после чего перепроверяются его уровень и достижения.
func (s *Service) GetOrRegister(ctx context.Context, telegramID int64, username, refCode string) (*models.Account, bool, error) {
	acc, err := s.st.Accounts().GetByTelegramID(ctx, telegramID)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	now := s.now()
	var created *models.Account
	var events []notify.Event
	err = s.st.InTx(ctx, func(st store.Store) error {
		var referrer *models.Account
		if refCode != "" {
			referrer, err = st.Accounts().GetByReferralCode(ctx, refCode)
			if errors.Is(err, apperrors.ErrNotFound) {
				referrer = nil
			} else if err != nil {
				return err
			}
			if referrer != nil && referrer.TelegramID == telegramID {
				return apperrors.ErrSelfReferral
			}
		}

		code, err := s.generateReferralCode(ctx, st)
		if err != nil {
			return err
		}

		created = &models.Account{
			TelegramID:   telegramID,
			Username:     username,
			Level:        s.levels.First().Name,
			ReferralCode: code,
		}
		if referrer != nil {
			created.ReferredBy = &referrer.ID
		}
		if err := st.Accounts().Create(ctx, created); err != nil {
			return err
		}

		if referrer != nil {
			if err := st.Accounts().IncReferralCount(ctx, referrer.ID); err != nil {
				return err
			}
			referrer.ReferralCount++

			// Новый реферал мог поднять уровень или открыть достижение
			lvlEvents, err := s.leveling.CatchUp(ctx, st, referrer)
			if err != nil {
				return err
			}
			events = append(events, lvlEvents...)

			achEvents, err := s.achievements.CheckAll(ctx, st, referrer, now)
			if err != nil {
				return err
			}
			events = append(events, achEvents...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.notifier.Dispatch(events...)
	s.logger.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"account_id":  created.ID,
		"referred":    created.ReferredBy != nil,
	}).Info("Зарегистрирован новый игрок")
	return created, true, nil
}

// Get возвращает аккаунт по telegram_id без регистрации.
// Незарегистрированный игрок — apperrors.ErrNotFound.
func (s *Service) Get(ctx context.Context, telegramID int64) (*models.Account, error) {
	return s.st.Accounts().GetByTelegramID(ctx, telegramID)
}

// generateReferralCode выдаёт случайный hex-код, свободный от коллизий.
func (s *Service) generateReferralCode(ctx context.Context, st store.Store) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, referralCodeLen/2)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("генерация реферального кода: %w", err)
		}
		code := hex.EncodeToString(buf)

		_, err := st.Accounts().GetByReferralCode(ctx, code)
		if errors.Is(err, apperrors.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("не удалось подобрать свободный реферальный код")
}

// Stats — сводка профиля для экрана статистики.
type Stats struct {
	Account         *models.Account
	Level           game.Level
	NextLevel       *game.Level
	MonthlyIncome   decimal.Decimal // Прогноз дохода за период с учётом бустов
	NextIncomeIn    time.Duration   // 0 — часы дохода ещё не запущены
	ReferralsToNext int
	DepositToNext   decimal.Decimal
}

// Stats собирает сводку по аккаунту.
func (s *Service) Stats(ctx context.Context, telegramID int64) (*Stats, error) {
	acc, err := s.st.Accounts().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	level, ok := s.levels.Get(acc.Level)
	if !ok {
		return nil, fmt.Errorf("неизвестный уровень %q у аккаунта %d", acc.Level, acc.ID)
	}

	st := &Stats{Account: acc, Level: level}

	st.MonthlyIncome, err = s.income.Projected(ctx, s.st, acc, now)
	if err != nil {
		return nil, err
	}

	if acc.NextIncome != nil && acc.NextIncome.After(now) {
		st.NextIncomeIn = acc.NextIncome.Sub(now)
	}

	if next, ok := s.levels.Next(acc.Level); ok {
		st.NextLevel = &next
		if d := next.RequiredReferrals - acc.ReferralCount; d > 0 {
			st.ReferralsToNext = d
		}
		if d := next.MinDeposit.Sub(acc.TotalDeposit); d.IsPositive() {
			st.DepositToNext = d
		}
	}
	return st, nil
}

// Referrals возвращает прямых рефералов и историю бонусов.
func (s *Service) Referrals(ctx context.Context, accountID int64, bonusLimit int) ([]*models.Account, []*models.ReferralBonus, error) {
	refs, err := s.st.Accounts().ReferralsOf(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	bonuses, err := s.st.Bonuses().ListByReferrer(ctx, accountID, bonusLimit)
	if err != nil {
		return nil, nil, err
	}
	return refs, bonuses, nil
}

// TopByBalance / TopByReferrals — рейтинги для команды «топ».
func (s *Service) TopByBalance(ctx context.Context, limit int) ([]*models.Account, error) {
	return s.st.Accounts().TopByBalance(ctx, limit)
}

func (s *Service) TopByReferrals(ctx context.Context, limit int) ([]*models.Account, error) {
	return s.st.Accounts().TopByReferrals(ctx, limit)
}
