// Package shop — магазин апгрейдов.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Item — позиция магазина применительно к конкретному аккаунту.
type Item struct {
	Upgrade      game.Upgrade
	CurrentLevel int        // 0 — ещё не куплен
	Active       bool
	UsesLeft     *int       // Для расходуемых
	ExpiresAt    *time.Time // Для временных
}

// NextPrice возвращает цену следующего уровня.
// Второе значение false — уровень уже максимальный.
func (i Item) NextPrice() (decimal.Decimal, bool) {
	next := i.CurrentLevel + 1
	if next > i.Upgrade.MaxLevel {
		return decimal.Zero, false
	}
	return i.Upgrade.PriceAt(next), true
}

// Service продаёт и прокачивает апгрейды.
type Service struct {
	st       store.Store
	catalog  *game.UpgradeCatalog
	notifier notify.Dispatcher
	logger   *logrus.Logger

	now func() time.Time
}

func NewService(st store.Store, catalog *game.UpgradeCatalog, notifier notify.Dispatcher, logger *logrus.Logger) *Service {
	return &Service{st: st, catalog: catalog, notifier: notifier, logger: logger, now: time.Now}
}

// WithClock подменяет источник времени (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Available возвращает витрину магазина для аккаунта:
// каталог с текущими уровнями покупок.
func (s *Service) Available(ctx context.Context, accountID int64) ([]Item, error) {
	now := s.now()
	out := make([]Item, 0, len(s.catalog.All()))
	for _, u := range s.catalog.All() {
		item := Item{Upgrade: u}
		p, err := s.st.Upgrades().Get(ctx, accountID, u.ID)
		switch {
		case err == nil:
			item.CurrentLevel = p.Level
			item.Active = p.Active && !p.Expired(now)
			item.UsesLeft = p.UsesLeft
			item.ExpiresAt = p.ExpiresAt
		case errors.Is(err, apperrors.ErrNotFound):
			// не куплен
		default:
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Purchase покупает апгрейд или прокачивает его на следующий уровень.
// Цена уровня n — базовая цена × n, списывается с баланса. Покупка уровня
// сверх максимального — apperrors.ErrUpgradeMaxLevel. Временные апгрейды
// получают новый срок действия от момента покупки.
func (s *Service) Purchase(ctx context.Context, accountID int64, upgradeID string) (*models.UpgradePurchase, error) {
	u, ok := s.catalog.Get(upgradeID)
	if !ok {
		return nil, apperrors.ErrUpgradeNotFound
	}
	now := s.now()

	var purchase *models.UpgradePurchase
	var events []notify.Event
	err := s.st.InTx(ctx, func(st store.Store) error {
		acc, err := st.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}

		existing, err := st.Upgrades().Get(ctx, accountID, upgradeID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		nextLevel := 1
		if existing != nil {
			nextLevel = existing.Level + 1
		}
		if nextLevel > u.MaxLevel {
			return apperrors.ErrUpgradeMaxLevel
		}

		price := u.PriceAt(nextLevel)
		if err := st.Accounts().SubBalance(ctx, acc.ID, price); err != nil {
			return err
		}

		expiresAt := expiry(u, now)
		if existing == nil {
			purchase = &models.UpgradePurchase{
				AccountID: accountID,
				UpgradeID: u.ID,
				Level:     1,
				Active:    true,
				ExpiresAt: expiresAt,
			}
			if u.Kind == game.UpgradeKindConsumable {
				uses := u.Uses
				purchase.UsesLeft = &uses
			}
			if err := st.Upgrades().Create(ctx, purchase); err != nil {
				return err
			}
		} else {
			if err := st.Upgrades().Upgrade(ctx, existing.ID, nextLevel, expiresAt); err != nil {
				return err
			}
			existing.Level = nextLevel
			existing.ExpiresAt = expiresAt
			existing.Active = true
			purchase = existing
		}

		events = append(events, notify.UpgradePurchased{
			TelegramID: acc.TelegramID,
			Name:       u.Name,
			Level:      purchase.Level,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events...)
	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"upgrade_id": upgradeID,
		"level":      purchase.Level,
	}).Info("Куплен апгрейд")
	return purchase, nil
}

// ExpireOld гасит просроченные временные апгрейды. Запускается по расписанию.
func (s *Service) ExpireOld(ctx context.Context) error {
	n, err := s.st.Upgrades().DeactivateExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("деактивация апгрейдов: %w", err)
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"count": n}).Info("Деактивированы просроченные апгрейды")
	}
	return nil
}

func expiry(u game.Upgrade, now time.Time) *time.Time {
	if u.DurationDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, u.DurationDays)
	return &t
}
