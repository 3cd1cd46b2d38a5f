// Package income начисляет пассивный доход по расписанию.
package income

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Interval — период начисления дохода.
const Interval = 30 * 24 * time.Hour

var oneHundred = decimal.NewFromInt(100)

// Engine считает и начисляет доход игроков.
type Engine struct {
	st       store.Store
	levels   *game.LevelTable
	upgrades *game.UpgradeCatalog
	notifier notify.Dispatcher
	logger   *logrus.Logger
}

func NewEngine(
	st store.Store,
	levels *game.LevelTable,
	upgrades *game.UpgradeCatalog,
	notifier notify.Dispatcher,
	logger *logrus.Logger,
) *Engine {
	return &Engine{st: st, levels: levels, upgrades: upgrades, notifier: notifier, logger: logger}
}

// Projected возвращает доход аккаунта за период без начисления:
// total_deposit × процент уровня × (1 + сумма активных income_boost).
// Используется и для реального начисления, и для прогноза в статистике.
func (e *Engine) Projected(ctx context.Context, st store.Store, acc *models.Account, now time.Time) (decimal.Decimal, error) {
	level, ok := e.levels.Get(acc.Level)
	if !ok {
		return decimal.Zero, fmt.Errorf("неизвестный уровень %q у аккаунта %d", acc.Level, acc.ID)
	}

	base := acc.TotalDeposit.Mul(level.IncomePercent).Div(oneHundred)

	boost := decimal.Zero
	active, err := st.Upgrades().ListActive(ctx, acc.ID, now)
	if err != nil {
		return decimal.Zero, fmt.Errorf("апгрейды аккаунта %d: %w", acc.ID, err)
	}
	for _, p := range active {
		u, ok := e.upgrades.Get(p.UpgradeID)
		if !ok || u.Kind != game.UpgradeKindIncomeBoost {
			continue
		}
		boost = boost.Add(u.EffectPerLvl.Mul(decimal.NewFromInt(int64(p.Level))))
	}

	multiplier := decimal.NewFromInt(1).Add(boost.Div(oneHundred))
	return base.Mul(multiplier).Round(2), nil
}

// Accrue начисляет доход одному аккаунту внутри уже открытой транзакции.
// Если срок начисления не наступил или депозитов нет — возвращает ноль
// без изменений. Повторный вызов в том же часе безопасен: после начисления
// next_income сдвигается на Interval вперёд.
func (e *Engine) Accrue(ctx context.Context, st store.Store, accountID int64, now time.Time) (decimal.Decimal, []notify.Event, error) {
	acc, err := st.Accounts().LockByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !acc.IncomeDue(now) {
		return decimal.Zero, nil, nil
	}

	amount, err := e.Projected(ctx, st, acc, now)
	if err != nil {
		return decimal.Zero, nil, err
	}

	completedAt := now
	tx := &models.Transaction{
		AccountID:   acc.ID,
		Kind:        models.TxKindIncome,
		Amount:      amount,
		Status:      models.TxStatusCompleted,
		Description: fmt.Sprintf("Доход уровня %s", acc.Level),
		CompletedAt: &completedAt,
	}
	if err := st.Transactions().Create(ctx, tx); err != nil {
		return decimal.Zero, nil, fmt.Errorf("транзакция дохода: %w", err)
	}
	if err := st.Accounts().AddBalance(ctx, acc.ID, amount); err != nil {
		return decimal.Zero, nil, fmt.Errorf("зачисление дохода: %w", err)
	}
	if err := st.Accounts().SetIncomeSchedule(ctx, acc.ID, now, now.Add(Interval)); err != nil {
		return decimal.Zero, nil, fmt.Errorf("расписание дохода: %w", err)
	}

	events := []notify.Event{notify.IncomeReceived{TelegramID: acc.TelegramID, Amount: amount}}
	return amount, events, nil
}

// Sweep начисляет доход всем аккаунтам, у которых подошёл срок.
// Каждый аккаунт обрабатывается в собственной транзакции: сбой одного
// не мешает остальным. Уведомления уходят после коммита каждого аккаунта.
func (e *Engine) Sweep(ctx context.Context, now time.Time) error {
	due, err := e.st.Accounts().DueForIncome(ctx, now)
	if err != nil {
		return fmt.Errorf("выборка аккаунтов для начисления: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var accrued int
	for _, acc := range due {
		var events []notify.Event
		err := e.st.InTx(ctx, func(s store.Store) error {
			_, evs, err := e.Accrue(ctx, s, acc.ID, now)
			events = evs
			return err
		})
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"account_id": acc.ID,
			}).WithError(err).Error("Не удалось начислить доход")
			continue
		}
		e.notifier.Dispatch(events...)
		accrued++
	}

	e.logger.WithFields(logrus.Fields{
		"due":     len(due),
		"accrued": accrued,
	}).Info("Начисление дохода завершено")
	return nil
}
