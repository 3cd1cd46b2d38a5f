// Package ledger управляет жизненным циклом транзакций:
// заявки на депозит и вывод, подтверждение и отмена администратором.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/common"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/referral"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Limits — денежные ограничения операций.
type Limits struct {
	MinDeposit         decimal.Decimal
	MinWithdraw        decimal.Decimal
	MaxWithdraw        decimal.Decimal
	DailyWithdrawLimit decimal.Decimal
}

// Service — операции над леджером. Каскад подтверждения депозита
// (зачисление → реферальные бонусы → уровни → достижения) выполняется
// в одной транзакции БД, уведомления уходят после коммита.
type Service struct {
	st           store.Store
	limits       Limits
	upgrades     *game.UpgradeCatalog
	leveling     *leveling.Engine
	achievements *achievements.Engine
	referral     *referral.Engine
	notifier     notify.Dispatcher
	logger       *logrus.Logger

	now func() time.Time
}

func NewService(
	st store.Store,
	limits Limits,
	upgrades *game.UpgradeCatalog,
	lvl *leveling.Engine,
	ach *achievements.Engine,
	ref *referral.Engine,
	notifier notify.Dispatcher,
	logger *logrus.Logger,
) *Service {
	return &Service{
		st:           st,
		limits:       limits,
		upgrades:     upgrades,
		leveling:     lvl,
		achievements: ach,
		referral:     ref,
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

// CreateDeposit создаёт pending-заявку на депозит. Баланс не меняется
// до подтверждения администратором.
func (s *Service) CreateDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.LessThan(s.limits.MinDeposit) {
		return nil, fmt.Errorf("минимальный депозит %s: %w",
			common.FormatAmount(s.limits.MinDeposit), apperrors.ErrInvalidAmount)
	}

	tx := &models.Transaction{
		AccountID:   accountID,
		Kind:        models.TxKindDeposit,
		Amount:      amount,
		Status:      models.TxStatusPending,
		Description: "Пополнение баланса",
	}
	err := s.st.InTx(ctx, func(st store.Store) error {
		if _, err := st.Accounts().GetByID(ctx, accountID); err != nil {
			return err
		}
		return st.Transactions().Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"tx_id":      tx.ID,
		"amount":     amount.String(),
	}).Info("Создана заявка на депозит")
	return tx, nil
}

// CreateWithdraw создаёт заявку на вывод. Сумма резервируется с баланса
// сразу, чтобы её нельзя было потратить дважды. Активный апгрейд
// «мгновенный вывод» подтверждает заявку автоматически, списав одно
// использование.
func (s *Service) CreateWithdraw(ctx context.Context, accountID int64, amount decimal.Decimal, wallet string) (*models.Transaction, error) {
	now := s.now()

	var tx *models.Transaction
	var events []notify.Event
	err := s.st.InTx(ctx, func(st store.Store) error {
		acc, err := st.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}

		if err := s.validateWithdraw(ctx, st, acc, amount, now); err != nil {
			return err
		}

		// Резерв: средства уходят с баланса при создании заявки,
		// отмена вернёт их обратно
		if err := st.Accounts().SubBalance(ctx, acc.ID, amount); err != nil {
			return err
		}

		tx = &models.Transaction{
			AccountID:     acc.ID,
			Kind:          models.TxKindWithdraw,
			Amount:        amount,
			Status:        models.TxStatusPending,
			WalletAddress: &wallet,
			Description:   "Вывод средств",
		}
		if err := st.Transactions().Create(ctx, tx); err != nil {
			return err
		}

		instant, err := s.findInstantWithdraw(ctx, st, acc.ID, now)
		if err != nil {
			return err
		}
		if instant != nil {
			if err := st.Upgrades().ConsumeUse(ctx, instant.ID); err != nil {
				return err
			}
			if err := st.Transactions().Resolve(ctx, tx.ID, models.TxStatusCompleted, now); err != nil {
				return err
			}
			if err := st.Accounts().ApplyWithdraw(ctx, acc.ID, amount); err != nil {
				return err
			}
			tx.Status = models.TxStatusCompleted
			tx.CompletedAt = &now
			events = append(events, notify.WithdrawConfirmed{TelegramID: acc.TelegramID, Amount: amount})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events...)
	s.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"tx_id":      tx.ID,
		"amount":     amount.String(),
		"instant":    tx.Status == models.TxStatusCompleted,
	}).Info("Создана заявка на вывод")
	return tx, nil
}

func (s *Service) validateWithdraw(ctx context.Context, st store.Store, acc *models.Account, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if amount.LessThan(s.limits.MinWithdraw) {
		return fmt.Errorf("минимальный вывод %s: %w",
			common.FormatAmount(s.limits.MinWithdraw), apperrors.ErrInvalidAmount)
	}
	if amount.GreaterThan(s.limits.MaxWithdraw) {
		return fmt.Errorf("максимальный вывод %s: %w",
			common.FormatAmount(s.limits.MaxWithdraw), apperrors.ErrInvalidAmount)
	}

	dayStart := startOfDay(now)
	requested, err := st.Transactions().SumWithdrawRequestedSince(ctx, acc.ID, dayStart)
	if err != nil {
		return err
	}
	if requested.Add(amount).GreaterThan(s.limits.DailyWithdrawLimit) {
		return fmt.Errorf("дневной лимит %s: %w",
			common.FormatAmount(s.limits.DailyWithdrawLimit), apperrors.ErrWithdrawLimit)
	}

	if acc.Balance.LessThan(amount) {
		return apperrors.ErrInsufficientFunds
	}
	return nil
}

func (s *Service) findInstantWithdraw(ctx context.Context, st store.Store, accountID int64, now time.Time) (*models.UpgradePurchase, error) {
	active, err := st.Upgrades().ListActive(ctx, accountID, now)
	if err != nil {
		return nil, err
	}
	for _, p := range active {
		u, ok := s.upgrades.Get(p.UpgradeID)
		if !ok || u.Kind != game.UpgradeKindConsumable {
			continue
		}
		if p.UsesLeft != nil && *p.UsesLeft > 0 {
			return p, nil
		}
	}
	return nil, nil
}

// Approve подтверждает pending-транзакцию. Для депозита в той же
// транзакции БД выполняется весь каскад: зачисление, запуск расписания
// дохода, повышение уровня, достижения и реферальные бонусы до трёх линий.
// Уже обработанная транзакция — apperrors.ErrInvalidState, без изменений.
func (s *Service) Approve(ctx context.Context, txID int64) (*models.Transaction, error) {
	now := s.now()

	var resolved *models.Transaction
	var events []notify.Event
	err := s.st.InTx(ctx, func(st store.Store) error {
		tx, err := st.Transactions().LockByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx.Resolved() {
			return apperrors.ErrInvalidState
		}
		if err := st.Transactions().Resolve(ctx, tx.ID, models.TxStatusCompleted, now); err != nil {
			return err
		}
		tx.Status = models.TxStatusCompleted
		tx.CompletedAt = &now
		resolved = tx

		acc, err := st.Accounts().LockByID(ctx, tx.AccountID)
		if err != nil {
			return err
		}

		switch tx.Kind {
		case models.TxKindDeposit:
			evs, err := s.applyDeposit(ctx, st, acc, tx, now)
			if err != nil {
				return err
			}
			events = evs
		case models.TxKindWithdraw:
			if err := st.Accounts().ApplyWithdraw(ctx, acc.ID, tx.Amount); err != nil {
				return err
			}
			events = append(events, notify.WithdrawConfirmed{TelegramID: acc.TelegramID, Amount: tx.Amount})
		default:
			return fmt.Errorf("транзакция %d вида %s не требует подтверждения: %w",
				tx.ID, tx.Kind, apperrors.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events...)
	s.logger.WithFields(logrus.Fields{
		"tx_id": txID,
		"kind":  resolved.Kind,
	}).Info("Транзакция подтверждена")
	return resolved, nil
}

func (s *Service) applyDeposit(ctx context.Context, st store.Store, acc *models.Account, tx *models.Transaction, now time.Time) ([]notify.Event, error) {
	if err := st.Accounts().ApplyDeposit(ctx, acc.ID, tx.Amount); err != nil {
		return nil, err
	}
	acc.Balance = acc.Balance.Add(tx.Amount)
	acc.TotalDeposit = acc.TotalDeposit.Add(tx.Amount)

	// Часы дохода запускаются первым подтверждённым депозитом
	if acc.NextIncome == nil {
		next := now.Add(income.Interval)
		if err := st.Accounts().SetIncomeSchedule(ctx, acc.ID, now, next); err != nil {
			return nil, err
		}
		acc.LastIncome = &now
		acc.NextIncome = &next
	}

	events := []notify.Event{notify.DepositConfirmed{TelegramID: acc.TelegramID, Amount: tx.Amount}}

	lvlEvents, err := s.leveling.CatchUp(ctx, st, acc)
	if err != nil {
		return nil, err
	}
	events = append(events, lvlEvents...)

	achEvents, err := s.achievements.CheckAll(ctx, st, acc, now)
	if err != nil {
		return nil, err
	}
	events = append(events, achEvents...)

	refEvents, err := s.referral.Propagate(ctx, st, acc, tx.ID, tx.Amount, now)
	if err != nil {
		return nil, err
	}
	events = append(events, refEvents...)

	return events, nil
}

// Cancel отменяет pending-транзакцию. Для вывода зарезервированная сумма
// возвращается на баланс; отмена депозита баланс не трогает.
func (s *Service) Cancel(ctx context.Context, txID int64) (*models.Transaction, error) {
	now := s.now()

	var resolved *models.Transaction
	var events []notify.Event
	err := s.st.InTx(ctx, func(st store.Store) error {
		tx, err := st.Transactions().LockByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx.Resolved() {
			return apperrors.ErrInvalidState
		}
		if err := st.Transactions().Resolve(ctx, tx.ID, models.TxStatusCancelled, now); err != nil {
			return err
		}
		tx.Status = models.TxStatusCancelled
		tx.CompletedAt = &now
		resolved = tx

		if tx.Kind == models.TxKindWithdraw {
			acc, err := st.Accounts().LockByID(ctx, tx.AccountID)
			if err != nil {
				return err
			}
			if err := st.Accounts().AddBalance(ctx, acc.ID, tx.Amount); err != nil {
				return err
			}
			events = append(events, notify.WithdrawCancelled{TelegramID: acc.TelegramID, Amount: tx.Amount})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events...)
	s.logger.WithFields(logrus.Fields{
		"tx_id": txID,
		"kind":  resolved.Kind,
	}).Info("Транзакция отменена")
	return resolved, nil
}

// History возвращает последние операции аккаунта.
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	return s.st.Transactions().ListByAccount(ctx, accountID, limit)
}

// Pending возвращает все необработанные заявки (для админа).
func (s *Service) Pending(ctx context.Context) ([]*models.Transaction, error) {
	return s.st.Transactions().ListPending(ctx)
}

// startOfDay — начало суток по Москве; от него считается дневной лимит вывода.
func startOfDay(t time.Time) time.Time {
	loc := common.MoscowLocation()
	tt := t.In(loc)
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, loc)
}
