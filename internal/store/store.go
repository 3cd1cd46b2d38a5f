// Package store определяет интерфейсы хранилища (Ledger Store).
// Движки работают только через эти интерфейсы: боевое хранилище — PostgreSQL
// (store/postgres), тесты используют хранилище в памяти (store/memstore).
//
// Каскадные операции (подтверждение депозита → реферальные бонусы →
// повышение уровней → достижения) выполняются внутри одной транзакции БД
// через Store.InTx: либо фиксируются все изменения, либо ни одного.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// AccountRepo — операции с аккаунтами игроков.
type AccountRepo interface {
	// Create создаёт аккаунт и заполняет ID/CreatedAt.
	// Дубликат telegram_id или referral_code — ошибка.
	Create(ctx context.Context, a *models.Account) error

	// GetByID / GetByTelegramID / GetByReferralCode возвращают
	// apperrors.ErrNotFound, если аккаунта нет.
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)

	// LockByID читает аккаунт с блокировкой строки (SELECT ... FOR UPDATE).
	// Сериализует конкурирующие изменения одного аккаунта.
	LockByID(ctx context.Context, id int64) (*models.Account, error)

	// AddBalance увеличивает баланс на amount.
	AddBalance(ctx context.Context, id int64, amount decimal.Decimal) error

	// SubBalance уменьшает баланс; при нехватке средств —
	// apperrors.ErrInsufficientFunds, без изменений.
	SubBalance(ctx context.Context, id int64, amount decimal.Decimal) error

	// ApplyDeposit отражает подтверждённый депозит:
	// balance += amount, total_deposit += amount.
	ApplyDeposit(ctx context.Context, id int64, amount decimal.Decimal) error

	// ApplyWithdraw отражает подтверждённый вывод: total_withdraw += amount
	// (баланс был зарезервирован при создании заявки).
	ApplyWithdraw(ctx context.Context, id int64, amount decimal.Decimal) error

	// CreditReferral начисляет реферальный бонус:
	// balance += amount, referral_earnings += amount.
	CreditReferral(ctx context.Context, id int64, amount decimal.Decimal) error

	// SetLevel выставляет новый уровень.
	SetLevel(ctx context.Context, id int64, level string) error

	// IncReferralCount увеличивает счётчик приглашённых на 1.
	IncReferralCount(ctx context.Context, id int64) error

	// SetIncomeSchedule записывает время последнего и следующего начисления.
	SetIncomeSchedule(ctx context.Context, id int64, last, next time.Time) error

	// DueForIncome возвращает аккаунты, которым пора начислять доход:
	// total_deposit > 0 и next_income <= now.
	DueForIncome(ctx context.Context, now time.Time) ([]*models.Account, error)

	// ReferralsOf возвращает прямых рефералов аккаунта (новые первыми).
	ReferralsOf(ctx context.Context, id int64) ([]*models.Account, error)

	// TopByBalance / TopByReferrals — рейтинги игроков.
	TopByBalance(ctx context.Context, limit int) ([]*models.Account, error)
	TopByReferrals(ctx context.Context, limit int) ([]*models.Account, error)

	// Count возвращает общее число аккаунтов (для админ-статистики).
	Count(ctx context.Context) (int64, error)
}

// TransactionRepo — операции с леджером.
type TransactionRepo interface {
	// Create создаёт транзакцию и заполняет ID/CreatedAt.
	Create(ctx context.Context, t *models.Transaction) error

	// GetByID возвращает apperrors.ErrNotFound, если транзакции нет.
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)

	// LockByID читает транзакцию с блокировкой строки.
	LockByID(ctx context.Context, id int64) (*models.Transaction, error)

	// Resolve переводит pending-транзакцию в status и ставит completed_at.
	// Если транзакция уже обработана — apperrors.ErrInvalidState.
	Resolve(ctx context.Context, id int64, status string, completedAt time.Time) error

	// ListByAccount возвращает последние limit транзакций аккаунта.
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error)

	// ListPending возвращает все необработанные транзакции (старые первыми).
	ListPending(ctx context.Context) ([]*models.Transaction, error)

	// SumWithdrawRequestedSince суммирует заявки на вывод аккаунта
	// (pending + completed), созданные начиная с since. Нужна для дневного лимита.
	SumWithdrawRequestedSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error)

	// SumCompletedByKind суммирует завершённые транзакции вида kind по всем
	// аккаунтам (для админ-статистики).
	SumCompletedByKind(ctx context.Context, kind string) (decimal.Decimal, error)
}

// BonusRepo — записи о реферальных бонусах.
type BonusRepo interface {
	// Create создаёт запись бонуса. Повтор (referrer, source_tx, tier)
	// — ошибка уникальности.
	Create(ctx context.Context, b *models.ReferralBonus) error

	// ListByReferrer возвращает бонусы, полученные реферером (новые первыми).
	ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralBonus, error)

	// SumAll суммирует все начисленные бонусы (для админ-статистики).
	SumAll(ctx context.Context) (decimal.Decimal, error)
}

// UpgradeRepo — купленные апгрейды.
type UpgradeRepo interface {
	// Get возвращает покупку апгрейда или apperrors.ErrNotFound.
	Get(ctx context.Context, accountID int64, upgradeID string) (*models.UpgradePurchase, error)

	// Create создаёт запись покупки (уровень 1).
	Create(ctx context.Context, u *models.UpgradePurchase) error

	// Upgrade повышает уровень покупки и продлевает срок действия.
	Upgrade(ctx context.Context, id int64, level int, expiresAt *time.Time) error

	// ListActive возвращает действующие апгрейды аккаунта на момент now.
	ListActive(ctx context.Context, accountID int64, now time.Time) ([]*models.UpgradePurchase, error)

	// ConsumeUse списывает одно использование расходуемого апгрейда;
	// при uses_left == 0 деактивирует запись.
	ConsumeUse(ctx context.Context, id int64) error

	// DeactivateExpired гасит все просроченные апгрейды, возвращает число.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// AchievementRepo — открытые достижения.
type AchievementRepo interface {
	// Has сообщает, открыто ли достижение у аккаунта.
	Has(ctx context.Context, accountID int64, achievementID string) (bool, error)

	// Create создаёт запись об открытии. Повтор пары — ошибка уникальности.
	Create(ctx context.Context, a *models.AchievementUnlock) error

	// ListByAccount возвращает достижения аккаунта.
	ListByAccount(ctx context.Context, accountID int64) ([]*models.AchievementUnlock, error)
}

// Store объединяет репозитории и транзакционную границу.
type Store interface {
	Accounts() AccountRepo
	Transactions() TransactionRepo
	Bonuses() BonusRepo
	Upgrades() UpgradeRepo
	Achievements() AchievementRepo

	// InTx выполняет fn в одной транзакции БД.
	// Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(s Store) error) error
}
