// Package postgres реализует интерфейсы store поверх PostgreSQL (pgx).
// Репозитории работают через DBTX, поэтому один и тот же код выполняется
// и на пуле соединений, и внутри открытой транзакции.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// DBTX — общий интерфейс pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Storage реализует store.Store.
type Storage struct {
	db DBTX
}

// NewStorage создаёт хранилище поверх пула или транзакции.
func NewStorage(db DBTX) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Accounts() store.AccountRepo         { return &AccountRepo{db: s.db} }
func (s *Storage) Transactions() store.TransactionRepo { return &TransactionRepo{db: s.db} }
func (s *Storage) Bonuses() store.BonusRepo            { return &BonusRepo{db: s.db} }
func (s *Storage) Upgrades() store.UpgradeRepo         { return &UpgradeRepo{db: s.db} }
func (s *Storage) Achievements() store.AchievementRepo { return &AchievementRepo{db: s.db} }

// InTx выполняет fn в транзакции БД. Вложенный вызов откроет savepoint.
func (s *Storage) InTx(ctx context.Context, fn func(store.Store) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
