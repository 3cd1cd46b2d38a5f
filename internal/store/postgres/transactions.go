package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// TransactionRepo выполняет операции с таблицей transactions.
type TransactionRepo struct {
	db DBTX
}

const txColumns = `
	id, account_id, kind, amount, status, wallet_address, description,
	created_at, completed_at`

func scanTx(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.Status,
		&t.WalletAddress, &t.Description, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения транзакции: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (account_id, kind, amount, status, wallet_address, description, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		t.AccountID, t.Kind, t.Amount, t.Status, t.WalletAddress, t.Description, t.CompletedAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания транзакции: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTx(r.db.QueryRow(ctx, query, id))
}

// LockByID блокирует строку транзакции до конца транзакции БД.
func (r *TransactionRepo) LockByID(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT` + txColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTx(r.db.QueryRow(ctx, query, id))
}

// Resolve завершает pending-транзакцию. Условие status = 'pending' в WHERE
// не даёт обработать транзакцию дважды.
func (r *TransactionRepo) Resolve(ctx context.Context, id int64, status string, completedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, status, completedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrInvalidState
	}
	return nil
}

func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT` + txColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.queryTxs(ctx, query, accountID, limit)
}

func (r *TransactionRepo) ListPending(ctx context.Context) ([]*models.Transaction, error) {
	query := `
		SELECT` + txColumns + `
		FROM transactions
		WHERE status = 'pending'
		ORDER BY created_at
	`
	return r.queryTxs(ctx, query)
}

func (r *TransactionRepo) SumWithdrawRequestedSince(ctx context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1 AND kind = 'withdraw' AND status <> 'cancelled' AND created_at >= $2
	`, accountID, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка суммирования выводов: %w", err)
	}
	return sum, nil
}

func (r *TransactionRepo) SumCompletedByKind(ctx context.Context, kind string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE kind = $1 AND status = 'completed'
	`, kind).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка суммирования транзакций: %w", err)
	}
	return sum, nil
}

func (r *TransactionRepo) queryTxs(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса транзакций: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
