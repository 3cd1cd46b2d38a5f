package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// AccountRepo выполняет операции с таблицей accounts.
type AccountRepo struct {
	db DBTX
}

const accountColumns = `
	id, telegram_id, username, level, balance, total_deposit, total_withdraw,
	referral_code, referred_by, referral_count, referral_earnings,
	created_at, last_income, next_income`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.TelegramID, &a.Username, &a.Level,
		&a.Balance, &a.TotalDeposit, &a.TotalWithdraw,
		&a.ReferralCode, &a.ReferredBy, &a.ReferralCount, &a.ReferralEarnings,
		&a.CreatedAt, &a.LastIncome, &a.NextIncome,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (telegram_id, username, level, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		a.TelegramID, a.Username, a.Level, a.ReferralCode, a.ReferredBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("аккаунт уже существует: %w", err)
		}
		return fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE telegram_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, telegramID))
}

func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE referral_code = $1`
	return scanAccount(r.db.QueryRow(ctx, query, code))
}

// LockByID блокирует строку аккаунта до конца транзакции.
func (r *AccountRepo) LockByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepo) AddBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`, amount)
}

func (r *AccountRepo) SubBalance(ctx context.Context, id int64, amount decimal.Decimal) error {
	// Условие balance >= $2 не даёт балансу уйти в минус
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		id, amount)
	if err != nil {
		return fmt.Errorf("ошибка списания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrInsufficientFunds
	}
	return nil
}

func (r *AccountRepo) ApplyDeposit(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET balance = balance + $2, total_deposit = total_deposit + $2 WHERE id = $1`,
		amount)
}

func (r *AccountRepo) ApplyWithdraw(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET total_withdraw = total_withdraw + $2 WHERE id = $1`, amount)
}

func (r *AccountRepo) CreditReferral(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET balance = balance + $2, referral_earnings = referral_earnings + $2 WHERE id = $1`,
		amount)
}

func (r *AccountRepo) SetLevel(ctx context.Context, id int64, level string) error {
	return r.exec(ctx, id, `UPDATE accounts SET level = $2 WHERE id = $1`, level)
}

func (r *AccountRepo) IncReferralCount(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET referral_count = referral_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчика рефералов: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) SetIncomeSchedule(ctx context.Context, id int64, last, next time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET last_income = $2, next_income = $3 WHERE id = $1`,
		id, last, next)
	if err != nil {
		return fmt.Errorf("ошибка обновления расписания дохода: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) DueForIncome(ctx context.Context, now time.Time) ([]*models.Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE total_deposit > 0 AND next_income IS NOT NULL AND next_income <= $1
		ORDER BY next_income
	`
	return r.queryAccounts(ctx, query, now)
}

func (r *AccountRepo) ReferralsOf(ctx context.Context, id int64) ([]*models.Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE referred_by = $1
		ORDER BY created_at DESC
	`
	return r.queryAccounts(ctx, query, id)
}

func (r *AccountRepo) TopByBalance(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts ORDER BY balance DESC LIMIT $1`
	return r.queryAccounts(ctx, query, limit)
}

func (r *AccountRepo) TopByReferrals(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts ORDER BY referral_count DESC LIMIT $1`
	return r.queryAccounts(ctx, query, limit)
}

func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта аккаунтов: %w", err)
	}
	return n, nil
}

func (r *AccountRepo) exec(ctx context.Context, id int64, query string, amountOrLevel any) error {
	tag, err := r.db.Exec(ctx, query, id, amountOrLevel)
	if err != nil {
		return fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) queryAccounts(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса аккаунтов: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
