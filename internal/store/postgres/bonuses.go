package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// BonusRepo выполняет операции с таблицей referral_bonuses.
type BonusRepo struct {
	db DBTX
}

func (r *BonusRepo) Create(ctx context.Context, b *models.ReferralBonus) error {
	query := `
		INSERT INTO referral_bonuses (referrer_id, referred_id, source_tx_id, tier, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		b.ReferrerID, b.ReferredID, b.SourceTxID, b.Tier, b.Amount,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Бонус этой линии за эту транзакцию уже начислялся
			return fmt.Errorf("бонус уже начислен: %w", err)
		}
		return fmt.Errorf("ошибка создания бонуса: %w", err)
	}
	return nil
}

func (r *BonusRepo) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralBonus, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, referrer_id, referred_id, source_tx_id, tier, amount, created_at
		FROM referral_bonuses
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса бонусов: %w", err)
	}
	defer rows.Close()

	var out []*models.ReferralBonus
	for rows.Next() {
		var b models.ReferralBonus
		if err := rows.Scan(&b.ID, &b.ReferrerID, &b.ReferredID, &b.SourceTxID, &b.Tier, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования бонуса: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

func (r *BonusRepo) SumAll(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM referral_bonuses`).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка суммирования бонусов: %w", err)
	}
	return sum, nil
}
