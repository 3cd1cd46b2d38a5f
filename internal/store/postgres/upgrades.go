package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// UpgradeRepo выполняет операции с таблицей account_upgrades.
type UpgradeRepo struct {
	db DBTX
}

const upgradeColumns = `
	id, account_id, upgrade_id, level, uses_left, active, purchased_at, expires_at`

func scanUpgrade(row pgx.Row) (*models.UpgradePurchase, error) {
	var u models.UpgradePurchase
	err := row.Scan(
		&u.ID, &u.AccountID, &u.UpgradeID, &u.Level,
		&u.UsesLeft, &u.Active, &u.PurchasedAt, &u.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения апгрейда: %w", err)
	}
	return &u, nil
}

func (r *UpgradeRepo) Get(ctx context.Context, accountID int64, upgradeID string) (*models.UpgradePurchase, error) {
	query := `SELECT` + upgradeColumns + ` FROM account_upgrades WHERE account_id = $1 AND upgrade_id = $2`
	return scanUpgrade(r.db.QueryRow(ctx, query, accountID, upgradeID))
}

func (r *UpgradeRepo) Create(ctx context.Context, u *models.UpgradePurchase) error {
	query := `
		INSERT INTO account_upgrades (account_id, upgrade_id, level, uses_left, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, purchased_at
	`
	err := r.db.QueryRow(ctx, query,
		u.AccountID, u.UpgradeID, u.Level, u.UsesLeft, u.Active, u.ExpiresAt,
	).Scan(&u.ID, &u.PurchasedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания апгрейда: %w", err)
	}
	return nil
}

func (r *UpgradeRepo) Upgrade(ctx context.Context, id int64, level int, expiresAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE account_upgrades
		SET level = $2, expires_at = $3, active = TRUE
		WHERE id = $1
	`, id, level, expiresAt)
	if err != nil {
		return fmt.Errorf("ошибка прокачки апгрейда: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UpgradeRepo) ListActive(ctx context.Context, accountID int64, now time.Time) ([]*models.UpgradePurchase, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+upgradeColumns+`
		FROM account_upgrades
		WHERE account_id = $1 AND active = TRUE AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY purchased_at
	`, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса апгрейдов: %w", err)
	}
	defer rows.Close()

	var out []*models.UpgradePurchase
	for rows.Next() {
		u, err := scanUpgrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// ConsumeUse списывает одно использование. Когда остаток доходит до нуля,
// запись деактивируется.
func (r *UpgradeRepo) ConsumeUse(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE account_upgrades
		SET uses_left = uses_left - 1,
		    active = (uses_left - 1 > 0)
		WHERE id = $1 AND uses_left > 0
	`, id)
	if err != nil {
		return fmt.Errorf("ошибка списания использования: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrInvalidState
	}
	return nil
}

func (r *UpgradeRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE account_upgrades
		SET active = FALSE
		WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка деактивации апгрейдов: %w", err)
	}
	return tag.RowsAffected(), nil
}
