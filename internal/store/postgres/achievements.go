package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// AchievementRepo выполняет операции с таблицей account_achievements.
type AchievementRepo struct {
	db DBTX
}

func (r *AchievementRepo) Has(ctx context.Context, accountID int64, achievementID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM account_achievements WHERE account_id = $1 AND achievement_id = $2)`,
		accountID, achievementID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки достижения: %w", err)
	}
	return exists, nil
}

func (r *AchievementRepo) Create(ctx context.Context, a *models.AchievementUnlock) error {
	query := `
		INSERT INTO account_achievements (account_id, achievement_id, reward_claimed)
		VALUES ($1, $2, $3)
		RETURNING id, completed_at
	`
	err := r.db.QueryRow(ctx, query,
		a.AccountID, a.AchievementID, a.RewardClaimed,
	).Scan(&a.ID, &a.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("достижение уже открыто: %w", err)
		}
		return fmt.Errorf("ошибка записи достижения: %w", err)
	}
	return nil
}

func (r *AchievementRepo) ListByAccount(ctx context.Context, accountID int64) ([]*models.AchievementUnlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, achievement_id, completed_at, reward_claimed
		FROM account_achievements
		WHERE account_id = $1
		ORDER BY completed_at
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса достижений: %w", err)
	}
	defer rows.Close()

	var out []*models.AchievementUnlock
	for rows.Next() {
		var a models.AchievementUnlock
		if err := rows.Scan(&a.ID, &a.AccountID, &a.AchievementID, &a.CompletedAt, &a.RewardClaimed); err != nil {
			return nil, fmt.Errorf("ошибка сканирования достижения: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
