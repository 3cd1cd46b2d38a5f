package models

import "time"

// AchievementUnlock — полученное игроком достижение.
// На пару (аккаунт, достижение) существует не более одной записи.
type AchievementUnlock struct {
	ID            int64     `db:"id"`
	AccountID     int64     `db:"account_id"`
	AchievementID string    `db:"achievement_id"` // ID определения в каталоге (game.Achievements)
	CompletedAt   time.Time `db:"completed_at"`
	RewardClaimed bool      `db:"reward_claimed"`
}
