package models

import "time"

// UpgradePurchase — купленный игроком апгрейд.
// Уровень апгрейда никогда не превышает максимум из каталога.
type UpgradePurchase struct {
	ID          int64      `db:"id"`
	AccountID   int64      `db:"account_id"`
	UpgradeID   string     `db:"upgrade_id"` // ID определения в каталоге (game.Upgrades)
	Level       int        `db:"level"`      // Текущий уровень (>= 1)
	UsesLeft    *int       `db:"uses_left"`  // Остаток использований (только consumable)
	Active      bool       `db:"active"`     // Действует ли сейчас
	PurchasedAt time.Time  `db:"purchased_at"`
	ExpiresAt   *time.Time `db:"expires_at"` // nil — бессрочный
}

// Expired сообщает, истёк ли срок действия апгрейда.
func (u *UpgradePurchase) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}
