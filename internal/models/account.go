// Package models содержит общие структуры данных игры.
// account.go описывает аккаунт игрока — его финансовое и игровое состояние.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account представляет игрока крипто-империи.
// Создаётся при первом обращении к боту (/start).
type Account struct {
	ID               int64           `db:"id"`                // ID записи в БД
	TelegramID       int64           `db:"telegram_id"`       // Telegram user ID (уникальный)
	Username         string          `db:"username"`          // @username (может быть пустым)
	Level            string          `db:"level"`             // Название текущего уровня
	Balance          decimal.Decimal `db:"balance"`           // Доступный баланс (всегда >= 0)
	TotalDeposit     decimal.Decimal `db:"total_deposit"`     // Сумма подтверждённых депозитов
	TotalWithdraw    decimal.Decimal `db:"total_withdraw"`    // Сумма подтверждённых выводов
	ReferralCode     string          `db:"referral_code"`     // Уникальный код для приглашений
	ReferredBy       *int64          `db:"referred_by"`       // ID пригласившего (nil — пришёл сам)
	ReferralCount    int             `db:"referral_count"`    // Сколько игроков привёл
	ReferralEarnings decimal.Decimal `db:"referral_earnings"` // Заработано на рефералах
	CreatedAt        time.Time       `db:"created_at"`
	LastIncome       *time.Time      `db:"last_income"` // Последнее начисление дохода
	NextIncome       *time.Time      `db:"next_income"` // Когда начислять следующий доход
}

// DisplayName возвращает отображаемое имя игрока.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return "игрок"
}

// IncomeDue сообщает, пора ли начислять доход.
// Доход положен только вкладчикам: total_deposit > 0 и наступил next_income.
func (a *Account) IncomeDue(now time.Time) bool {
	if a.NextIncome == nil || !a.TotalDeposit.IsPositive() {
		return false
	}
	return !now.Before(*a.NextIncome)
}
