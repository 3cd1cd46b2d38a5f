// Package admin реализует админ-панель с парольной аутентификацией.
// models.go описывает структуры сессий и попыток входа.
package admin

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdminSession — активная сессия администратора.
type AdminSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// AdminState — состояние диалога с админом.
// Панель работает по шагам: аутентификация → клавиатура → действие.
type AdminState struct {
	State     string    // Текущее состояние
	ExpiresAt time.Time // Когда состояние истекает (5 минут)
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль
)

// SystemStats — сводная статистика системы для админ-панели.
type SystemStats struct {
	TotalUsers       int64
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	TotalIncome      decimal.Decimal
	TotalBonuses     decimal.Decimal
	PendingCount     int
}
