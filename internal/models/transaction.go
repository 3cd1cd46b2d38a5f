// Package models — transaction.go описывает запись леджера.
// Все движения средств (депозиты, выводы, доход, бонусы) проходят через транзакции.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Виды транзакций
const (
	TxKindDeposit  = "deposit"  // Пополнение (требует подтверждения админом)
	TxKindWithdraw = "withdraw" // Вывод (требует подтверждения админом)
	TxKindIncome   = "income"   // Периодический доход
	TxKindBonus    = "bonus"    // Реферальный бонус или награда за достижение
)

// Статусы транзакций. Переходы только pending→completed и pending→cancelled.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusCancelled = "cancelled"
)

// Transaction представляет одну операцию леджера.
type Transaction struct {
	ID            int64           `db:"id"`
	AccountID     int64           `db:"account_id"`     // Владелец транзакции
	Kind          string          `db:"kind"`           // deposit / withdraw / income / bonus
	Amount        decimal.Decimal `db:"amount"`         // Сумма (всегда положительная)
	Status        string          `db:"status"`         // pending / completed / cancelled
	WalletAddress *string         `db:"wallet_address"` // Кошелёк для вывода (только withdraw)
	Description   string          `db:"description"`    // Описание для истории
	CreatedAt     time.Time       `db:"created_at"`
	CompletedAt   *time.Time      `db:"completed_at"` // Время подтверждения/отмены
}

// Resolved сообщает, обработана ли транзакция (completed или cancelled).
func (t *Transaction) Resolved() bool {
	return t.Status != TxStatusPending
}
