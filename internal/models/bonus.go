package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralBonus — запись о начислении реферального бонуса.
// Создаётся не более одного раза на тройку (реферер, исходная транзакция, линия).
type ReferralBonus struct {
	ID         int64           `db:"id"`
	ReferrerID int64           `db:"referrer_id"`  // Кто получил бонус
	ReferredID int64           `db:"referred_id"`  // Чей депозит породил бонус
	SourceTxID int64           `db:"source_tx_id"` // Исходная транзакция депозита
	Tier       int             `db:"tier"`         // Линия в цепочке (1–3)
	Amount     decimal.Decimal `db:"amount"`
	CreatedAt  time.Time       `db:"created_at"`
}
