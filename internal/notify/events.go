// Package notify отвечает за уведомления игроков в Telegram.
//
// Движки не шлют сообщения сами: они возвращают события, а сервис
// отправляет их через Dispatcher уже ПОСЛЕ коммита транзакции БД.
// Так уведомление никогда не уходит по откаченному изменению.
package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/common"
)

// Event — уведомление для конкретного игрока.
type Event interface {
	// Recipient — telegram_id получателя.
	Recipient() int64
	// Message — готовый текст уведомления.
	Message() string
}

// IncomeReceived — начислен пассивный доход.
type IncomeReceived struct {
	TelegramID int64
	Amount     decimal.Decimal
}

func (e IncomeReceived) Recipient() int64 { return e.TelegramID }
func (e IncomeReceived) Message() string {
	return fmt.Sprintf("💰 Получен доход: %s", common.FormatAmount(e.Amount))
}

// DepositConfirmed — администратор подтвердил депозит.
type DepositConfirmed struct {
	TelegramID int64
	Amount     decimal.Decimal
}

func (e DepositConfirmed) Recipient() int64 { return e.TelegramID }
func (e DepositConfirmed) Message() string {
	return fmt.Sprintf("✅ Ваш депозит подтвержден! Баланс пополнен на %s", common.FormatAmount(e.Amount))
}

// WithdrawConfirmed — заявка на вывод подтверждена.
type WithdrawConfirmed struct {
	TelegramID int64
	Amount     decimal.Decimal
}

func (e WithdrawConfirmed) Recipient() int64 { return e.TelegramID }
func (e WithdrawConfirmed) Message() string {
	return fmt.Sprintf("✅ Ваш вывод подтвержден! %s отправлены на ваш кошелек", common.FormatAmount(e.Amount))
}

// WithdrawCancelled — заявка на вывод отменена, средства возвращены.
type WithdrawCancelled struct {
	TelegramID int64
	Amount     decimal.Decimal
}

func (e WithdrawCancelled) Recipient() int64 { return e.TelegramID }
func (e WithdrawCancelled) Message() string {
	return "❌ Вывод отменен. Средства возвращены на баланс"
}

// ReferralBonus — начислен бонус от депозита реферала.
type ReferralBonus struct {
	TelegramID int64
	Amount     decimal.Decimal
	From       string
	Tier       int
}

func (e ReferralBonus) Recipient() int64 { return e.TelegramID }
func (e ReferralBonus) Message() string {
	return fmt.Sprintf("🎁 Вы получили реферальный бонус %s от %s", common.FormatAmount(e.Amount), e.From)
}

// LevelUp — игрок достиг нового уровня.
type LevelUp struct {
	TelegramID int64
	Level      string
}

func (e LevelUp) Recipient() int64 { return e.TelegramID }
func (e LevelUp) Message() string {
	return fmt.Sprintf("🎉 Поздравляем! Вы достигли уровня %s!", e.Level)
}

// AchievementUnlocked — открыто достижение, награда зачислена.
type AchievementUnlocked struct {
	TelegramID int64
	Name       string
	Reward     decimal.Decimal
}

func (e AchievementUnlocked) Recipient() int64 { return e.TelegramID }
func (e AchievementUnlocked) Message() string {
	return fmt.Sprintf("🏆 Получено новое достижение: %s\n🎁 Награда: %s",
		e.Name, common.FormatAmount(e.Reward))
}

// UpgradePurchased — куплен или прокачан апгрейд.
type UpgradePurchased struct {
	TelegramID int64
	Name       string
	Level      int
}

func (e UpgradePurchased) Recipient() int64 { return e.TelegramID }
func (e UpgradePurchased) Message() string {
	return fmt.Sprintf("✅ Покупка успешно совершена! %s (уровень %d)", e.Name, e.Level)
}
