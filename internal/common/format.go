// Package common содержит общие утилиты, используемые во всём проекте:
// русская плюрализация, форматирование сумм и работа с временем.
package common

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// FormatAmount форматирует денежную сумму в строку вида "150 USDT".
// Дробная часть выводится максимум до двух знаков, хвостовые нули убираются.
//
// Примеры:
//
//	FormatAmount(decimal.NewFromInt(150))          → "150 USDT"
//	FormatAmount(decimal.NewFromFloat(44.10))      → "44.1 USDT"
//	FormatAmount(decimal.NewFromFloat(10.055))     → "10.06 USDT"
func FormatAmount(amount decimal.Decimal) string {
	return fmt.Sprintf("%s USDT", amount.Round(2).String())
}

// FormatSigned — как FormatAmount, но со знаком: "+44.1 USDT" / "-50 USDT".
func FormatSigned(amount decimal.Decimal) string {
	if amount.Sign() >= 0 {
		return "+" + FormatAmount(amount)
	}
	return FormatAmount(amount)
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила:
//   - 1, 21, 31 → "день"
//   - 2-4, 22-24 → "дня"
//   - 5-20, 25-30 → "дней"
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// PluralizeReferrals возвращает правильную форму слова «реферал».
//
// Примеры:
//
//	PluralizeReferrals(1)  → "реферал"
//	PluralizeReferrals(3)  → "реферала"
//	PluralizeReferrals(11) → "рефералов"
func PluralizeReferrals(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "реферал"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "реферала"
	}
	return "рефералов"
}

// MoscowLocation возвращает часовой пояс Москвы.
// Если база зон недоступна — фиксированный UTC+3.
func MoscowLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" по Москве.
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time) string {
	return t.In(MoscowLocation()).Format("02.01.2006 15:04")
}

// FormatDuration форматирует остаток времени в строку вида "2д 3ч" или "45м".
// Отрицательная и нулевая длительность → "0м".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0м"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dч %dм", hours, minutes)
	default:
		return fmt.Sprintf("%dм", minutes)
	}
}
