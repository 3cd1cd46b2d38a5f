// Package game содержит статическую игровую конфигурацию:
// таблицу уровней, проценты реферальных линий, каталоги апгрейдов и достижений.
// Таблицы неизменяемы и передаются в движки как зависимости,
// а не читаются из глобального состояния.
package game

import "github.com/shopspring/decimal"

// Level описывает один уровень игрока.
type Level struct {
	Name              string          // Название уровня
	MinDeposit        decimal.Decimal // Минимальная сумма депозитов для уровня
	IncomePercent     decimal.Decimal // Месячный доход, % от суммы депозитов
	RequiredReferrals int             // Сколько рефералов нужно для уровня
	ReferralBonus     decimal.Decimal // Бонус с вкладов рефералов, %
}

// LevelTable — упорядоченный список уровней (от младшего к старшему).
type LevelTable struct {
	levels []Level
	index  map[string]int
}

// NewLevelTable собирает таблицу из упорядоченного списка уровней.
func NewLevelTable(levels []Level) *LevelTable {
	idx := make(map[string]int, len(levels))
	for i, l := range levels {
		idx[l.Name] = i
	}
	return &LevelTable{levels: levels, index: idx}
}

// Get возвращает уровень по имени.
func (t *LevelTable) Get(name string) (Level, bool) {
	i, ok := t.index[name]
	if !ok {
		return Level{}, false
	}
	return t.levels[i], true
}

// Next возвращает следующий уровень после name.
// Второе значение false — name не найден или это последний уровень.
func (t *LevelTable) Next(name string) (Level, bool) {
	i, ok := t.index[name]
	if !ok || i+1 >= len(t.levels) {
		return Level{}, false
	}
	return t.levels[i+1], true
}

// First возвращает стартовый уровень.
func (t *LevelTable) First() Level {
	return t.levels[0]
}

// All возвращает копию списка уровней (для отображения).
func (t *LevelTable) All() []Level {
	out := make([]Level, len(t.levels))
	copy(out, t.levels)
	return out
}

// Len возвращает число уровней.
func (t *LevelTable) Len() int { return len(t.levels) }

// ReferralPercents — фиксированные проценты реферальных линий.
// Индекс — линия (1 — прямой реферер), значение — процент от суммы депозита.
type ReferralPercents map[int]decimal.Decimal

// MaxReferralTiers — глубина реферальной цепочки.
const MaxReferralTiers = 3

func dec(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

// DefaultLevels — каноническая таблица уровней.
// В исходных скриптах таблицы разошлись между ботом и веб-панелью;
// источником истины принята версия из конфига бота.
func DefaultLevels() *LevelTable {
	return NewLevelTable([]Level{
		{Name: "Новичок", MinDeposit: dec(50), IncomePercent: dec(10), RequiredReferrals: 3, ReferralBonus: dec(5)},
		{Name: "Трейдер", MinDeposit: dec(100), IncomePercent: dec(15), RequiredReferrals: 6, ReferralBonus: dec(6)},
		{Name: "Инвестор", MinDeposit: dec(200), IncomePercent: dec(20), RequiredReferrals: 9, ReferralBonus: dec(7)},
		{Name: "Магнат", MinDeposit: dec(500), IncomePercent: dec(25), RequiredReferrals: 12, ReferralBonus: dec(8)},
		{Name: "Император", MinDeposit: dec(1000), IncomePercent: dec(30), RequiredReferrals: 15, ReferralBonus: dec(10)},
	})
}

// DefaultReferralPercents — проценты линий: 10% / 5% / 3%.
func DefaultReferralPercents() ReferralPercents {
	return ReferralPercents{
		1: dec(10),
		2: dec(5),
		3: dec(3),
	}
}
