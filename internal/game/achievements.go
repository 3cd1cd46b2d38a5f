package game

import (
	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// Типы условий достижения
const (
	CondTotalDeposit     = "total_deposit"     // Сумма депозитов >= значения
	CondTotalWithdraw    = "total_withdraw"    // Сумма выводов >= значения
	CondReferralCount    = "referral_count"    // Количество рефералов >= значения
	CondReferralEarnings = "referral_earnings" // Заработок с рефералов >= значения
	CondLevel            = "level"             // Достигнут указанный уровень
)

// Condition — одно типизированное условие достижения.
type Condition struct {
	Type   string
	Amount decimal.Decimal // Порог для числовых условий
	Count  int             // Порог для счётчиков
	Level  string          // Имя уровня для CondLevel
}

// Achievement описывает достижение из каталога.
// Достижение открывается, когда ВСЕ условия выполнены.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Conditions  []Condition
	Reward      decimal.Decimal // Награда на баланс
}

// Met проверяет условия достижения против текущей статистики аккаунта.
func (a Achievement) Met(acc *models.Account, levels *LevelTable) bool {
	for _, c := range a.Conditions {
		switch c.Type {
		case CondTotalDeposit:
			if acc.TotalDeposit.LessThan(c.Amount) {
				return false
			}
		case CondTotalWithdraw:
			if acc.TotalWithdraw.LessThan(c.Amount) {
				return false
			}
		case CondReferralCount:
			if acc.ReferralCount < c.Count {
				return false
			}
		case CondReferralEarnings:
			if acc.ReferralEarnings.LessThan(c.Amount) {
				return false
			}
		case CondLevel:
			// «Достигнут уровень» — текущий уровень не ниже требуемого
			cur, okCur := levels.index[acc.Level]
			want, okWant := levels.index[c.Level]
			if !okCur || !okWant || cur < want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// AchievementCatalog — неизменяемый каталог достижений.
type AchievementCatalog struct {
	items []Achievement
	index map[string]int
}

// NewAchievementCatalog собирает каталог достижений.
func NewAchievementCatalog(items []Achievement) *AchievementCatalog {
	idx := make(map[string]int, len(items))
	for i, a := range items {
		idx[a.ID] = i
	}
	return &AchievementCatalog{items: items, index: idx}
}

// Get возвращает достижение по ID.
func (c *AchievementCatalog) Get(id string) (Achievement, bool) {
	i, ok := c.index[id]
	if !ok {
		return Achievement{}, false
	}
	return c.items[i], true
}

// All возвращает копию каталога.
func (c *AchievementCatalog) All() []Achievement {
	out := make([]Achievement, len(c.items))
	copy(out, c.items)
	return out
}

// DefaultAchievements — каталог достижений.
func DefaultAchievements() *AchievementCatalog {
	return NewAchievementCatalog([]Achievement{
		{
			ID:          "first_deposit",
			Name:        "🎯 Первые шаги",
			Description: "Сделайте первый депозит",
			Conditions:  []Condition{{Type: CondTotalDeposit, Amount: decimal.NewFromInt(50)}},
			Reward:      decimal.NewFromInt(5),
		},
		{
			ID:          "team",
			Name:        "👥 Команда",
			Description: "Пригласите 3 друзей",
			Conditions:  []Condition{{Type: CondReferralCount, Count: 3}},
			Reward:      decimal.NewFromInt(10),
		},
		{
			ID:          "investor_level",
			Name:        "💎 Инвестор",
			Description: "Достигните уровня Инвестор",
			Conditions:  []Condition{{Type: CondLevel, Level: "Инвестор"}},
			Reward:      decimal.NewFromInt(20),
		},
	})
}
