package game

import "github.com/shopspring/decimal"

// Типы апгрейдов
const (
	UpgradeKindIncomeBoost   = "income_boost"   // Увеличивает доход, действует ограниченное время
	UpgradeKindReferralBoost = "referral_boost" // Увеличивает реферальный бонус, бессрочный
	UpgradeKindConsumable    = "consumable"     // Расходуемый (мгновенный вывод)
)

// Upgrade описывает покупаемый апгрейд из каталога магазина.
// Цена уровня n равна BasePrice × n.
type Upgrade struct {
	ID           string          // Идентификатор (income_boost, ...)
	Name         string          // Отображаемое название
	Description  string          // Описание для магазина
	Kind         string          // Тип эффекта
	BasePrice    decimal.Decimal // Базовая цена (уровень 1)
	MaxLevel     int             // Максимальный уровень прокачки
	EffectPerLvl decimal.Decimal // Прибавка в % за каждый уровень (boost-типы)
	DurationDays int             // Срок действия в днях (0 — бессрочный)
	Uses         int             // Использований за покупку (consumable)
}

// PriceAt возвращает цену покупки уровня level (1-индексация).
func (u Upgrade) PriceAt(level int) decimal.Decimal {
	return u.BasePrice.Mul(decimal.NewFromInt(int64(level)))
}

// UpgradeCatalog — неизменяемый каталог апгрейдов.
type UpgradeCatalog struct {
	items []Upgrade
	index map[string]int
}

// NewUpgradeCatalog собирает каталог из списка апгрейдов.
func NewUpgradeCatalog(items []Upgrade) *UpgradeCatalog {
	idx := make(map[string]int, len(items))
	for i, u := range items {
		idx[u.ID] = i
	}
	return &UpgradeCatalog{items: items, index: idx}
}

// Get возвращает апгрейд по ID.
func (c *UpgradeCatalog) Get(id string) (Upgrade, bool) {
	i, ok := c.index[id]
	if !ok {
		return Upgrade{}, false
	}
	return c.items[i], true
}

// All возвращает копию каталога.
func (c *UpgradeCatalog) All() []Upgrade {
	out := make([]Upgrade, len(c.items))
	copy(out, c.items)
	return out
}

// DefaultUpgrades — каталог магазина.
func DefaultUpgrades() *UpgradeCatalog {
	return NewUpgradeCatalog([]Upgrade{
		{
			ID:           "income_boost",
			Name:         "🚀 Ускоренный рост",
			Description:  "Увеличивает доход на 5% за уровень на 7 дней",
			Kind:         UpgradeKindIncomeBoost,
			BasePrice:    decimal.NewFromInt(50),
			MaxLevel:     5,
			EffectPerLvl: decimal.NewFromInt(5),
			DurationDays: 7,
		},
		{
			ID:           "referral_boost",
			Name:         "💎 Премиум статус",
			Description:  "Увеличивает реферальный бонус на 2% за уровень навсегда",
			Kind:         UpgradeKindReferralBoost,
			BasePrice:    decimal.NewFromInt(100),
			MaxLevel:     3,
			EffectPerLvl: decimal.NewFromInt(2),
		},
		{
			ID:          "instant_withdraw",
			Name:        "⚡️ Мгновенный вывод",
			Description: "Позволяет выводить средства без ожидания (3 раза)",
			Kind:        UpgradeKindConsumable,
			BasePrice:   decimal.NewFromInt(200),
			MaxLevel:    1,
			Uses:        3,
		},
	})
}
