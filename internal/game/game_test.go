package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

func Test_LevelTable(t *testing.T) {
	levels := DefaultLevels()

	t.Run("first level is the starting one", func(t *testing.T) {
		require.Equal(t, "Новичок", levels.First().Name)
	})

	t.Run("next walks in order", func(t *testing.T) {
		next, ok := levels.Next("Новичок")
		require.True(t, ok)
		require.Equal(t, "Трейдер", next.Name)

		_, ok = levels.Next("Император")
		require.False(t, ok, "последний уровень")

		_, ok = levels.Next("Барон")
		require.False(t, ok, "неизвестный уровень")
	})

	t.Run("get returns level params", func(t *testing.T) {
		lvl, ok := levels.Get("Инвестор")
		require.True(t, ok)
		require.True(t, lvl.IncomePercent.Equal(decimal.NewFromInt(20)))
		require.Equal(t, 9, lvl.RequiredReferrals)
	})
}

func Test_UpgradePriceAt(t *testing.T) {
	upgrades := DefaultUpgrades()
	u, ok := upgrades.Get("income_boost")
	require.True(t, ok)

	require.True(t, u.PriceAt(1).Equal(decimal.NewFromInt(50)))
	require.True(t, u.PriceAt(3).Equal(decimal.NewFromInt(150)))
}

func Test_AchievementMet(t *testing.T) {
	levels := DefaultLevels()
	catalog := DefaultAchievements()

	t.Run("level condition respects order", func(t *testing.T) {
		a, ok := catalog.Get("investor_level")
		require.True(t, ok)

		require.False(t, a.Met(&models.Account{Level: "Трейдер"}, levels))
		require.True(t, a.Met(&models.Account{Level: "Инвестор"}, levels))
		require.True(t, a.Met(&models.Account{Level: "Император"}, levels), "старший уровень тоже засчитывается")
	})

	t.Run("deposit threshold", func(t *testing.T) {
		a, ok := catalog.Get("first_deposit")
		require.True(t, ok)

		require.False(t, a.Met(&models.Account{Level: "Новичок", TotalDeposit: decimal.NewFromInt(49)}, levels))
		require.True(t, a.Met(&models.Account{Level: "Новичок", TotalDeposit: decimal.NewFromInt(50)}, levels))
	})

	t.Run("referral count", func(t *testing.T) {
		a, ok := catalog.Get("team")
		require.True(t, ok)

		require.False(t, a.Met(&models.Account{Level: "Новичок", ReferralCount: 2}, levels))
		require.True(t, a.Met(&models.Account{Level: "Новичок", ReferralCount: 3}, levels))
	})
}

func Test_ReferralPercents(t *testing.T) {
	p := DefaultReferralPercents()
	require.Len(t, p, MaxReferralTiers)
	require.True(t, p[1].Equal(decimal.NewFromInt(10)))
	require.True(t, p[2].Equal(decimal.NewFromInt(5)))
	require.True(t, p[3].Equal(decimal.NewFromInt(3)))
}
