package leveling

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, st *memstore.Memstore, deposit string, referrals int) *models.Account {
	t.Helper()
	acc := &models.Account{
		TelegramID:    1,
		Level:         "Новичок",
		TotalDeposit:  d(deposit),
		ReferralCount: referrals,
		ReferralCode:  "code0001",
	}
	require.NoError(t, st.Accounts().Create(context.Background(), acc))
	return acc
}

func Test_MaybePromote(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(game.DefaultLevels())

	t.Run("deposit alone is not enough", func(t *testing.T) {
		st := memstore.New()
		acc := seed(t, st, "100", 3) // Трейдер требует 6 рефералов

		promoted, err := e.MaybePromote(ctx, st, acc)
		require.NoError(t, err)
		require.False(t, promoted)
		require.Equal(t, "Новичок", acc.Level)
	})

	t.Run("referrals alone are not enough", func(t *testing.T) {
		st := memstore.New()
		acc := seed(t, st, "80", 6) // Трейдер требует депозит 100

		promoted, err := e.MaybePromote(ctx, st, acc)
		require.NoError(t, err)
		require.False(t, promoted)
	})

	t.Run("both conditions met promotes one step", func(t *testing.T) {
		st := memstore.New()
		acc := seed(t, st, "100", 6)

		promoted, err := e.MaybePromote(ctx, st, acc)
		require.NoError(t, err)
		require.True(t, promoted)
		require.Equal(t, "Трейдер", acc.Level)

		got, err := st.Accounts().GetByID(ctx, acc.ID)
		require.NoError(t, err)
		require.Equal(t, "Трейдер", got.Level)
	})

	t.Run("top level has nowhere to go", func(t *testing.T) {
		st := memstore.New()
		acc := seed(t, st, "100000", 100)
		acc.Level = "Император"
		require.NoError(t, st.Accounts().SetLevel(ctx, acc.ID, "Император"))

		promoted, err := e.MaybePromote(ctx, st, acc)
		require.NoError(t, err)
		require.False(t, promoted)
	})
}

func Test_CatchUp(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(game.DefaultLevels())
	st := memstore.New()

	// Один крупный депозит поднимает через все уровни сразу
	acc := seed(t, st, "1000", 15)

	events, err := e.CatchUp(ctx, st, acc)
	require.NoError(t, err)
	require.Len(t, events, 4, "Новичок → Трейдер → Инвестор → Магнат → Император")
	require.Equal(t, "Император", acc.Level)
}
