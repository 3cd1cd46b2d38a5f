package shop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, balance string) (*Service, *memstore.Memstore, *models.Account) {
	t.Helper()
	st := memstore.New()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewService(st, game.DefaultUpgrades(), notify.NopDispatcher{}, logger)
	svc.WithClock(func() time.Time { return testNow })

	acc := &models.Account{
		TelegramID:   1,
		Level:        "Новичок",
		Balance:      d(balance),
		ReferralCode: "code0001",
	}
	require.NoError(t, st.Accounts().Create(context.Background(), acc))
	return svc, st, acc
}

func Test_Purchase(t *testing.T) {
	ctx := context.Background()
	svc, st, acc := newTestService(t, "200")

	t.Run("unknown upgrade", func(t *testing.T) {
		_, err := svc.Purchase(ctx, acc.ID, "teleport")
		require.ErrorIs(t, err, apperrors.ErrUpgradeNotFound)
	})

	t.Run("first level costs base price", func(t *testing.T) {
		p, err := svc.Purchase(ctx, acc.ID, "income_boost")
		require.NoError(t, err)
		require.Equal(t, 1, p.Level)
		require.True(t, p.Active)
		require.NotNil(t, p.ExpiresAt)
		require.Equal(t, testNow.AddDate(0, 0, 7), *p.ExpiresAt)

		got, err := st.Accounts().GetByID(ctx, acc.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(d("150")), "got %s", got.Balance)
	})

	t.Run("second level costs base price times two", func(t *testing.T) {
		p, err := svc.Purchase(ctx, acc.ID, "income_boost")
		require.NoError(t, err)
		require.Equal(t, 2, p.Level)

		got, err := st.Accounts().GetByID(ctx, acc.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(d("50")), "150 - 100, got %s", got.Balance)
	})

	t.Run("insufficient funds leaves everything untouched", func(t *testing.T) {
		_, err := svc.Purchase(ctx, acc.ID, "income_boost") // уровень 3 стоит 150
		require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

		p, err := st.Upgrades().Get(ctx, acc.ID, "income_boost")
		require.NoError(t, err)
		require.Equal(t, 2, p.Level)
	})
}

func Test_Purchase_MaxLevel(t *testing.T) {
	ctx := context.Background()
	svc, st, acc := newTestService(t, "10000")

	// referral_boost: максимум 3 уровня
	for i := 0; i < 3; i++ {
		_, err := svc.Purchase(ctx, acc.ID, "referral_boost")
		require.NoError(t, err)
	}
	_, err := svc.Purchase(ctx, acc.ID, "referral_boost")
	require.ErrorIs(t, err, apperrors.ErrUpgradeMaxLevel)

	p, err := st.Upgrades().Get(ctx, acc.ID, "referral_boost")
	require.NoError(t, err)
	require.Equal(t, 3, p.Level)
	require.Nil(t, p.ExpiresAt, "реферальный буст бессрочный")
}

func Test_Purchase_Consumable(t *testing.T) {
	ctx := context.Background()
	svc, _, acc := newTestService(t, "300")

	p, err := svc.Purchase(ctx, acc.ID, "instant_withdraw")
	require.NoError(t, err)
	require.NotNil(t, p.UsesLeft)
	require.Equal(t, 3, *p.UsesLeft)

	_, err = svc.Purchase(ctx, acc.ID, "instant_withdraw")
	require.ErrorIs(t, err, apperrors.ErrUpgradeMaxLevel)
}

func Test_Available(t *testing.T) {
	ctx := context.Background()
	svc, _, acc := newTestService(t, "200")

	_, err := svc.Purchase(ctx, acc.ID, "income_boost")
	require.NoError(t, err)

	items, err := svc.Available(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := map[string]Item{}
	for _, it := range items {
		byID[it.Upgrade.ID] = it
	}

	require.Equal(t, 1, byID["income_boost"].CurrentLevel)
	require.True(t, byID["income_boost"].Active)
	price, ok := byID["income_boost"].NextPrice()
	require.True(t, ok)
	require.True(t, price.Equal(d("100")))

	require.Equal(t, 0, byID["referral_boost"].CurrentLevel)
}

func Test_ExpireOld(t *testing.T) {
	ctx := context.Background()
	svc, st, acc := newTestService(t, "200")

	_, err := svc.Purchase(ctx, acc.ID, "income_boost")
	require.NoError(t, err)

	// Сдвигаем часы за срок действия буста
	svc.WithClock(func() time.Time { return testNow.AddDate(0, 0, 8) })
	require.NoError(t, svc.ExpireOld(ctx))

	active, err := st.Upgrades().ListActive(ctx, acc.ID, testNow.AddDate(0, 0, 8))
	require.NoError(t, err)
	require.Empty(t, active)
}
