package accounts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*Service, *memstore.Memstore) {
	t.Helper()
	st := memstore.New()
	levels := game.DefaultLevels()
	upgrades := game.DefaultUpgrades()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	inc := income.NewEngine(st, levels, upgrades, notify.NopDispatcher{}, logger)
	lvl := leveling.NewEngine(levels)
	ach := achievements.NewEngine(game.DefaultAchievements(), levels)

	svc := NewService(st, levels, inc, lvl, ach, notify.NopDispatcher{}, logger)
	svc.WithClock(func() time.Time { return testNow })
	return svc, st
}

func Test_GetOrRegister(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	t.Run("first contact creates account", func(t *testing.T) {
		acc, created, err := svc.GetOrRegister(ctx, 100, "alice", "")
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "Новичок", acc.Level)
		require.Len(t, acc.ReferralCode, referralCodeLen)
		require.Nil(t, acc.ReferredBy)
	})

	t.Run("second contact returns the same account", func(t *testing.T) {
		acc, created, err := svc.GetOrRegister(ctx, 100, "alice", "")
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, int64(100), acc.TelegramID)
	})

	t.Run("referral code binds referrer and bumps the counter", func(t *testing.T) {
		referrer, _, err := svc.GetOrRegister(ctx, 200, "bob", "")
		require.NoError(t, err)

		acc, created, err := svc.GetOrRegister(ctx, 201, "carol", referrer.ReferralCode)
		require.NoError(t, err)
		require.True(t, created)
		require.NotNil(t, acc.ReferredBy)
		require.Equal(t, referrer.ID, *acc.ReferredBy)

		got, err := st.Accounts().GetByID(ctx, referrer.ID)
		require.NoError(t, err)
		require.Equal(t, 1, got.ReferralCount)
	})

	t.Run("unknown code registers without referrer", func(t *testing.T) {
		acc, created, err := svc.GetOrRegister(ctx, 300, "dave", "deadbeef")
		require.NoError(t, err)
		require.True(t, created)
		require.Nil(t, acc.ReferredBy)
	})

	t.Run("three referrals unlock the team achievement", func(t *testing.T) {
		referrer, _, err := svc.GetOrRegister(ctx, 400, "eve", "")
		require.NoError(t, err)

		for i := int64(0); i < 3; i++ {
			_, _, err := svc.GetOrRegister(ctx, 401+i, "friend", referrer.ReferralCode)
			require.NoError(t, err)
		}

		has, err := st.Achievements().Has(ctx, referrer.ID, "team")
		require.NoError(t, err)
		require.True(t, has)

		got, err := st.Accounts().GetByID(ctx, referrer.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(d("10")), "награда за достижение, got %s", got.Balance)
	})
}

func Test_Stats(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	next := testNow.Add(10 * 24 * time.Hour)
	acc := &models.Account{
		TelegramID:    1,
		Level:         "Инвестор",
		TotalDeposit:  d("200"),
		ReferralCount: 2,
		ReferralCode:  "code0001",
		NextIncome:    &next,
	}
	require.NoError(t, st.Accounts().Create(ctx, acc))

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)

	require.Equal(t, "Инвестор", stats.Level.Name)
	require.True(t, stats.MonthlyIncome.Equal(d("40")), "200 × 20%%, got %s", stats.MonthlyIncome)
	require.Equal(t, 10*24*time.Hour, stats.NextIncomeIn)

	require.NotNil(t, stats.NextLevel)
	require.Equal(t, "Магнат", stats.NextLevel.Name)
	require.Equal(t, 10, stats.ReferralsToNext, "Магнат требует 12 рефералов")
	require.True(t, stats.DepositToNext.Equal(d("300")), "Магнат требует депозит 500")
}

func Test_Referrals(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	referrer, _, err := svc.GetOrRegister(ctx, 1, "alice", "")
	require.NoError(t, err)
	_, _, err = svc.GetOrRegister(ctx, 2, "bob", referrer.ReferralCode)
	require.NoError(t, err)

	refs, bonuses, err := svc.Referrals(ctx, referrer.ID, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, int64(2), refs[0].TelegramID)
	require.Empty(t, bonuses)

	got, err := st.Accounts().GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ReferralCount)
}
