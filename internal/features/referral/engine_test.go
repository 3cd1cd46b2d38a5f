package referral

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEngine() *Engine {
	levels := game.DefaultLevels()
	lvl := leveling.NewEngine(levels)
	ach := achievements.NewEngine(game.DefaultAchievements(), levels)
	return NewEngine(game.DefaultReferralPercents(), game.DefaultUpgrades(), lvl, ach)
}

func seed(t *testing.T, st *memstore.Memstore, telegramID int64, code string, referredBy *int64) *models.Account {
	t.Helper()
	acc := &models.Account{
		TelegramID:   telegramID,
		Level:        "Новичок",
		ReferralCode: code,
		ReferredBy:   referredBy,
	}
	require.NoError(t, st.Accounts().Create(context.Background(), acc))
	return acc
}

func Test_Propagate_StopsAtChainEnd(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine()

	a := seed(t, st, 1, "code000a", nil)
	b := seed(t, st, 2, "code000b", &a.ID)

	events, err := e.Propagate(ctx, st, b, 1, d("100"), testNow)
	require.NoError(t, err)
	require.Len(t, events, 1, "только одна линия")

	got, err := st.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(d("10")))
}

func Test_Propagate_ReferralBoost(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine()

	a := seed(t, st, 1, "code000a", nil)
	b := seed(t, st, 2, "code000b", &a.ID)

	// Буст 2 уровня: +4% к проценту линии
	require.NoError(t, st.Upgrades().Create(ctx, &models.UpgradePurchase{
		AccountID: a.ID,
		UpgradeID: "referral_boost",
		Level:     2,
		Active:    true,
	}))

	_, err := e.Propagate(ctx, st, b, 1, d("100"), testNow)
	require.NoError(t, err)

	got, err := st.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	// (10% + 4%) × 100 = 14
	require.True(t, got.Balance.Equal(d("14")), "got %s", got.Balance)
}

func Test_Propagate_DuplicateSourceTx(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine()

	a := seed(t, st, 1, "code000a", nil)
	b := seed(t, st, 2, "code000b", &a.ID)

	_, err := e.Propagate(ctx, st, b, 42, d("100"), testNow)
	require.NoError(t, err)

	// Повторное начисление по той же исходной транзакции упирается
	// в уникальность (referrer, source_tx, tier)
	_, err = e.Propagate(ctx, st, b, 42, d("100"), testNow)
	require.Error(t, err)
}

func Test_Propagate_BrokenChainCycle(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine()

	// Повреждённые данные: аккаунт ссылается сам на себя
	a := seed(t, st, 1, "code000a", nil)
	a.ReferredBy = &a.ID

	_, err := e.Propagate(ctx, st, a, 1, d("100"), testNow)
	require.Error(t, err)
}
