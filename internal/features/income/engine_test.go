package income

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEngine(st *memstore.Memstore) *Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewEngine(st, game.DefaultLevels(), game.DefaultUpgrades(), notify.NopDispatcher{}, logger)
}

func seedInvestor(t *testing.T, st *memstore.Memstore, telegramID int64, code string, due bool) *models.Account {
	t.Helper()
	acc := &models.Account{
		TelegramID:   telegramID,
		Level:        "Инвестор",
		TotalDeposit: d("200"),
		ReferralCode: code,
	}
	if due {
		last := testNow.Add(-Interval)
		next := testNow.Add(-time.Hour)
		acc.LastIncome = &last
		acc.NextIncome = &next
	}
	require.NoError(t, st.Accounts().Create(context.Background(), acc))
	return acc
}

func Test_Accrue(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine(st)
	acc := seedInvestor(t, st, 1, "code0001", true)

	// Активный буст дохода 2 уровня: +10%
	future := testNow.Add(24 * time.Hour)
	require.NoError(t, st.Upgrades().Create(ctx, &models.UpgradePurchase{
		AccountID: acc.ID,
		UpgradeID: "income_boost",
		Level:     2,
		Active:    true,
		ExpiresAt: &future,
	}))

	t.Run("amount uses level percent and boost", func(t *testing.T) {
		amount, events, err := e.Accrue(ctx, st, acc.ID, testNow)
		require.NoError(t, err)
		// 200 × 20% × 1.10 = 44
		require.True(t, amount.Equal(d("44")), "got %s", amount)
		require.Len(t, events, 1)

		got, err := st.Accounts().GetByID(ctx, acc.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(d("44")))
		require.Equal(t, testNow.Add(Interval), *got.NextIncome)

		txs, err := st.Transactions().ListByAccount(ctx, acc.ID, 10)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		require.Equal(t, models.TxKindIncome, txs[0].Kind)
		require.Equal(t, models.TxStatusCompleted, txs[0].Status)
	})

	t.Run("second accrue in same hour is a no-op", func(t *testing.T) {
		amount, events, err := e.Accrue(ctx, st, acc.ID, testNow)
		require.NoError(t, err)
		require.True(t, amount.IsZero())
		require.Empty(t, events)
	})
}

func Test_Accrue_NotDue(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine(st)

	// Часы дохода не запущены: депозит ещё не подтверждался
	acc := seedInvestor(t, st, 1, "code0001", false)

	amount, events, err := e.Accrue(ctx, st, acc.ID, testNow)
	require.NoError(t, err)
	require.True(t, amount.IsZero())
	require.Empty(t, events)
}

func Test_Sweep(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e := newTestEngine(st)

	due1 := seedInvestor(t, st, 1, "code0001", true)
	due2 := seedInvestor(t, st, 2, "code0002", true)
	idle := seedInvestor(t, st, 3, "code0003", false)

	require.NoError(t, e.Sweep(ctx, testNow))

	for _, id := range []int64{due1.ID, due2.ID} {
		got, err := st.Accounts().GetByID(ctx, id)
		require.NoError(t, err)
		// 200 × 20% без бустов
		require.True(t, got.Balance.Equal(d("40")), "account %d: got %s", id, got.Balance)
	}

	got, err := st.Accounts().GetByID(ctx, idle.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.IsZero())
}
