package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func Test_InTxRollback(t *testing.T) {
	ctx := context.Background()
	st := New()

	acc := &models.Account{TelegramID: 1, Level: "Новичок", ReferralCode: "code0001"}
	require.NoError(t, st.Accounts().Create(ctx, acc))

	boom := errors.New("boom")
	err := st.InTx(ctx, func(s store.Store) error {
		if err := s.Accounts().AddBalance(ctx, acc.ID, d("100")); err != nil {
			return err
		}
		if err := s.Transactions().Create(ctx, &models.Transaction{
			AccountID: acc.ID,
			Kind:      models.TxKindBonus,
			Amount:    d("100"),
			Status:    models.TxStatusCompleted,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.IsZero(), "изменения откатились")

	txs, err := st.Transactions().ListByAccount(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Empty(t, txs)
}

func Test_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	st := New()

	require.NoError(t, st.Accounts().Create(ctx, &models.Account{
		TelegramID: 1, Level: "Новичок", ReferralCode: "code0001",
	}))

	t.Run("duplicate telegram id", func(t *testing.T) {
		err := st.Accounts().Create(ctx, &models.Account{
			TelegramID: 1, Level: "Новичок", ReferralCode: "code0002",
		})
		require.Error(t, err)
	})

	t.Run("duplicate referral code", func(t *testing.T) {
		err := st.Accounts().Create(ctx, &models.Account{
			TelegramID: 2, Level: "Новичок", ReferralCode: "code0001",
		})
		require.Error(t, err)
	})
}

func Test_SubBalanceGuard(t *testing.T) {
	ctx := context.Background()
	st := New()

	acc := &models.Account{TelegramID: 1, Level: "Новичок", ReferralCode: "code0001", Balance: d("50")}
	require.NoError(t, st.Accounts().Create(ctx, acc))

	err := st.Accounts().SubBalance(ctx, acc.ID, d("60"))
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	got, err := st.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(d("50")))
}

func Test_ResolveTransitions(t *testing.T) {
	ctx := context.Background()
	st := New()

	acc := &models.Account{TelegramID: 1, Level: "Новичок", ReferralCode: "code0001"}
	require.NoError(t, st.Accounts().Create(ctx, acc))

	tx := &models.Transaction{AccountID: acc.ID, Kind: models.TxKindDeposit, Amount: d("50"), Status: models.TxStatusPending}
	require.NoError(t, st.Transactions().Create(ctx, tx))

	now := tx.CreatedAt
	require.NoError(t, st.Transactions().Resolve(ctx, tx.ID, models.TxStatusCompleted, now))

	err := st.Transactions().Resolve(ctx, tx.ID, models.TxStatusCancelled, now)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}
