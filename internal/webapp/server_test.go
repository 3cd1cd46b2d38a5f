package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zakaz-dev/crypto-empire-bot/internal/config"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/accounts"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/ledger"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/referral"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/shop"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store/memstore"
)

func newTestServer(t *testing.T) (*Server, *memstore.Memstore) {
	t.Helper()
	st := memstore.New()
	levels := game.DefaultLevels()
	upgrades := game.DefaultUpgrades()
	lvl := leveling.NewEngine(levels)
	ach := achievements.NewEngine(game.DefaultAchievements(), levels)
	ref := referral.NewEngine(game.DefaultReferralPercents(), upgrades, lvl, ach)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	nop := notify.NopDispatcher{}

	inc := income.NewEngine(st, levels, upgrades, nop, logger)
	accountsSvc := accounts.NewService(st, levels, inc, lvl, ach, nop, logger)
	limits := ledger.Limits{
		MinDeposit:         decimal.NewFromInt(50),
		MinWithdraw:        decimal.NewFromInt(10),
		MaxWithdraw:        decimal.NewFromInt(10000),
		DailyWithdrawLimit: decimal.NewFromInt(50000),
	}
	ledgerSvc := ledger.NewService(st, limits, upgrades, lvl, ach, ref, nop, logger)
	shopSvc := shop.NewService(st, upgrades, nop, logger)

	cfg := &config.Config{
		TelegramBotToken: testBotToken,
		SessionTTL:       time.Hour,
		InitDataTTL:      time.Hour,
	}

	srv := NewServer(cfg, logger, accountsSvc, ledgerSvc, shopSvc, ach, st, levels)
	t.Cleanup(srv.Close)
	return srv, st
}

// authCookie авторизуется через подписанный initData и возвращает cookie сессии.
func authCookie(t *testing.T, srv *Server, telegramID int64, username string) *http.Cookie {
	t.Helper()
	initData := signedInitData(t, telegramID, username, time.Now().Add(-time.Minute))
	body, _ := json.Marshal(map[string]string{"init_data": initData})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("cookie сессии не установлена")
	return nil
}

func doJSON(srv *Server, method, path string, cookie *http.Cookie, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func Test_Auth(t *testing.T) {
	srv, st := newTestServer(t)

	t.Run("registers new player", func(t *testing.T) {
		cookie := authCookie(t, srv, 100, "alice")
		require.NotEmpty(t, cookie.Value)

		acc, err := st.Accounts().GetByTelegramID(context.Background(), 100)
		require.NoError(t, err)
		require.Equal(t, "Новичок", acc.Level)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/auth/telegram", nil,
			map[string]string{"init_data": "auth_date=1&hash=deadbeef&user=%7B%22id%22%3A1%7D"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects empty body fields", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/auth/telegram", nil, map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_MeRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodGet, "/api/user/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/api/user/me",
		&http.Cookie{Name: sessionCookie, Value: "чужой-токен"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_MeAndLevels(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := authCookie(t, srv, 100, "alice")

	rec := doJSON(srv, http.MethodGet, "/api/user/me", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me struct {
		Data struct {
			User struct {
				Username string `json:"username"`
				Level    string `json:"level"`
			} `json:"user"`
			NextLevel *struct {
				Name string `json:"name"`
			} `json:"next_level"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "alice", me.Data.User.Username)
	require.Equal(t, "Новичок", me.Data.User.Level)
	require.NotNil(t, me.Data.NextLevel)
	require.Equal(t, "Трейдер", me.Data.NextLevel.Name)

	rec = doJSON(srv, http.MethodGet, "/api/levels", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var levels struct {
		Data []levelResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &levels))
	require.Len(t, levels.Data, 5)
	require.Equal(t, "Император", levels.Data[4].Name)
}

func Test_Invest(t *testing.T) {
	srv, st := newTestServer(t)
	cookie := authCookie(t, srv, 100, "alice")

	t.Run("creates pending deposit", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/invest", cookie,
			map[string]any{"amount": "100"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		acc, err := st.Accounts().GetByTelegramID(context.Background(), 100)
		require.NoError(t, err)
		txs, err := st.Transactions().ListByAccount(context.Background(), acc.ID, 10)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		require.Equal(t, models.TxKindDeposit, txs[0].Kind)
		require.Equal(t, models.TxStatusPending, txs[0].Status)
	})

	t.Run("below minimum is rejected", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/invest", cookie,
			map[string]any{"amount": "10"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_Withdraw(t *testing.T) {
	srv, st := newTestServer(t)
	cookie := authCookie(t, srv, 100, "alice")

	ctx := context.Background()
	acc, err := st.Accounts().GetByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, st.Accounts().AddBalance(ctx, acc.ID, decimal.NewFromInt(200)))

	t.Run("reserves balance", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/withdraw", cookie,
			map[string]any{"amount": "150", "wallet": "TWalletAddr123"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := st.Accounts().GetByID(ctx, acc.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(decimal.NewFromInt(50)), "остаток %s", got.Balance)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/withdraw", cookie,
			map[string]any{"amount": "100", "wallet": "TWalletAddr123"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short wallet fails validation", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/withdraw", cookie,
			map[string]any{"amount": "20", "wallet": "ab"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_ShopBuy(t *testing.T) {
	srv, st := newTestServer(t)
	cookie := authCookie(t, srv, 100, "alice")

	ctx := context.Background()
	acc, err := st.Accounts().GetByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, st.Accounts().AddBalance(ctx, acc.ID, decimal.NewFromInt(60)))

	rec := doJSON(srv, http.MethodPost, "/api/shop/buy", cookie,
		map[string]any{"upgrade_id": "income_boost"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(srv, http.MethodGet, "/api/upgrades", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var upgrades struct {
		Data []upgradeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upgrades))
	require.Len(t, upgrades.Data, 3)
	for _, u := range upgrades.Data {
		if u.ID == "income_boost" {
			require.Equal(t, 1, u.CurrentLevel)
			require.True(t, u.Active)
		}
	}

	t.Run("unknown upgrade", func(t *testing.T) {
		rec := doJSON(srv, http.MethodPost, "/api/shop/buy", cookie,
			map[string]any{"upgrade_id": "nope"})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_Logout(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := authCookie(t, srv, 100, "alice")

	rec := doJSON(srv, http.MethodPost, "/api/logout", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/api/user/me", cookie, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
