package webapp

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-TOKEN"

func signedInitData(t *testing.T, telegramID int64, username string, authDate time.Time) string {
	t.Helper()
	values := url.Values{}
	values.Set("query_id", "AAH-test")
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("user", `{"id":`+strconv.FormatInt(telegramID, 10)+`,"username":"`+username+`","first_name":"Test"}`)
	values.Set("hash", SignInitData(values, testBotToken))
	return values.Encode()
}

func Test_VerifyInitData(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	t.Run("valid signature", func(t *testing.T) {
		initData := signedInitData(t, 100, "alice", now.Add(-time.Minute))

		user, err := VerifyInitData(initData, testBotToken, time.Hour, now)
		require.NoError(t, err)
		require.Equal(t, int64(100), user.ID)
		require.Equal(t, "alice", user.Username)
	})

	t.Run("stale auth_date", func(t *testing.T) {
		initData := signedInitData(t, 100, "alice", now.Add(-2*time.Hour))

		_, err := VerifyInitData(initData, testBotToken, time.Hour, now)
		require.Error(t, err)
	})

	t.Run("wrong bot token", func(t *testing.T) {
		initData := signedInitData(t, 100, "alice", now.Add(-time.Minute))

		_, err := VerifyInitData(initData, "999999:OTHER-TOKEN", time.Hour, now)
		require.Error(t, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		values := url.Values{}
		values.Set("auth_date", strconv.FormatInt(now.Add(-time.Minute).Unix(), 10))
		values.Set("user", `{"id":100,"username":"alice"}`)
		values.Set("hash", SignInitData(values, testBotToken))
		values.Set("user", `{"id":200,"username":"mallory"}`)

		_, err := VerifyInitData(values.Encode(), testBotToken, time.Hour, now)
		require.Error(t, err)
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := VerifyInitData("auth_date=1&user=%7B%22id%22%3A1%7D", testBotToken, time.Hour, now)
		require.Error(t, err)
	})
}

func Test_SessionManager(t *testing.T) {
	m := NewSessionManager(time.Hour)
	defer m.Close()

	token := m.Create(100)
	id, ok := m.Resolve(token)
	require.True(t, ok)
	require.Equal(t, int64(100), id)

	_, ok = m.Resolve("нет-такого-токена")
	require.False(t, ok)

	m.Delete(token)
	_, ok = m.Resolve(token)
	require.False(t, ok)
}

func Test_SessionManager_Expiry(t *testing.T) {
	m := NewSessionManager(-time.Minute)
	defer m.Close()

	token := m.Create(100)
	_, ok := m.Resolve(token)
	require.False(t, ok, "истёкшая сессия не должна резолвиться")
}
