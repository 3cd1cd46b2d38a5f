package common

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_FormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"150", "150 USDT"},
		{"44.10", "44.1 USDT"},
		{"10.055", "10.06 USDT"},
		{"0", "0 USDT"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatAmount(decimal.RequireFromString(tc.in)))
	}
}

func Test_FormatSigned(t *testing.T) {
	require.Equal(t, "+44.1 USDT", FormatSigned(decimal.RequireFromString("44.1")))
	require.Equal(t, "-50 USDT", FormatSigned(decimal.RequireFromString("-50")))
}

func Test_PluralizeDays(t *testing.T) {
	cases := map[int]string{
		1:  "день",
		2:  "дня",
		5:  "дней",
		11: "дней",
		21: "день",
		24: "дня",
	}
	for n, want := range cases {
		require.Equal(t, want, PluralizeDays(n), "n=%d", n)
	}
}

func Test_PluralizeReferrals(t *testing.T) {
	cases := map[int]string{
		1:   "реферал",
		3:   "реферала",
		7:   "рефералов",
		12:  "рефералов",
		101: "реферал",
	}
	for n, want := range cases {
		require.Equal(t, want, PluralizeReferrals(n), "n=%d", n)
	}
}

func Test_FormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0м"},
		{-time.Hour, "0м"},
		{45 * time.Minute, "45м"},
		{3*time.Hour + 4*time.Minute, "3ч 4м"},
		{2*24*time.Hour + 3*time.Hour, "2д 3ч"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatDuration(tc.in), "in=%s", tc.in)
	}
}
