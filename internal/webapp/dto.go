// dto.go — структуры запросов и ответов API мини-приложения.
package webapp

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

var validate = validator.New()

func init() {
	// В ошибках валидации показываем имя json-поля, а не поля структуры
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// --- Запросы ---

type authRequest struct {
	InitData string `json:"init_data" validate:"required"`
}

type investRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Wallet string          `json:"wallet" validate:"required,min=5"`
}

type buyRequest struct {
	UpgradeID string `json:"upgrade_id" validate:"required"`
}

// --- Ответы ---

type userResponse struct {
	TelegramID       int64           `json:"telegram_id"`
	Username         string          `json:"username"`
	Level            string          `json:"level"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDeposit     decimal.Decimal `json:"total_deposit"`
	TotalWithdraw    decimal.Decimal `json:"total_withdraw"`
	ReferralCode     string          `json:"referral_code"`
	ReferralCount    int             `json:"referral_count"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toUserResponse(acc *models.Account) userResponse {
	return userResponse{
		TelegramID:       acc.TelegramID,
		Username:         acc.Username,
		Level:            acc.Level,
		Balance:          acc.Balance,
		TotalDeposit:     acc.TotalDeposit,
		TotalWithdraw:    acc.TotalWithdraw,
		ReferralCode:     acc.ReferralCode,
		ReferralCount:    acc.ReferralCount,
		ReferralEarnings: acc.ReferralEarnings,
		CreatedAt:        acc.CreatedAt,
	}
}

type meResponse struct {
	User            userResponse    `json:"user"`
	LevelInfo       levelResponse   `json:"level_info"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"`
	NextIncomeInSec int64           `json:"next_income_in_sec"`
	NextLevel       *levelResponse  `json:"next_level,omitempty"`
	ReferralsToNext int             `json:"referrals_to_next"`
	DepositToNext   decimal.Decimal `json:"deposit_to_next"`
}

type levelResponse struct {
	Name              string          `json:"name"`
	MinDeposit        decimal.Decimal `json:"min_deposit"`
	IncomePercent     decimal.Decimal `json:"income_percent"`
	RequiredReferrals int             `json:"required_referrals"`
	ReferralBonus     decimal.Decimal `json:"referral_bonus"`
}

func toLevelResponse(l game.Level) levelResponse {
	return levelResponse{
		Name:              l.Name,
		MinDeposit:        l.MinDeposit,
		IncomePercent:     l.IncomePercent,
		RequiredReferrals: l.RequiredReferrals,
		ReferralBonus:     l.ReferralBonus,
	}
}

type upgradeResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Kind         string          `json:"kind"`
	MaxLevel     int             `json:"max_level"`
	CurrentLevel int             `json:"current_level"`
	Active       bool            `json:"active"`
	UsesLeft     *int            `json:"uses_left,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	NextPrice    decimal.Decimal `json:"next_price"`
	CanBuy       bool            `json:"can_buy"`
}

type achievementResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
	Unlocked    bool            `json:"unlocked"`
	UnlockedAt  *time.Time      `json:"unlocked_at,omitempty"`
}

type referralResponse struct {
	Username     string          `json:"username"`
	Level        string          `json:"level"`
	TotalDeposit decimal.Decimal `json:"total_deposit"`
	CreatedAt    time.Time       `json:"created_at"`
}

type bonusResponse struct {
	Tier      int             `json:"tier"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type topResponse struct {
	Username      string          `json:"username"`
	Level         string          `json:"level"`
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"referral_count"`
}

// --- Утилиты ---

// bindAndValidate декодирует тело запроса и проверяет validate-теги.
// При ошибке пишет ответ сама, вызывающему достаточно return.
func bindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var value T

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&value); err != nil {
		writeError(w, http.StatusBadRequest, "некорректный JSON: "+err.Error())
		return value, false
	}

	if err := validate.Struct(value); err != nil {
		fields := make(map[string]string)
		var errs validator.ValidationErrors
		if ok := isValidationErrors(err, &errs); ok {
			for _, fe := range errs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "ошибка валидации",
			"fields": fields,
		})
		return value, false
	}
	return value, true
}

func isValidationErrors(err error, out *validator.ValidationErrors) bool {
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = errs
	}
	return ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
