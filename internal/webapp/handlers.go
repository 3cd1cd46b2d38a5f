// handlers.go — обработчики API мини-приложения.
package webapp

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// handleAuth проверяет initData, регистрирует игрока при первом входе
// и выдаёт cookie-сессию.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	in, ok := bindAndValidate[authRequest](w, r)
	if !ok {
		return
	}

	user, err := VerifyInitData(in.InitData, s.cfg.TelegramBotToken, s.cfg.InitDataTTL, s.now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "неверные данные авторизации")
		return
	}

	// Через мини-приложение регистрация без реферального кода:
	// пригласительные ссылки ведут в бота
	acc, _, err := s.accounts.GetOrRegister(r.Context(), user.ID, user.Username, "")
	if err != nil {
		s.logger.WithError(err).WithField("telegram_id", user.ID).Error("Ошибка регистрации через веб-панель")
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	token := s.sessions.Create(acc.TelegramID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.cfg.SessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toUserResponse(acc),
	})
}

// handleLogout сбрасывает сессию.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleMe отдаёт профиль текущего игрока со сводкой прогресса.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := telegramIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	stats, err := s.accounts.Stats(r.Context(), telegramID)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения профиля")
		return
	}

	resp := meResponse{
		User:            toUserResponse(stats.Account),
		LevelInfo:       toLevelResponse(stats.Level),
		MonthlyIncome:   stats.MonthlyIncome,
		NextIncomeInSec: int64(stats.NextIncomeIn.Seconds()),
		ReferralsToNext: stats.ReferralsToNext,
		DepositToNext:   stats.DepositToNext,
	}
	if stats.NextLevel != nil {
		next := toLevelResponse(*stats.NextLevel)
		resp.NextLevel = &next
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": resp})
}

// handleLevels отдаёт таблицу уровней.
func (s *Server) handleLevels(w http.ResponseWriter, _ *http.Request) {
	levels := s.levels.All()
	out := make([]levelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, toLevelResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// handleUpgrades отдаёт витрину магазина для текущего игрока.
func (s *Server) handleUpgrades(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	items, err := s.shop.Available(r.Context(), acc.ID)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка загрузки магазина")
		return
	}

	out := make([]upgradeResponse, 0, len(items))
	for _, item := range items {
		resp := upgradeResponse{
			ID:           item.Upgrade.ID,
			Name:         item.Upgrade.Name,
			Description:  item.Upgrade.Description,
			Kind:         item.Upgrade.Kind,
			MaxLevel:     item.Upgrade.MaxLevel,
			CurrentLevel: item.CurrentLevel,
			Active:       item.Active,
			UsesLeft:     item.UsesLeft,
			ExpiresAt:    item.ExpiresAt,
		}
		resp.NextPrice, resp.CanBuy = item.NextPrice()
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// handleAchievements отдаёт каталог достижений со статусом открытия.
func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	statuses, err := s.achievements.ListWithStatus(r.Context(), s.st, acc.ID)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения достижений")
		return
	}

	out := make([]achievementResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, achievementResponse{
			ID:          st.Achievement.ID,
			Name:        st.Achievement.Name,
			Description: st.Achievement.Description,
			Reward:      st.Achievement.Reward,
			Unlocked:    st.Unlocked,
			UnlockedAt:  st.UnlockedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// handleReferrals отдаёт рефералов и историю бонусов текущего игрока.
func (s *Server) handleReferrals(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	refs, bonuses, err := s.accounts.Referrals(r.Context(), acc.ID, 20)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения рефералов")
		return
	}

	refOut := make([]referralResponse, 0, len(refs))
	for _, ref := range refs {
		refOut = append(refOut, referralResponse{
			Username:     ref.Username,
			Level:        ref.Level,
			TotalDeposit: ref.TotalDeposit,
			CreatedAt:    ref.CreatedAt,
		})
	}
	bonusOut := make([]bonusResponse, 0, len(bonuses))
	for _, b := range bonuses {
		bonusOut = append(bonusOut, bonusResponse{
			Tier:      b.Tier,
			Amount:    b.Amount,
			CreatedAt: b.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"referral_code":     acc.ReferralCode,
			"referral_count":    acc.ReferralCount,
			"referral_earnings": acc.ReferralEarnings,
			"referrals":         refOut,
			"bonuses":           bonusOut,
		},
	})
}

// handleTransactions отдаёт последние операции текущего игрока.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	txs, err := s.ledger.History(r.Context(), acc.ID, 20)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения истории")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:        tx.ID,
			Kind:      tx.Kind,
			Amount:    tx.Amount,
			Status:    tx.Status,
			CreatedAt: tx.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// handleTop отдаёт рейтинг игроков по балансу.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	top, err := s.accounts.TopByBalance(r.Context(), 10)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения рейтинга")
		return
	}

	out := make([]topResponse, 0, len(top))
	for _, acc := range top {
		out = append(out, topResponse{
			Username:      acc.Username,
			Level:         acc.Level,
			Balance:       acc.Balance,
			ReferralCount: acc.ReferralCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// handleInvest создаёт заявку на депозит.
func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	in, ok := bindAndValidate[investRequest](w, r)
	if !ok {
		return
	}

	tx, err := s.ledger.CreateDeposit(r.Context(), acc.ID, in.Amount)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка создания депозита")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transaction_id": tx.ID})
}

// handleWithdraw создаёт заявку на вывод.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	in, ok := bindAndValidate[withdrawRequest](w, r)
	if !ok {
		return
	}

	tx, err := s.ledger.CreateWithdraw(r.Context(), acc.ID, in.Amount, in.Wallet)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка создания вывода")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"transaction_id": tx.ID,
		"instant":        tx.Status == models.TxStatusCompleted,
	})
}

// handleBuy покупает апгрейд.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	in, ok := bindAndValidate[buyRequest](w, r)
	if !ok {
		return
	}

	purchase, err := s.shop.Purchase(r.Context(), acc.ID, in.UpgradeID)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка покупки")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "level": purchase.Level})
}

// requireAccount возвращает аккаунт текущего игрока из сессии.
func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	telegramID, ok := telegramIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return nil, false
	}
	acc, err := s.accounts.Get(r.Context(), telegramID)
	if err != nil {
		s.writeDomainError(w, err, "Ошибка получения аккаунта")
		return nil, false
	}
	return acc, true
}

// writeDomainError переводит доменные ошибки в HTTP-статусы.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "пользователь не найден")
	case errors.Is(err, apperrors.ErrInvalidAmount),
		errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrWithdrawLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrUpgradeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrUpgradeMaxLevel):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.WithFields(logrus.Fields{"error": err}).Error(logMsg)
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}
