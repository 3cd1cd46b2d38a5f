// Package admin — handlers.go обрабатывает взаимодействие с админ-панелью.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: аутентификация → клавиатура → просмотр заявок → подтвердить/отменить.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/common"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/ledger"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
)

// Кнопки админ-клавиатуры
const (
	btnPending = "📋 Заявки"
	btnStats   = "📊 Статистика"
	btnLogout  = "🚪 Выйти"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	ledger  *ledger.Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, ledgerSvc *ledger.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service: service,
		ledger:  ledgerSvc,
		bot:     bot,
	}
}

// HandleAdminMessage обрабатывает любое сообщение администратора в DM.
// Возвращает true, если сообщение было адресовано админ-панели.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID int64, userID int64, text string) bool {
	if !h.service.cfg.IsAdmin(userID) {
		return false
	}

	// Обрабатываем состояние ожидания пароля
	state := h.service.GetState(userID)
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	// Команды ниже требуют активной сессии
	wantsPanel := h.isPanelCommand(text)
	if !h.service.HasActiveSession(ctx, userID) {
		if !wantsPanel {
			return false
		}
		h.sendMessage(chatID, "🔐 Введите пароль для доступа к админ-панели:")
		h.service.SetState(userID, StateAwaitingPassword)
		return true
	}

	// Обновляем активность сессии
	h.service.repo.UpdateActivity(ctx, userID)

	switch {
	case text == btnPending:
		h.showPending(ctx, chatID)
		return true
	case text == btnStats:
		h.showStats(ctx, chatID)
		return true
	case text == btnLogout:
		h.service.Logout(ctx, userID)
		h.sendMessage(chatID, "✅ Вы вышли из админ-панели")
		return true
	case strings.HasPrefix(text, "подтвердить "):
		h.resolvePending(ctx, chatID, strings.TrimPrefix(text, "подтвердить "), true)
		return true
	case strings.HasPrefix(text, "отменить "):
		h.resolvePending(ctx, chatID, strings.TrimPrefix(text, "отменить "), false)
		return true
	case wantsPanel:
		h.showKeyboard(chatID)
		return true
	}

	return false
}

func (h *Handler) isPanelCommand(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "админ", "панель", "/admin":
		return true
	}
	return false
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID int64, userID int64, password string) {
	err := h.service.VerifyPassword(ctx, userID, password)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
		h.service.ClearState(userID)
		return
	}

	h.service.ClearState(userID)
	h.sendMessage(chatID, "✅ Аутентификация успешна!")
	h.showKeyboard(chatID)
}

// showKeyboard отображает клавиатуру админ-панели.
func (h *Handler) showKeyboard(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnPending),
			tgbotapi.NewKeyboardButton(btnStats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnLogout),
		),
	)

	msg := tgbotapi.NewMessage(chatID, "✅ Админ-панель открыта")
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки клавиатуры")
	}
}

// showPending выводит все необработанные заявки.
func (h *Handler) showPending(ctx context.Context, chatID int64) {
	pending, err := h.ledger.Pending(ctx)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить заявки")
		log.WithError(err).Error("Ошибка получения заявок")
		return
	}
	if len(pending) == 0 {
		h.sendMessage(chatID, "Необработанных заявок нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Необработанные заявки:\n\n")
	for _, tx := range pending {
		sb.WriteString(fmt.Sprintf("#%d %s %s — аккаунт %d, %s\n",
			tx.ID, kindLabel(tx.Kind), common.FormatAmount(tx.Amount),
			tx.AccountID, common.FormatDateTime(tx.CreatedAt)))
		if tx.WalletAddress != nil {
			sb.WriteString(fmt.Sprintf("   кошелёк: %s\n", *tx.WalletAddress))
		}
	}
	sb.WriteString("\nОтправьте «подтвердить N» или «отменить N»")

	h.sendMessage(chatID, sb.String())
}

// resolvePending подтверждает или отменяет заявку по номеру.
func (h *Handler) resolvePending(ctx context.Context, chatID int64, rawID string, approve bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		h.sendMessage(chatID, "❌ Неверный номер заявки")
		return
	}

	if approve {
		_, err = h.ledger.Approve(ctx, id)
	} else {
		_, err = h.ledger.Cancel(ctx, id)
	}

	switch {
	case err == nil:
		if approve {
			h.sendMessage(chatID, "✅ Транзакция подтверждена")
		} else {
			h.sendMessage(chatID, "✅ Транзакция отменена")
		}
	case errors.Is(err, apperrors.ErrNotFound):
		h.sendMessage(chatID, "❌ Заявка не найдена")
	case errors.Is(err, apperrors.ErrInvalidState):
		h.sendMessage(chatID, "❌ Заявка уже обработана")
	default:
		h.sendMessage(chatID, "❌ Ошибка при обработке транзакции")
		log.WithError(err).WithField("tx_id", id).Error("Ошибка обработки заявки")
	}
}

// showStats выводит сводку по системе.
func (h *Handler) showStats(ctx context.Context, chatID int64) {
	stats, err := h.service.SystemStats(ctx)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось собрать статистику")
		log.WithError(err).Error("Ошибка сбора статистики")
		return
	}

	text := fmt.Sprintf(
		"📊 Статистика системы\n\n"+
			"👥 Игроков: %d\n"+
			"💰 Всего депозитов: %s\n"+
			"💸 Всего выводов: %s\n"+
			"📈 Всего доходов: %s\n"+
			"🎁 Всего бонусов: %s\n"+
			"📋 Ожидают обработки: %d",
		stats.TotalUsers,
		common.FormatAmount(stats.TotalDeposits),
		common.FormatAmount(stats.TotalWithdrawals),
		common.FormatAmount(stats.TotalIncome),
		common.FormatAmount(stats.TotalBonuses),
		stats.PendingCount,
	)
	h.sendMessage(chatID, text)
}

func kindLabel(kind string) string {
	switch kind {
	case models.TxKindDeposit:
		return "депозит"
	case models.TxKindWithdraw:
		return "вывод"
	default:
		return kind
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
