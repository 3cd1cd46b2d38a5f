// handlers.go — обработчики игровых команд в личных сообщениях.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/common"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/accounts"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/ledger"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/shop"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Кнопки главного меню
const (
	btnBalance      = "💰 Баланс"
	btnStats        = "📊 Статистика"
	btnReferrals    = "👥 Рефералы"
	btnShop         = "🏪 Магазин"
	btnAchievements = "🏆 Достижения"
	btnHistory      = "📜 История"
	btnTop          = "🔝 Топ"
	btnHelp         = "❓ Помощь"
)

const welcomeMessage = `👋 Добро пожаловать в Crypto Empire Quest!

🎮 Это игра, где вы можете:
• Строить свою крипто-империю
• Зарабатывать пассивный доход
• Приглашать друзей и получать бонусы
• Покупать апгрейды и улучшения

💰 Начните с минимального депозита в 50 USDT и начните свой путь к успеху!

📱 Используйте меню ниже для навигации.`

const helpMessage = `📚 Список доступных команд:

/start - Начать игру
/help - Показать это сообщение
/balance - Проверить баланс
/deposit <сумма> - Пополнить баланс
/withdraw <сумма> <кошелёк> - Вывести средства
/referral - Реферальная программа
/shop - Магазин апгрейдов
/buy <номер> - Купить апгрейд
/achievements - Достижения
/history - История операций
/top - Топ игроков
/stats - Статистика

💡 Используйте кнопки меню для удобной навигации.`

// Handler обрабатывает игровые команды.
type Handler struct {
	accounts     *accounts.Service
	ledger       *ledger.Service
	shop         *shop.Service
	achievements *achievements.Engine
	st           store.Store
	bot          *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик игровых команд.
func NewHandler(
	accountsSvc *accounts.Service,
	ledgerSvc *ledger.Service,
	shopSvc *shop.Service,
	achievementsEng *achievements.Engine,
	st store.Store,
	bot *tgbotapi.BotAPI,
) *Handler {
	return &Handler{
		accounts:     accountsSvc,
		ledger:       ledgerSvc,
		shop:         shopSvc,
		achievements: achievementsEng,
		st:           st,
		bot:          bot,
	}
}

// HandleButton обрабатывает нажатие кнопки главного меню.
// Возвращает true, если текст оказался кнопкой.
func (h *Handler) HandleButton(ctx context.Context, chatID, userID int64, text string) bool {
	switch text {
	case btnBalance:
		h.HandleBalance(ctx, chatID, userID)
	case btnStats:
		h.HandleStats(ctx, chatID, userID)
	case btnReferrals:
		h.HandleReferrals(ctx, chatID, userID)
	case btnShop:
		h.HandleShop(ctx, chatID, userID)
	case btnAchievements:
		h.HandleAchievements(ctx, chatID, userID)
	case btnHistory:
		h.HandleHistory(ctx, chatID, userID)
	case btnTop:
		h.HandleTop(ctx, chatID)
	case btnHelp:
		h.HandleHelp(chatID)
	default:
		return false
	}
	return true
}

// HandleStart регистрирует игрока (или приветствует вернувшегося).
// Аргумент — реферальный код из ссылки-приглашения.
func (h *Handler) HandleStart(ctx context.Context, chatID, userID int64, username string, args []string) {
	refCode := ""
	if len(args) > 0 {
		refCode = strings.TrimSpace(args[0])
	}

	acc, created, err := h.accounts.GetOrRegister(ctx, userID, username, refCode)
	switch {
	case errors.Is(err, apperrors.ErrSelfReferral):
		h.sendMessage(chatID, "❌ Нельзя использовать собственный реферальный код")
		return
	case err != nil:
		h.sendMessage(chatID, "❌ Не удалось начать игру, попробуйте позже")
		log.WithError(err).WithField("user_id", userID).Error("Ошибка регистрации")
		return
	}

	if created {
		h.sendWithKeyboard(chatID, welcomeMessage)
		return
	}
	h.sendWithKeyboard(chatID, fmt.Sprintf("👋 С возвращением, %s! Ваш баланс: %s",
		acc.DisplayName(), common.FormatAmount(acc.Balance)))
}

// HandleHelp выводит список команд.
func (h *Handler) HandleHelp(chatID int64) {
	h.sendWithKeyboard(chatID, helpMessage)
}

// HandleUnknown — ответ на нераспознанный текст.
func (h *Handler) HandleUnknown(chatID int64) {
	h.sendMessage(chatID, "🤔 Не понимаю. Используйте кнопки меню или /help")
}

// HandleBalance показывает финансовое состояние аккаунта.
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}

	text := fmt.Sprintf(
		"💰 Ваш баланс\n\n"+
			"🏅 Уровень: %s\n"+
			"💵 Доступно: %s\n"+
			"📥 Всего вложено: %s\n"+
			"📤 Всего выведено: %s\n"+
			"🎁 Заработано на рефералах: %s",
		acc.Level,
		common.FormatAmount(acc.Balance),
		common.FormatAmount(acc.TotalDeposit),
		common.FormatAmount(acc.TotalWithdraw),
		common.FormatAmount(acc.ReferralEarnings),
	)
	h.sendMessage(chatID, text)
}

// HandleDeposit создаёт заявку на пополнение.
func (h *Handler) HandleDeposit(ctx context.Context, chatID, userID int64, args []string) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}
	if len(args) == 0 {
		h.sendMessage(chatID, "💎 Введите сумму для пополнения (минимум 50 USDT):\nпополнить <сумма>")
		return
	}

	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		h.sendMessage(chatID, "❌ Неверная сумма. Минимальный депозит: 50 USDT")
		return
	}

	tx, err := h.ledger.CreateDeposit(ctx, acc.ID, amount)
	switch {
	case errors.Is(err, apperrors.ErrInvalidAmount):
		h.sendMessage(chatID, "❌ Неверная сумма. Минимальный депозит: 50 USDT")
		return
	case err != nil:
		h.sendMessage(chatID, "❌ Не удалось создать заявку, попробуйте позже")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка создания депозита")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf(
		"✅ Депозит успешно создан! Ожидайте подтверждения.\n\n📋 Заявка #%d на %s",
		tx.ID, common.FormatAmount(tx.Amount)))
}

// HandleWithdraw создаёт заявку на вывод.
func (h *Handler) HandleWithdraw(ctx context.Context, chatID, userID int64, args []string) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}
	if len(args) < 2 {
		h.sendMessage(chatID, "💰 Введите сумму и адрес кошелька:\nвывести <сумма> <кошелёк>")
		return
	}

	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		h.sendMessage(chatID, "❌ Неверная сумма или недостаточно средств")
		return
	}
	wallet := strings.Join(args[1:], " ")

	tx, err := h.ledger.CreateWithdraw(ctx, acc.ID, amount, wallet)
	switch {
	case errors.Is(err, apperrors.ErrInvalidAmount),
		errors.Is(err, apperrors.ErrInsufficientFunds):
		h.sendMessage(chatID, "❌ Неверная сумма или недостаточно средств")
		return
	case errors.Is(err, apperrors.ErrWithdrawLimit):
		h.sendMessage(chatID, "❌ Превышен дневной лимит на вывод, попробуйте завтра")
		return
	case err != nil:
		h.sendMessage(chatID, "❌ Не удалось создать заявку, попробуйте позже")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка создания вывода")
		return
	}

	if tx.Status == models.TxStatusCompleted {
		h.sendMessage(chatID, fmt.Sprintf(
			"⚡️ Мгновенный вывод! %s отправлены на %s", common.FormatAmount(tx.Amount), wallet))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf(
		"✅ Заявка на вывод создана! Ожидайте обработки (24-72 часа).\n\n📋 Заявка #%d на %s",
		tx.ID, common.FormatAmount(tx.Amount)))
}

// HandleReferrals показывает реферальную программу.
func (h *Handler) HandleReferrals(ctx context.Context, chatID, userID int64) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}

	refs, bonuses, err := h.accounts.Referrals(ctx, acc.ID, 5)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить данные, попробуйте позже")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка получения рефералов")
		return
	}

	var sb strings.Builder
	sb.WriteString("🔗 Ваша реферальная ссылка:\n")
	sb.WriteString(fmt.Sprintf("https://t.me/%s?start=%s\n\n", h.bot.Self.UserName, acc.ReferralCode))
	sb.WriteString("📊 Статистика рефералов:\n")
	sb.WriteString(fmt.Sprintf("👥 Приглашено: %d %s\n", acc.ReferralCount, common.PluralizeReferrals(acc.ReferralCount)))
	sb.WriteString(fmt.Sprintf("💰 Заработано: %s\n", common.FormatAmount(acc.ReferralEarnings)))

	if len(refs) > 0 {
		sb.WriteString("\nВаши рефералы:\n")
		for _, r := range refs {
			sb.WriteString(fmt.Sprintf("• %s — %s, вложено %s\n",
				r.DisplayName(), r.Level, common.FormatAmount(r.TotalDeposit)))
		}
	}
	if len(bonuses) > 0 {
		sb.WriteString("\nПоследние бонусы:\n")
		for _, b := range bonuses {
			sb.WriteString(fmt.Sprintf("• %s (%d линия) — %s\n",
				common.FormatSigned(b.Amount), b.Tier, common.FormatDateTime(b.CreatedAt)))
		}
	}
	sb.WriteString("\n💡 Бонусы: 10% / 5% / 3% с депозитов трёх линий")

	h.sendMessage(chatID, sb.String())
}

// HandleShop показывает витрину магазина.
func (h *Handler) HandleShop(ctx context.Context, chatID, userID int64) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}

	items, err := h.shop.Available(ctx, acc.ID)
	if err != nil {
		h.sendMessage(chatID, "❌ Магазин временно недоступен")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка загрузки магазина")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏪 Магазин апгрейдов\n\n")
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. %s\n%s\n", i+1, item.Upgrade.Name, item.Upgrade.Description))
		if item.CurrentLevel > 0 {
			sb.WriteString(fmt.Sprintf("   Уровень: %d/%d", item.CurrentLevel, item.Upgrade.MaxLevel))
			if item.UsesLeft != nil {
				sb.WriteString(fmt.Sprintf(", осталось использований: %d", *item.UsesLeft))
			}
			if item.ExpiresAt != nil {
				sb.WriteString(fmt.Sprintf(", действует до %s", common.FormatDateTime(*item.ExpiresAt)))
			}
			sb.WriteString("\n")
		}
		if price, canBuy := item.NextPrice(); canBuy {
			sb.WriteString(fmt.Sprintf("   Цена: %s\n\n", common.FormatAmount(price)))
		} else {
			sb.WriteString("   Куплен максимальный уровень\n\n")
		}
	}
	sb.WriteString(fmt.Sprintf("💰 Ваш баланс: %s\n", common.FormatAmount(acc.Balance)))
	sb.WriteString("Для покупки отправьте: купить <номер>")

	h.sendMessage(chatID, sb.String())
}

// HandleBuy покупает апгрейд по номеру из витрины или по ID.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64, args []string) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}
	if len(args) == 0 {
		h.sendMessage(chatID, "🏪 Укажите номер товара: купить <номер>")
		return
	}

	upgradeID := args[0]
	if n, err := strconv.Atoi(args[0]); err == nil {
		items, err := h.shop.Available(ctx, acc.ID)
		if err != nil {
			h.sendMessage(chatID, "❌ Магазин временно недоступен")
			return
		}
		if n < 1 || n > len(items) {
			h.sendMessage(chatID, "❌ Такого товара нет в магазине")
			return
		}
		upgradeID = items[n-1].Upgrade.ID
	}

	purchase, err := h.shop.Purchase(ctx, acc.ID, upgradeID)
	switch {
	case errors.Is(err, apperrors.ErrUpgradeNotFound):
		h.sendMessage(chatID, "❌ Такого товара нет в магазине")
		return
	case errors.Is(err, apperrors.ErrUpgradeMaxLevel):
		h.sendMessage(chatID, "❌ Апгрейд уже максимального уровня")
		return
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		h.sendMessage(chatID, "❌ Недостаточно средств на балансе")
		return
	case err != nil:
		h.sendMessage(chatID, "❌ Не удалось совершить покупку, попробуйте позже")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка покупки")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("✅ Покупка успешна! Уровень апгрейда: %d", purchase.Level))
}

// HandleAchievements показывает достижения с их статусом.
func (h *Handler) HandleAchievements(ctx context.Context, chatID, userID int64) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}

	statuses, err := h.achievements.ListWithStatus(ctx, h.st, acc.ID)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить достижения")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка получения достижений")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Достижения\n\n")
	for _, s := range statuses {
		mark := "🔒"
		if s.Unlocked {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s\n   %s\n",
			mark, s.Achievement.Name, common.FormatSigned(s.Achievement.Reward), s.Achievement.Description))
		if s.UnlockedAt != nil {
			sb.WriteString(fmt.Sprintf("   Открыто: %s\n", common.FormatDateTime(*s.UnlockedAt)))
		}
		sb.WriteString("\n")
	}
	h.sendMessage(chatID, sb.String())
}

// HandleTop показывает рейтинги игроков.
func (h *Handler) HandleTop(ctx context.Context, chatID int64) {
	byBalance, err := h.accounts.TopByBalance(ctx, 10)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить рейтинг")
		log.WithError(err).Error("Ошибка получения топа")
		return
	}
	byReferrals, err := h.accounts.TopByReferrals(ctx, 5)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить рейтинг")
		log.WithError(err).Error("Ошибка получения топа")
		return
	}

	medals := []string{"🥇", "🥈", "🥉"}
	place := func(i int) string {
		if i < len(medals) {
			return medals[i]
		}
		return fmt.Sprintf("%d.", i+1)
	}

	var sb strings.Builder
	sb.WriteString("🔝 Топ по балансу:\n")
	for i, a := range byBalance {
		sb.WriteString(fmt.Sprintf("%s %s — %s (%s)\n",
			place(i), a.DisplayName(), common.FormatAmount(a.Balance), a.Level))
	}
	sb.WriteString("\n👥 Топ по рефералам:\n")
	for i, a := range byReferrals {
		sb.WriteString(fmt.Sprintf("%s %s — %d %s\n",
			place(i), a.DisplayName(), a.ReferralCount, common.PluralizeReferrals(a.ReferralCount)))
	}
	h.sendMessage(chatID, sb.String())
}

// HandleHistory показывает последние операции.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	acc, ok := h.requireAccount(ctx, chatID, userID)
	if !ok {
		return
	}

	txs, err := h.ledger.History(ctx, acc.ID, 10)
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить историю")
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка получения истории")
		return
	}
	if len(txs) == 0 {
		h.sendMessage(chatID, "📜 История операций пуста")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Последние операции:\n\n")
	for _, tx := range txs {
		amount := tx.Amount
		if tx.Kind == models.TxKindWithdraw {
			amount = amount.Neg()
		}
		sb.WriteString(fmt.Sprintf("%s %s %s — %s\n   %s\n",
			txIcon(tx.Kind), common.FormatSigned(amount), txStatusLabel(tx.Status),
			common.FormatDateTime(tx.CreatedAt), tx.Description))
	}
	h.sendMessage(chatID, sb.String())
}

// HandleStats показывает прогресс по уровню и прогноз дохода.
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64) {
	stats, err := h.accounts.Stats(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.sendMessage(chatID, "Сначала отправьте /start, чтобы начать игру")
		return
	}
	if err != nil {
		h.sendMessage(chatID, "❌ Не удалось получить статистику")
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения статистики")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Ваша статистика\n\n")
	sb.WriteString(fmt.Sprintf("🏅 Уровень: %s (доход %s%% в месяц)\n",
		stats.Level.Name, stats.Level.IncomePercent.String()))
	sb.WriteString(fmt.Sprintf("💵 Баланс: %s\n", common.FormatAmount(stats.Account.Balance)))
	sb.WriteString(fmt.Sprintf("📥 Всего вложено: %s\n", common.FormatAmount(stats.Account.TotalDeposit)))
	sb.WriteString(fmt.Sprintf("📈 Прогноз дохода: %s\n", common.FormatAmount(stats.MonthlyIncome)))

	if stats.NextIncomeIn > 0 {
		sb.WriteString(fmt.Sprintf("⏳ До начисления дохода: %s\n", common.FormatDuration(stats.NextIncomeIn)))
	} else if stats.Account.NextIncome == nil {
		sb.WriteString("⏳ Доход начнёт начисляться после первого депозита\n")
	}

	if stats.NextLevel != nil {
		sb.WriteString(fmt.Sprintf("\n🎯 Следующий уровень: %s\n", stats.NextLevel.Name))
		if stats.DepositToNext.IsPositive() {
			sb.WriteString(fmt.Sprintf("   Осталось вложить: %s\n", common.FormatAmount(stats.DepositToNext)))
		}
		if stats.ReferralsToNext > 0 {
			sb.WriteString(fmt.Sprintf("   Осталось пригласить: %d %s\n",
				stats.ReferralsToNext, common.PluralizeReferrals(stats.ReferralsToNext)))
		}
	} else {
		sb.WriteString("\n👑 Вы достигли максимального уровня!\n")
	}
	h.sendMessage(chatID, sb.String())
}

// requireAccount возвращает аккаунт игрока или просит отправить /start.
func (h *Handler) requireAccount(ctx context.Context, chatID, userID int64) (*models.Account, bool) {
	acc, err := h.accounts.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.sendMessage(chatID, "Сначала отправьте /start, чтобы начать игру")
		return nil, false
	}
	if err != nil {
		h.sendMessage(chatID, "❌ Что-то пошло не так, попробуйте позже")
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения аккаунта")
		return nil, false
	}
	return acc, true
}

func txIcon(kind string) string {
	switch kind {
	case models.TxKindDeposit:
		return "📥"
	case models.TxKindWithdraw:
		return "📤"
	case models.TxKindIncome:
		return "📈"
	case models.TxKindBonus:
		return "🎁"
	default:
		return "•"
	}
}

func txStatusLabel(status string) string {
	switch status {
	case models.TxStatusPending:
		return "(ожидает)"
	case models.TxStatusCancelled:
		return "(отменена)"
	default:
		return ""
	}
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBalance),
			tgbotapi.NewKeyboardButton(btnStats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnReferrals),
			tgbotapi.NewKeyboardButton(btnShop),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAchievements),
			tgbotapi.NewKeyboardButton(btnHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnTop),
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainKeyboard()
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
