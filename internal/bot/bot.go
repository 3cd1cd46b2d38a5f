// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go запускает polling и маршрутизирует сообщения по обработчикам.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/bot/filters"
	"github.com/zakaz-dev/crypto-empire-bot/internal/bot/middleware"
	"github.com/zakaz-dev/crypto-empire-bot/internal/config"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/admin"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	player *Handler
	admin  *admin.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	player *Handler,
	adminHandler *admin.Handler,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		chatFilter:  filters.NewChatFilter(),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		player:      player,
		admin:       adminHandler,
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	message := update.Message

	// Логируем входящее
	middleware.LogMessage(message)

	// Только личные сообщения
	if !b.chatFilter.CheckAccess(message) {
		return
	}
	if message.From == nil {
		return
	}

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID
	username := message.From.UserName

	// Админ-панель перехватывает свои сообщения первой
	if b.admin.HandleAdminMessage(ctx, chatID, userID, message.Text) {
		return
	}

	// Кнопки главного меню
	if b.player.HandleButton(ctx, chatID, userID, message.Text) {
		return
	}

	// Парсим команду
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		b.player.HandleUnknown(chatID)
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")
	b.routeCommand(ctx, chatID, userID, username, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, username, cmd string, args []string) {
	switch cmd {
	case "start":
		b.player.HandleStart(ctx, chatID, userID, username, args)

	case "help", "помощь":
		b.player.HandleHelp(chatID)

	case "balance", "баланс":
		b.player.HandleBalance(ctx, chatID, userID)

	case "deposit", "пополнить":
		b.player.HandleDeposit(ctx, chatID, userID, args)

	case "withdraw", "вывести":
		b.player.HandleWithdraw(ctx, chatID, userID, args)

	case "referral", "рефералы":
		b.player.HandleReferrals(ctx, chatID, userID)

	case "shop", "магазин":
		b.player.HandleShop(ctx, chatID, userID)

	case "buy", "купить":
		b.player.HandleBuy(ctx, chatID, userID, args)

	case "achievements", "достижения":
		b.player.HandleAchievements(ctx, chatID, userID)

	case "top", "топ":
		b.player.HandleTop(ctx, chatID)

	case "history", "история":
		b.player.HandleHistory(ctx, chatID, userID)

	case "stats", "статистика":
		b.player.HandleStats(ctx, chatID, userID)

	default:
		b.player.HandleUnknown(chatID)
	}
}

// CommandParser парсит команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
