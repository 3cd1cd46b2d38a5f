// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, хранилище, игровые движки,
// сервисы, обработчики и собирает всё в объекты Bot и Web.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/bot"
	"github.com/zakaz-dev/crypto-empire-bot/internal/config"
	dbpostgres "github.com/zakaz-dev/crypto-empire-bot/internal/db/postgres"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/accounts"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/admin"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/income"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/ledger"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/referral"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/shop"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/jobs"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	storepostgres "github.com/zakaz-dev/crypto-empire-bot/internal/store/postgres"
	"github.com/zakaz-dev/crypto-empire-bot/internal/webapp"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Web       *webapp.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := dbpostgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Хранилище и игровые таблицы ===
	storage := storepostgres.NewStorage(pool)
	levels := game.DefaultLevels()
	upgrades := game.DefaultUpgrades()
	achCatalog := game.DefaultAchievements()
	percents := game.DefaultReferralPercents()

	logger := log.StandardLogger()
	dispatcher := notify.NewTelegramDispatcher(botAPI, logger)

	// === 4. Игровые движки ===
	levelingEng := leveling.NewEngine(levels)
	achievementsEng := achievements.NewEngine(achCatalog, levels)
	referralEng := referral.NewEngine(percents, upgrades, levelingEng, achievementsEng)
	incomeEng := income.NewEngine(storage, levels, upgrades, dispatcher, logger)

	// === 5. Сервисы ===
	accountsSvc := accounts.NewService(storage, levels, incomeEng, levelingEng, achievementsEng, dispatcher, logger)
	limits := ledger.Limits{
		MinDeposit:         decimal.NewFromInt(cfg.MinDeposit),
		MinWithdraw:        decimal.NewFromInt(cfg.MinWithdraw),
		MaxWithdraw:        decimal.NewFromInt(cfg.MaxWithdraw),
		DailyWithdrawLimit: decimal.NewFromInt(cfg.DailyWithdrawLimit),
	}
	ledgerSvc := ledger.NewService(storage, limits, upgrades, levelingEng, achievementsEng, referralEng, dispatcher, logger)
	shopSvc := shop.NewService(storage, upgrades, dispatcher, logger)

	adminRepo := admin.NewRepository(pool)
	adminSvc := admin.NewService(adminRepo, storage, cfg)

	// === 6. Обработчики ===
	adminHandler := admin.NewHandler(adminSvc, ledgerSvc, botAPI)
	playerHandler := bot.NewHandler(accountsSvc, ledgerSvc, shopSvc, achievementsEng, storage, botAPI)

	// === 7. Собираем бота и веб-панель ===
	b := bot.New(botAPI, cfg, playerHandler, adminHandler)
	web := webapp.NewServer(cfg, logger, accountsSvc, ledgerSvc, shopSvc, achievementsEng, storage, levels)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(incomeEng, shopSvc, adminRepo)

	return &App{
		Bot:       b,
		Web:       web,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := dbpostgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002Transactions},
		{3, migration003ReferralBonuses},
		{4, migration004Upgrades},
		{5, migration005Achievements},
		{6, migration006Admin},
	}

	for _, m := range migrations {
		if err := dbpostgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    level VARCHAR(64) NOT NULL,
    balance NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_deposit NUMERIC(20, 2) NOT NULL DEFAULT 0,
    total_withdraw NUMERIC(20, 2) NOT NULL DEFAULT 0,
    referral_code VARCHAR(32) UNIQUE NOT NULL,
    referred_by BIGINT REFERENCES accounts(id),
    referral_count INTEGER NOT NULL DEFAULT 0,
    referral_earnings NUMERIC(20, 2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_income TIMESTAMPTZ,
    next_income TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_accounts_referred_by ON accounts(referred_by);
CREATE INDEX IF NOT EXISTS idx_accounts_next_income ON accounts(next_income) WHERE next_income IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC);
`

var migration002Transactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    kind VARCHAR(32) NOT NULL,
    amount NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
    status VARCHAR(32) NOT NULL,
    wallet_address VARCHAR(255),
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(status) WHERE status = 'pending';
`

var migration003ReferralBonuses = `
CREATE TABLE IF NOT EXISTS referral_bonuses (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES accounts(id),
    referred_id BIGINT NOT NULL REFERENCES accounts(id),
    source_tx_id BIGINT NOT NULL REFERENCES transactions(id),
    tier SMALLINT NOT NULL CHECK (tier BETWEEN 1 AND 3),
    amount NUMERIC(20, 2) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (referrer_id, source_tx_id, tier)
);
CREATE INDEX IF NOT EXISTS idx_referral_bonuses_referrer ON referral_bonuses(referrer_id, created_at DESC);
`

var migration004Upgrades = `
CREATE TABLE IF NOT EXISTS account_upgrades (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    upgrade_id VARCHAR(64) NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    uses_left INTEGER,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    UNIQUE (account_id, upgrade_id)
);
CREATE INDEX IF NOT EXISTS idx_account_upgrades_active ON account_upgrades(account_id) WHERE active;
`

var migration005Achievements = `
CREATE TABLE IF NOT EXISTS account_achievements (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    achievement_id VARCHAR(64) NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (account_id, achievement_id)
);
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    last_activity TIMESTAMPTZ DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMPTZ DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
