// server.go — роутер и middleware веб-панели.
package webapp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zakaz-dev/crypto-empire-bot/internal/config"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/accounts"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/ledger"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/shop"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

const sessionCookie = "session"

type contextKey string

const telegramIDKey contextKey = "telegram_id"

// Server — HTTP API мини-приложения.
type Server struct {
	cfg    *config.Config
	logger *logrus.Logger

	accounts     *accounts.Service
	ledger       *ledger.Service
	shop         *shop.Service
	achievements *achievements.Engine
	st           store.Store
	levels       *game.LevelTable

	sessions *SessionManager
	mux      *chi.Mux

	// источник времени, подменяется в тестах
	now func() time.Time
}

// NewServer собирает сервер со всеми маршрутами.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	accountsSvc *accounts.Service,
	ledgerSvc *ledger.Service,
	shopSvc *shop.Service,
	achievementsEng *achievements.Engine,
	st store.Store,
	levels *game.LevelTable,
) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		accounts:     accountsSvc,
		ledger:       ledgerSvc,
		shop:         shopSvc,
		achievements: achievementsEng,
		st:           st,
		levels:       levels,
		sessions:     NewSessionManager(cfg.SessionTTL),
		mux:          chi.NewRouter(),
		now:          time.Now,
	}
	s.routes()
	return s
}

// Handler возвращает корневой http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close освобождает фоновые ресурсы сервера.
func (s *Server) Close() {
	s.sessions.Close()
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/telegram", s.handleAuth)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/user/me", s.handleMe)
			r.Get("/levels", s.handleLevels)
			r.Get("/upgrades", s.handleUpgrades)
			r.Get("/achievements", s.handleAchievements)
			r.Get("/referrals", s.handleReferrals)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/top", s.handleTop)

			r.Post("/invest", s.handleInvest)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/shop/buy", s.handleBuy)

			r.Post("/logout", s.handleLogout)
		})
	})
}

// sessionMiddleware достаёт telegram_id из cookie-сессии.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "требуется авторизация")
			return
		}
		telegramID, ok := s.sessions.Resolve(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "сессия истекла, авторизуйтесь заново")
			return
		}
		ctx := context.WithValue(r.Context(), telegramIDKey, telegramID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func telegramIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(telegramIDKey).(int64)
	return id, ok
}
