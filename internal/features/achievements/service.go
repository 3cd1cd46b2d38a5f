// Package achievements открывает достижения и начисляет награды.
package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Engine проверяет условия достижений против статистики аккаунта.
// Награда зачисляется на баланс сразу при открытии, отдельного
// шага «забрать награду» нет.
type Engine struct {
	catalog *game.AchievementCatalog
	levels  *game.LevelTable
}

func NewEngine(catalog *game.AchievementCatalog, levels *game.LevelTable) *Engine {
	return &Engine{catalog: catalog, levels: levels}
}

// CheckAll открывает все достижения, условия которых аккаунт выполняет
// впервые. Для каждого открытия: запись в account_achievements, завершённая
// bonus-транзакция на сумму награды и зачисление на баланс.
// Работает внутри уже открытой транзакции.
func (e *Engine) CheckAll(ctx context.Context, st store.Store, acc *models.Account, now time.Time) ([]notify.Event, error) {
	var events []notify.Event
	for _, a := range e.catalog.All() {
		if !a.Met(acc, e.levels) {
			continue
		}
		has, err := st.Achievements().Has(ctx, acc.ID, a.ID)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}

		unlock := &models.AchievementUnlock{
			AccountID:     acc.ID,
			AchievementID: a.ID,
			RewardClaimed: true,
		}
		if err := st.Achievements().Create(ctx, unlock); err != nil {
			return nil, fmt.Errorf("открытие достижения %s: %w", a.ID, err)
		}

		completedAt := now
		tx := &models.Transaction{
			AccountID:   acc.ID,
			Kind:        models.TxKindBonus,
			Amount:      a.Reward,
			Status:      models.TxStatusCompleted,
			Description: fmt.Sprintf("Награда за достижение «%s»", a.Name),
			CompletedAt: &completedAt,
		}
		if err := st.Transactions().Create(ctx, tx); err != nil {
			return nil, fmt.Errorf("транзакция награды за %s: %w", a.ID, err)
		}
		if err := st.Accounts().AddBalance(ctx, acc.ID, a.Reward); err != nil {
			return nil, fmt.Errorf("зачисление награды за %s: %w", a.ID, err)
		}
		acc.Balance = acc.Balance.Add(a.Reward)

		events = append(events, notify.AchievementUnlocked{
			TelegramID: acc.TelegramID,
			Name:       a.Name,
			Reward:     a.Reward,
		})
	}
	return events, nil
}

// ListWithStatus возвращает каталог достижений с флагом открытия
// для экрана достижений.
type Status struct {
	Achievement game.Achievement
	Unlocked    bool
	UnlockedAt  *time.Time
}

func (e *Engine) ListWithStatus(ctx context.Context, st store.Store, accountID int64) ([]Status, error) {
	unlocks, err := st.Achievements().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[string]*models.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		unlocked[u.AchievementID] = u
	}

	out := make([]Status, 0, len(e.catalog.All()))
	for _, a := range e.catalog.All() {
		s := Status{Achievement: a}
		if u, ok := unlocked[a.ID]; ok {
			s.Unlocked = true
			t := u.CompletedAt
			s.UnlockedAt = &t
		}
		out = append(out, s)
	}
	return out, nil
}
