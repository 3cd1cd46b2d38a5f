// Package leveling повышает уровни игроков по таблице уровней.
package leveling

import (
	"context"
	"fmt"

	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

// Engine проверяет условия повышения и переводит аккаунт на новый уровень.
// Все методы работают внутри уже открытой транзакции (через store.Store).
type Engine struct {
	levels *game.LevelTable
}

func NewEngine(levels *game.LevelTable) *Engine {
	return &Engine{levels: levels}
}

// MaybePromote повышает аккаунт на один уровень, если выполнены оба условия
// следующего уровня: сумма депозитов и число рефералов. Уровень никогда
// не понижается. При повышении acc.Level обновляется на месте.
func (e *Engine) MaybePromote(ctx context.Context, st store.Store, acc *models.Account) (bool, error) {
	next, ok := e.levels.Next(acc.Level)
	if !ok {
		return false, nil
	}
	if acc.TotalDeposit.LessThan(next.MinDeposit) || acc.ReferralCount < next.RequiredReferrals {
		return false, nil
	}
	if err := st.Accounts().SetLevel(ctx, acc.ID, next.Name); err != nil {
		return false, fmt.Errorf("повышение уровня аккаунта %d: %w", acc.ID, err)
	}
	acc.Level = next.Name
	return true, nil
}

// CatchUp повышает аккаунт до максимально доступного уровня и возвращает
// события о каждом пройденном уровне. Один депозит может поднять игрока
// сразу через несколько уровней.
func (e *Engine) CatchUp(ctx context.Context, st store.Store, acc *models.Account) ([]notify.Event, error) {
	var events []notify.Event
	for {
		promoted, err := e.MaybePromote(ctx, st, acc)
		if err != nil {
			return nil, err
		}
		if !promoted {
			return events, nil
		}
		events = append(events, notify.LevelUp{TelegramID: acc.TelegramID, Level: acc.Level})
	}
}
