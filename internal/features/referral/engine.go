// Package referral начисляет бонусы по реферальной цепочке.
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/achievements"
	"github.com/zakaz-dev/crypto-empire-bot/internal/features/leveling"
	"github.com/zakaz-dev/crypto-empire-bot/internal/game"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/notify"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

var oneHundred = decimal.NewFromInt(100)

// Engine раздаёт бонусы вверх по цепочке рефереров при подтверждении депозита.
type Engine struct {
	percents     game.ReferralPercents
	upgrades     *game.UpgradeCatalog
	leveling     *leveling.Engine
	achievements *achievements.Engine
}

func NewEngine(
	percents game.ReferralPercents,
	upgrades *game.UpgradeCatalog,
	lvl *leveling.Engine,
	ach *achievements.Engine,
) *Engine {
	return &Engine{percents: percents, upgrades: upgrades, leveling: lvl, achievements: ach}
}

// Propagate проходит до game.MaxReferralTiers линий вверх от source и на
// каждой линии: создаёт запись бонуса, завершённую bonus-транзакцию,
// зачисляет сумму рефереру и перепроверяет его уровень и достижения.
// Процент линии увеличивается активными апгрейдами referral_boost реферера.
//
// Работает внутри уже открытой транзакции. Цикл в цепочке рефереров
// невозможен по построению (саморегистрация отклоняется), но на случай
// повреждённых данных обход защищён множеством посещённых аккаунтов.
func (e *Engine) Propagate(
	ctx context.Context,
	st store.Store,
	source *models.Account,
	sourceTxID int64,
	amount decimal.Decimal,
	now time.Time,
) ([]notify.Event, error) {
	var events []notify.Event

	visited := map[int64]bool{source.ID: true}
	current := source

	for tier := 1; tier <= game.MaxReferralTiers; tier++ {
		if current.ReferredBy == nil {
			break
		}
		referrerID := *current.ReferredBy
		if visited[referrerID] {
			return nil, fmt.Errorf("цикл в реферальной цепочке аккаунта %d: %w",
				source.ID, apperrors.ErrCircularReferral)
		}
		visited[referrerID] = true

		referrer, err := st.Accounts().LockByID(ctx, referrerID)
		if err != nil {
			return nil, fmt.Errorf("реферер %d линии %d: %w", referrerID, tier, err)
		}

		percent, err := e.tierPercent(ctx, st, referrer, tier, now)
		if err != nil {
			return nil, err
		}
		bonus := amount.Mul(percent).Div(oneHundred).Round(2)

		if bonus.IsPositive() {
			if err := e.credit(ctx, st, referrer, source, sourceTxID, tier, bonus, now); err != nil {
				return nil, err
			}
			events = append(events, notify.ReferralBonus{
				TelegramID: referrer.TelegramID,
				Amount:     bonus,
				From:       source.DisplayName(),
				Tier:       tier,
			})
		}

		// Заработок с рефералов мог открыть достижения или поднять уровень
		lvlEvents, err := e.leveling.CatchUp(ctx, st, referrer)
		if err != nil {
			return nil, err
		}
		events = append(events, lvlEvents...)

		achEvents, err := e.achievements.CheckAll(ctx, st, referrer, now)
		if err != nil {
			return nil, err
		}
		events = append(events, achEvents...)

		current = referrer
	}

	return events, nil
}

// tierPercent возвращает процент линии с учётом активных апгрейдов
// referral_boost реферера.
func (e *Engine) tierPercent(ctx context.Context, st store.Store, referrer *models.Account, tier int, now time.Time) (decimal.Decimal, error) {
	percent, ok := e.percents[tier]
	if !ok {
		return decimal.Zero, nil
	}

	active, err := st.Upgrades().ListActive(ctx, referrer.ID, now)
	if err != nil {
		return decimal.Zero, fmt.Errorf("апгрейды реферера %d: %w", referrer.ID, err)
	}
	for _, p := range active {
		u, ok := e.upgrades.Get(p.UpgradeID)
		if !ok || u.Kind != game.UpgradeKindReferralBoost {
			continue
		}
		percent = percent.Add(u.EffectPerLvl.Mul(decimal.NewFromInt(int64(p.Level))))
	}
	return percent, nil
}

func (e *Engine) credit(
	ctx context.Context,
	st store.Store,
	referrer, source *models.Account,
	sourceTxID int64,
	tier int,
	bonus decimal.Decimal,
	now time.Time,
) error {
	rec := &models.ReferralBonus{
		ReferrerID: referrer.ID,
		ReferredID: source.ID,
		SourceTxID: sourceTxID,
		Tier:       tier,
		Amount:     bonus,
	}
	if err := st.Bonuses().Create(ctx, rec); err != nil {
		return fmt.Errorf("запись бонуса линии %d: %w", tier, err)
	}

	completedAt := now
	tx := &models.Transaction{
		AccountID:   referrer.ID,
		Kind:        models.TxKindBonus,
		Amount:      bonus,
		Status:      models.TxStatusCompleted,
		Description: fmt.Sprintf("Реферальный бонус %d линии от %s", tier, source.DisplayName()),
		CompletedAt: &completedAt,
	}
	if err := st.Transactions().Create(ctx, tx); err != nil {
		return fmt.Errorf("транзакция бонуса линии %d: %w", tier, err)
	}

	if err := st.Accounts().CreditReferral(ctx, referrer.ID, bonus); err != nil {
		return fmt.Errorf("зачисление бонуса рефереру %d: %w", referrer.ID, err)
	}
	referrer.Balance = referrer.Balance.Add(bonus)
	referrer.ReferralEarnings = referrer.ReferralEarnings.Add(bonus)
	return nil
}
