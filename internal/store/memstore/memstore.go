// Package memstore — хранилище в памяти, реализующее store.Store.
// Используется в тестах движков вместо PostgreSQL: семантика та же
// (ErrNotFound, ErrInsufficientFunds, откат InTx при ошибке),
// но без внешних зависимостей.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zakaz-dev/crypto-empire-bot/internal/apperrors"
	"github.com/zakaz-dev/crypto-empire-bot/internal/models"
	"github.com/zakaz-dev/crypto-empire-bot/internal/store"
)

type data struct {
	accounts     map[int64]*models.Account
	transactions map[int64]*models.Transaction
	bonuses      map[int64]*models.ReferralBonus
	upgrades     map[int64]*models.UpgradePurchase
	achievements map[int64]*models.AchievementUnlock

	nextAccountID     int64
	nextTxID          int64
	nextBonusID       int64
	nextUpgradeID     int64
	nextAchievementID int64
}

// Memstore — потокобезопасное хранилище в памяти.
type Memstore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    *data

	// Clock подменяет время создания записей; по умолчанию time.Now.
	Clock func() time.Time
}

func New() *Memstore {
	return &Memstore{
		d: &data{
			accounts:     map[int64]*models.Account{},
			transactions: map[int64]*models.Transaction{},
			bonuses:      map[int64]*models.ReferralBonus{},
			upgrades:     map[int64]*models.UpgradePurchase{},
			achievements: map[int64]*models.AchievementUnlock{},
		},
		Clock: time.Now,
	}
}

func (m *Memstore) now() time.Time { return m.Clock() }

func (m *Memstore) Accounts() store.AccountRepo         { return &accountRepo{m} }
func (m *Memstore) Transactions() store.TransactionRepo { return &txRepo{m} }
func (m *Memstore) Bonuses() store.BonusRepo            { return &bonusRepo{m} }
func (m *Memstore) Upgrades() store.UpgradeRepo         { return &upgradeRepo{m} }
func (m *Memstore) Achievements() store.AchievementRepo { return &achievementRepo{m} }

// InTx выполняет fn на том же хранилище, предварительно сняв снимок данных.
// Ошибка fn восстанавливает снимок — все изменения откатываются разом.
func (m *Memstore) InTx(ctx context.Context, fn func(s store.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.d.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.d = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (d *data) clone() *data {
	c := &data{
		accounts:          make(map[int64]*models.Account, len(d.accounts)),
		transactions:      make(map[int64]*models.Transaction, len(d.transactions)),
		bonuses:           make(map[int64]*models.ReferralBonus, len(d.bonuses)),
		upgrades:          make(map[int64]*models.UpgradePurchase, len(d.upgrades)),
		achievements:      make(map[int64]*models.AchievementUnlock, len(d.achievements)),
		nextAccountID:     d.nextAccountID,
		nextTxID:          d.nextTxID,
		nextBonusID:       d.nextBonusID,
		nextUpgradeID:     d.nextUpgradeID,
		nextAchievementID: d.nextAchievementID,
	}
	for id, a := range d.accounts {
		cp := *a
		c.accounts[id] = &cp
	}
	for id, t := range d.transactions {
		cp := *t
		c.transactions[id] = &cp
	}
	for id, b := range d.bonuses {
		cp := *b
		c.bonuses[id] = &cp
	}
	for id, u := range d.upgrades {
		cp := *u
		if u.UsesLeft != nil {
			v := *u.UsesLeft
			cp.UsesLeft = &v
		}
		c.upgrades[id] = &cp
	}
	for id, a := range d.achievements {
		cp := *a
		c.achievements[id] = &cp
	}
	return c
}

// --- аккаунты ---

type accountRepo struct{ m *Memstore }

func (r *accountRepo) Create(_ context.Context, a *models.Account) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ex := range r.m.d.accounts {
		if ex.TelegramID == a.TelegramID || ex.ReferralCode == a.ReferralCode {
			return fmt.Errorf("аккаунт уже существует: telegram_id=%d", a.TelegramID)
		}
	}
	r.m.d.nextAccountID++
	a.ID = r.m.d.nextAccountID
	a.CreatedAt = r.m.now()
	cp := *a
	r.m.d.accounts[a.ID] = &cp
	return nil
}

func (r *accountRepo) get(id int64) (*models.Account, error) {
	a, ok := r.m.d.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *accountRepo) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.get(id)
}

func (r *accountRepo) GetByTelegramID(_ context.Context, telegramID int64) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.d.accounts {
		if a.TelegramID == telegramID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *accountRepo) GetByReferralCode(_ context.Context, code string) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.d.accounts {
		if a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *accountRepo) LockByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *accountRepo) update(id int64, fn func(a *models.Account) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.d.accounts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	return fn(a)
}

func (r *accountRepo) AddBalance(_ context.Context, id int64, amount decimal.Decimal) error {
	return r.update(id, func(a *models.Account) error {
		a.Balance = a.Balance.Add(amount)
		return nil
	})
}

func (r *accountRepo) SubBalance(_ context.Context, id int64, amount decimal.Decimal) error {
	return r.update(id, func(a *models.Account) error {
		if a.Balance.LessThan(amount) {
			return apperrors.ErrInsufficientFunds
		}
		a.Balance = a.Balance.Sub(amount)
		return nil
	})
}

func (r *accountRepo) ApplyDeposit(_ context.Context, id int64, amount decimal.Decimal) error {
	return r.update(id, func(a *models.Account) error {
		a.Balance = a.Balance.Add(amount)
		a.TotalDeposit = a.TotalDeposit.Add(amount)
		return nil
	})
}

func (r *accountRepo) ApplyWithdraw(_ context.Context, id int64, amount decimal.Decimal) error {
	return r.update(id, func(a *models.Account) error {
		a.TotalWithdraw = a.TotalWithdraw.Add(amount)
		return nil
	})
}

func (r *accountRepo) CreditReferral(_ context.Context, id int64, amount decimal.Decimal) error {
	return r.update(id, func(a *models.Account) error {
		a.Balance = a.Balance.Add(amount)
		a.ReferralEarnings = a.ReferralEarnings.Add(amount)
		return nil
	})
}

func (r *accountRepo) SetLevel(_ context.Context, id int64, level string) error {
	return r.update(id, func(a *models.Account) error {
		a.Level = level
		return nil
	})
}

func (r *accountRepo) IncReferralCount(_ context.Context, id int64) error {
	return r.update(id, func(a *models.Account) error {
		a.ReferralCount++
		return nil
	})
}

func (r *accountRepo) SetIncomeSchedule(_ context.Context, id int64, last, next time.Time) error {
	return r.update(id, func(a *models.Account) error {
		l, n := last, next
		a.LastIncome = &l
		a.NextIncome = &n
		return nil
	})
}

func (r *accountRepo) DueForIncome(_ context.Context, now time.Time) ([]*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Account
	for _, a := range r.m.d.accounts {
		if a.TotalDeposit.IsPositive() && a.NextIncome != nil && !a.NextIncome.After(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextIncome.Before(*out[j].NextIncome) })
	return out, nil
}

func (r *accountRepo) ReferralsOf(_ context.Context, id int64) ([]*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Account
	for _, a := range r.m.d.accounts {
		if a.ReferredBy != nil && *a.ReferredBy == id {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *accountRepo) TopByBalance(_ context.Context, limit int) ([]*models.Account, error) {
	return r.top(limit, func(a, b *models.Account) bool { return a.Balance.GreaterThan(b.Balance) })
}

func (r *accountRepo) TopByReferrals(_ context.Context, limit int) ([]*models.Account, error) {
	return r.top(limit, func(a, b *models.Account) bool { return a.ReferralCount > b.ReferralCount })
}

func (r *accountRepo) top(limit int, less func(a, b *models.Account) bool) ([]*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.Account, 0, len(r.m.d.accounts))
	for _, a := range r.m.d.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *accountRepo) Count(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.d.accounts)), nil
}

// --- транзакции ---

type txRepo struct{ m *Memstore }

func (r *txRepo) Create(_ context.Context, t *models.Transaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.d.nextTxID++
	t.ID = r.m.d.nextTxID
	t.CreatedAt = r.m.now()
	cp := *t
	r.m.d.transactions[t.ID] = &cp
	return nil
}

func (r *txRepo) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.d.transactions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *txRepo) LockByID(ctx context.Context, id int64) (*models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *txRepo) Resolve(_ context.Context, id int64, status string, completedAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.d.transactions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.Status != models.TxStatusPending {
		return apperrors.ErrInvalidState
	}
	t.Status = status
	c := completedAt
	t.CompletedAt = &c
	return nil
}

func (r *txRepo) ListByAccount(_ context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Transaction
	for _, t := range r.m.d.transactions {
		if t.AccountID == accountID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *txRepo) ListPending(_ context.Context) ([]*models.Transaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Transaction
	for _, t := range r.m.d.transactions {
		if t.Status == models.TxStatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *txRepo) SumWithdrawRequestedSince(_ context.Context, accountID int64, since time.Time) (decimal.Decimal, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.m.d.transactions {
		if t.AccountID == accountID && t.Kind == models.TxKindWithdraw &&
			t.Status != models.TxStatusCancelled && !t.CreatedAt.Before(since) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (r *txRepo) SumCompletedByKind(_ context.Context, kind string) (decimal.Decimal, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sum := decimal.Zero
	for _, t := range r.m.d.transactions {
		if t.Kind == kind && t.Status == models.TxStatusCompleted {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// --- реферальные бонусы ---

type bonusRepo struct{ m *Memstore }

func (r *bonusRepo) Create(_ context.Context, b *models.ReferralBonus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ex := range r.m.d.bonuses {
		if ex.ReferrerID == b.ReferrerID && ex.SourceTxID == b.SourceTxID && ex.Tier == b.Tier {
			return fmt.Errorf("бонус уже начислен: tx=%d tier=%d", b.SourceTxID, b.Tier)
		}
	}
	r.m.d.nextBonusID++
	b.ID = r.m.d.nextBonusID
	b.CreatedAt = r.m.now()
	cp := *b
	r.m.d.bonuses[b.ID] = &cp
	return nil
}

func (r *bonusRepo) ListByReferrer(_ context.Context, referrerID int64, limit int) ([]*models.ReferralBonus, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.ReferralBonus
	for _, b := range r.m.d.bonuses {
		if b.ReferrerID == referrerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *bonusRepo) SumAll(_ context.Context) (decimal.Decimal, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sum := decimal.Zero
	for _, b := range r.m.d.bonuses {
		sum = sum.Add(b.Amount)
	}
	return sum, nil
}

// --- апгрейды ---

type upgradeRepo struct{ m *Memstore }

func copyUpgrade(u *models.UpgradePurchase) *models.UpgradePurchase {
	cp := *u
	if u.UsesLeft != nil {
		v := *u.UsesLeft
		cp.UsesLeft = &v
	}
	return &cp
}

func (r *upgradeRepo) Get(_ context.Context, accountID int64, upgradeID string) (*models.UpgradePurchase, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.d.upgrades {
		if u.AccountID == accountID && u.UpgradeID == upgradeID {
			return copyUpgrade(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *upgradeRepo) Create(_ context.Context, u *models.UpgradePurchase) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.d.nextUpgradeID++
	u.ID = r.m.d.nextUpgradeID
	u.PurchasedAt = r.m.now()
	r.m.d.upgrades[u.ID] = copyUpgrade(u)
	return nil
}

func (r *upgradeRepo) Upgrade(_ context.Context, id int64, level int, expiresAt *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.d.upgrades[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Level = level
	u.ExpiresAt = expiresAt
	u.Active = true
	return nil
}

func (r *upgradeRepo) ListActive(_ context.Context, accountID int64, now time.Time) ([]*models.UpgradePurchase, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.UpgradePurchase
	for _, u := range r.m.d.upgrades {
		if u.AccountID == accountID && u.Active && !u.Expired(now) {
			out = append(out, copyUpgrade(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *upgradeRepo) ConsumeUse(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.d.upgrades[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if u.UsesLeft == nil || *u.UsesLeft <= 0 {
		return apperrors.ErrInvalidState
	}
	*u.UsesLeft--
	if *u.UsesLeft == 0 {
		u.Active = false
	}
	return nil
}

func (r *upgradeRepo) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, u := range r.m.d.upgrades {
		if u.Active && u.Expired(now) {
			u.Active = false
			n++
		}
	}
	return n, nil
}

// --- достижения ---

type achievementRepo struct{ m *Memstore }

func (r *achievementRepo) Has(_ context.Context, accountID int64, achievementID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.d.achievements {
		if a.AccountID == accountID && a.AchievementID == achievementID {
			return true, nil
		}
	}
	return false, nil
}

func (r *achievementRepo) Create(_ context.Context, a *models.AchievementUnlock) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, ex := range r.m.d.achievements {
		if ex.AccountID == a.AccountID && ex.AchievementID == a.AchievementID {
			return fmt.Errorf("достижение уже открыто: %s", a.AchievementID)
		}
	}
	r.m.d.nextAchievementID++
	a.ID = r.m.d.nextAchievementID
	a.CompletedAt = r.m.now()
	cp := *a
	r.m.d.achievements[a.ID] = &cp
	return nil
}

func (r *achievementRepo) ListByAccount(_ context.Context, accountID int64) ([]*models.AchievementUnlock, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.AchievementUnlock
	for _, a := range r.m.d.achievements {
		if a.AccountID == accountID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
