// session.go — in-memory сессии веб-панели.
// Токен выдаётся после проверки initData и живёт в cookie.
package webapp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	telegramID int64
	expiresAt  time.Time
}

// SessionManager хранит активные сессии в памяти.
// При рестарте процесса сессии сбрасываются, клиент авторизуется заново.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]session
	ttl      time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSessionManager создаёт менеджер сессий с фоновой очисткой.
func NewSessionManager(ttl time.Duration) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Create выдаёт новый токен сессии для пользователя.
func (m *SessionManager) Create(telegramID int64) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[token] = session{
		telegramID: telegramID,
		expiresAt:  time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
	return token
}

// Resolve возвращает telegram_id по токену, если сессия жива.
func (m *SessionManager) Resolve(token string) (int64, bool) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok || time.Now().After(s.expiresAt) {
		return 0, false
	}
	return s.telegramID, true
}

// Delete удаляет сессию (logout).
func (m *SessionManager) Delete(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Close останавливает фоновую горутину очистки.
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *SessionManager) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for token, s := range m.sessions {
				if now.After(s.expiresAt) {
					delete(m.sessions, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
