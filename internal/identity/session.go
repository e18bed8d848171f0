// Package identity реализует границу с внешним провайдером аутентификации.
// Ядро синхронизации не знает протокол провайдера: ему нужен только
// идентификатор текущего пользователя или признак его отсутствия.
package identity

import (
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User представляет аутентифицированного пользователя.
type User struct {
	ID string
}

// Provider определяет интерфейс провайдера идентификации.
// Возвращает nil, если пользователь не аутентифицирован.
type Provider interface {
	CurrentUser() *User
}

// Session хранит токен доступа, выданный внешним провайдером, и извлекает
// из него идентификатор пользователя. Подпись токена не проверяется:
// клиент доверяет токену, который сам же получил и сохранил, — проверка
// подписи остается за сервером провайдера.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession создает пустую сессию. Токен задается после входа пользователя.
func NewSession() *Session {
	return &Session{}
}

// SetToken сохраняет токен доступа текущей сессии.
// Пустая строка сбрасывает сессию (выход пользователя).
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token возвращает сохраненный токен доступа для запросов к внешним сервисам.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser возвращает пользователя из токена сессии или nil,
// если токен отсутствует, не разбирается или истек.
func (s *Session) CurrentUser() *User {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Printf("[Identity] Не удалось разобрать токен сессии: %v", err)
		return nil
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil {
		log.Printf("[Identity] Не удалось прочитать срок действия токена: %v", err)
		return nil
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		log.Printf("[Identity] Токен сессии истек %s", expiresAt)
		return nil
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		log.Printf("[Identity] В токене сессии отсутствует идентификатор пользователя")
		return nil
	}

	return &User{ID: subject}
}
