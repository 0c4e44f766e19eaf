package domain

import "time"

// Session representa un contexto autenticado de un cliente.
// El token nunca se serializa hacia afuera.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired indica si la sesión ya pasó su expiración.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
