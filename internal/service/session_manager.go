package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionManager emite, valida y revoca tokens de sesión.
// Ciclo de vida de cada sesión: emitida -> activa -> {expirada, revocada}.
type SessionManager interface {
	Issue(userID string) (string, error)
	// Validate devuelve el userID de la sesión. Una sesión ausente,
	// expirada o revocada devuelve ErrSessionInvalid; no es excepcional.
	Validate(token string) (string, error)
	// Revoke es idempotente: revocar un token desconocido no es un error.
	Revoke(token string) error
}

var ErrSessionInvalid = errors.New("session invalid")

const sessionTokenBytes = 32

// newSessionToken genera un token opaco no adivinable (256 bits).
func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// StoreSessionManager guarda sesiones server-side: el token que viaja al
// cliente es aleatorio y solo tiene significado contra el store.
type StoreSessionManager struct {
	store SessionStore
	ttl   time.Duration
}

func NewStoreSessionManager(store SessionStore, ttl time.Duration) *StoreSessionManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &StoreSessionManager{store: store, ttl: ttl}
}

func (m *StoreSessionManager) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrSessionInvalid
	}
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Save(token, userID, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (m *StoreSessionManager) Validate(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrSessionInvalid
	}
	userID, ok, err := m.store.Get(token)
	if err != nil {
		return "", err
	}
	if !ok || userID == "" {
		return "", ErrSessionInvalid
	}
	return userID, nil
}

func (m *StoreSessionManager) Revoke(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return m.store.Delete(token)
}

// CookieSessionManager emite tokens firmados HS256 que el cliente retiene.
// El estado server-side se reduce al jti, necesario para que Revoke tenga
// efecto antes de la expiración del token.
type CookieSessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionStore
}

type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func NewCookieSessionManager(secret string, ttl time.Duration, store SessionStore) *CookieSessionManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &CookieSessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "authweb",
		store:  store,
	}
}

func (m *CookieSessionManager) Issue(userID string) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("session secret not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return "", ErrSessionInvalid
	}
	now := time.Now().UTC()
	jti := uuid.NewString()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	if err := m.store.Save(jti, userID, m.ttl); err != nil {
		return "", err
	}
	return signed, nil
}

func (m *CookieSessionManager) Validate(token string) (string, error) {
	claims, err := m.parseToken(token)
	if err != nil {
		return "", err
	}
	userID, ok, storeErr := m.store.Get(claims.ID)
	if storeErr != nil {
		return "", storeErr
	}
	if !ok || userID != claims.UserID {
		return "", ErrSessionInvalid
	}
	return claims.UserID, nil
}

func (m *CookieSessionManager) Revoke(token string) error {
	claims, err := m.parseToken(token)
	if err != nil {
		// Un token inválido ya no autentica nada; revocarlo es un no-op.
		return nil
	}
	return m.store.Delete(claims.ID)
}

func (m *CookieSessionManager) parseToken(tokenString string) (sessionClaims, error) {
	if len(m.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return sessionClaims{}, ErrSessionInvalid
	}
	var claims sessionClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return sessionClaims{}, ErrSessionInvalid
	}
	if !m.isValidClaims(claims) {
		return sessionClaims{}, ErrSessionInvalid
	}
	return claims, nil
}

func (m *CookieSessionManager) isValidClaims(claims sessionClaims) bool {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.ID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == m.issuer
}
