package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher transforma una contraseña en un digest almacenable y
// permite verificarla después. Hash nunca produce dos veces el mismo digest
// para la misma entrada (sal aleatoria embebida), así que los digests no se
// comparan por igualdad sino vía Verify.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify devuelve false cuando la contraseña no coincide; error solo
	// ante un digest malformado o una falla interna.
	Verify(encoded, plaintext string) (bool, error)
}

var ErrHashMalformed = errors.New("password digest malformed")

// NewPasswordHasher devuelve la implementación según el algoritmo pedido.
// Por defecto argon2id; "bcrypt" queda disponible por compatibilidad con
// registros existentes.
func NewPasswordHasher(algo string) PasswordHasher {
	if strings.EqualFold(strings.TrimSpace(algo), "bcrypt") {
		return &bcryptHasher{cost: bcrypt.DefaultCost}
	}
	return defaultArgon2Hasher()
}

type argon2Hasher struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

func defaultArgon2Hasher() *argon2Hasher {
	return &argon2Hasher{
		memory:  64 * 1024,
		time:    1,
		threads: 4,
		saltLen: 16,
		keyLen:  32,
	}
}

func (h *argon2Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.time, h.memory, h.threads, h.keyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

func (h *argon2Hasher) Verify(encoded, plaintext string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrHashMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrHashMalformed
	}
	if version != argon2.Version {
		return false, ErrHashMalformed
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrHashMalformed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrHashMalformed
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrHashMalformed
	}

	key := argon2.IDKey([]byte(plaintext), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

type bcryptHasher struct {
	cost int
}

func (h *bcryptHasher) Hash(plaintext string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func (h *bcryptHasher) Verify(encoded, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, ErrHashMalformed
}
