package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки проверки API ключа
var (
	ErrEmptyKey    = errors.New("api key cannot be empty")
	ErrKeyMismatch = errors.New("api key does not match hash")
	ErrInvalidHash = errors.New("invalid api key hash format")
	ErrKeyTooLong  = errors.New("api key exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость bcrypt для хеша API ключа в конфигурации
const DefaultCost = 12

// MaxKeyLength - ограничение bcrypt (72 байта)
const MaxKeyLength = 72

// apiKeyBytes - длина случайного ключа до hex-кодирования
const apiKeyBytes = 24

// GenerateAPIKey создаёт случайный API ключ (48 hex символов)
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashAPIKey хеширует ключ для API_KEY_HASH
//
// cost вне [bcrypt.MinCost, bcrypt.MaxCost] приводится к границе.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(key) > MaxKeyLength {
		return "", ErrKeyTooLong
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey проверяет ключ из заголовка X-API-Key против хеша
func VerifyAPIKey(key, hash string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrKeyMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// ValidateHash проверяет, что строка - корректный bcrypt хеш (валидация конфигурации)
func ValidateHash(hash string) error {
	if hash == "" {
		return ErrInvalidHash
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ErrInvalidHash
	}
	return nil
}
