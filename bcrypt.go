package auth

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured
const DefaultBcryptCost = 14

// BcryptVerifier implements PasswordVerifier with bcrypt
type BcryptVerifier struct {
	Cost int
}

var _ PasswordVerifier = BcryptVerifier{}

// NewBcryptVerifier returns a verifier using cost, or DefaultBcryptCost
// when cost is outside the bcrypt range.
func NewBcryptVerifier(cost int) BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return BcryptVerifier{Cost: cost}
}

// Hash will generate a password hash
func (v BcryptVerifier) Hash(plaintext string) (string, error) {
	return hashPassword(plaintext, v.cost())
}

// Matches compares in constant time
func (v BcryptVerifier) Matches(plaintext, hash string) bool {
	return ComparePasswordAndHash(plaintext, hash) == nil
}

func (v BcryptVerifier) cost() int {
	if v.Cost == 0 {
		return passwordHashCost()
	}
	return v.Cost
}

// HashPassword will generate a password hash with the default cost
func HashPassword(password string) (string, error) {
	return hashPassword(password, passwordHashCost())
}

func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a throwaway hash, used to keep response timing
// uniform when an account does not exist.
func RandomPasswordHash(v PasswordVerifier) string {
	h, err := v.Hash(uuid.NewString())
	if err != nil {
		return ""
	}
	return h
}
