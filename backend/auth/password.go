package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordScheme turns a password into its stored form and checks it.
type PasswordScheme interface {
	Hash(password string) (string, error)
	Compare(stored, password string) bool
}

// Plaintext stores passwords as given and compares them directly.
type Plaintext struct{}

func (Plaintext) Hash(password string) (string, error) { return password, nil }

func (Plaintext) Compare(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// Bcrypt stores bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (Bcrypt) Compare(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// SchemeByName maps a config value to a scheme.
func SchemeByName(name string, bcryptCost int) (PasswordScheme, error) {
	switch name {
	case "", "plaintext":
		return Plaintext{}, nil
	case "bcrypt":
		if bcryptCost != 0 && (bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
		return Bcrypt{Cost: bcryptCost}, nil
	default:
		return nil, errors.New("unknown password scheme " + name)
	}
}
