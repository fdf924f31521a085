package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const saltBytes = 16

// MaxPasswordBytes keeps password plus encoded salt inside bcrypt's 72 byte
// input limit.
const MaxPasswordBytes = 72 - 24

var ErrPasswordTooLong = errors.New("password too long")

func NewSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

func HashPassword(password, salt string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password+salt), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func CheckPassword(hashed, password, salt string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password+salt)) == nil
}
