package account

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a user's plaintext password for User.PasswordHash.
// API key secrets use argon2 instead (see apikey.go); passwords are
// typed by humans and benefit from bcrypt's simpler, widely-audited cost
// model more than from argon2's memory-hardness.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the bcrypt hash.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
