package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// apiKeyPrefixLen is the number of random bytes shown back to the caller
// as the key's Prefix, base64-encoded, so a key can be identified in logs
// and UI without ever storing or displaying the full secret.
const apiKeyPrefixLen = 6

// apiKeySecretLen is the number of random bytes in the full secret part of
// a generated key, the part that follows the prefix.
const apiKeySecretLen = 32

// argon2 parameters per OWASP's current minimum recommendation for
// argon2id: one pass, 64 MiB memory, four lanes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// GenerateApiKey returns a new key's prefix, its full plaintext secret (the
// only time it's ever available — return this to the caller and discard
// it), and the argon2id hash to persist as ApiKey.SecretHash.
func GenerateApiKey() (prefix, plaintext, hash string, err error) {
	prefixBytes := make([]byte, apiKeyPrefixLen)
	if _, err = rand.Read(prefixBytes); err != nil {
		return "", "", "", err
	}
	secretBytes := make([]byte, apiKeySecretLen)
	if _, err = rand.Read(secretBytes); err != nil {
		return "", "", "", err
	}

	prefix = base64.RawURLEncoding.EncodeToString(prefixBytes)
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	plaintext = fmt.Sprintf("sk-%s-%s", prefix, secret)
	hash = hashSecret(secret)
	return prefix, plaintext, hash, nil
}

// SplitApiKey parses a "sk-<prefix>-<secret>" key into its prefix (for the
// ApiKey lookup) and secret (to verify against SecretHash).
func SplitApiKey(key string) (prefix, secret string, ok bool) {
	if !strings.HasPrefix(key, "sk-") {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, "sk-")
	// The prefix has a fixed encoded length and may itself contain '-'.
	n := base64.RawURLEncoding.EncodedLen(apiKeyPrefixLen)
	if len(rest) < n+2 || rest[n] != '-' {
		return "", "", false
	}
	return rest[:n], rest[n+1:], true
}

// VerifyApiKeySecret reports whether secret hashes to the stored hash,
// using a constant-time comparison of the derived keys.
func VerifyApiKeySecret(secret, hash string) bool {
	salt, want, err := decodeHash(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func hashSecret(secret string) string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	derived := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived))
}

func decodeHash(encoded string) (salt, derived []byte, err error) {
	parts := strings.SplitN(encoded, "$", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("account: malformed api key hash")
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, err
	}
	derived, err = base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, err
	}
	return salt, derived, nil
}
