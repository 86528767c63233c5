// Package secrethash hashes and verifies OAuth client secrets at rest.
package secrethash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("secrethash: unknown hash type")

// params holds OWASP-minimum Argon2id parameters: 46 MiB memory, 1 iteration,
// 1 degree of parallelism.
var params = &argon2id.Params{
	Memory:      46 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash returns an Argon2id hash of secret in PHC format, suitable for
// storing alongside a registered OAuth client.
func Hash(secret string) (string, error) {
	return argon2id.CreateHash(secret, params)
}

// HashSHA256 returns the SHA-256 hex digest of secret. Retained so
// pre-existing sha256-hashed secrets (e.g. seeded via config) keep
// validating without a forced re-hash.
func HashSHA256(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func detectHashType(stored string) string {
	if strings.HasPrefix(stored, "$argon2id$") {
		return "argon2id"
	}
	if strings.HasPrefix(stored, "sha256:") {
		return "sha256"
	}
	if len(stored) == 64 && isHexString(stored) {
		return "sha256"
	}
	return "unknown"
}

func isHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Verify reports whether secret matches stored, a hash produced by Hash or
// HashSHA256. Returns ErrUnknownHashType for unrecognized stored formats.
func Verify(secret, stored string) (bool, error) {
	switch detectHashType(stored) {
	case "argon2id":
		return safeCompare(secret, stored)
	case "sha256":
		expected := strings.TrimPrefix(stored, "sha256:")
		got := HashSHA256(secret)
		return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// safeCompare wraps argon2id.ComparePasswordAndHash with panic recovery: the
// underlying library panics on malformed parameter strings (t=0, p=0).
func safeCompare(secret, stored string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("secrethash: invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(secret, stored)
}
