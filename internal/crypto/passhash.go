// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing schemes.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

const argonPrefix = "$argon2id$"

// tokenBytes is the entropy of a session token.
const tokenBytes = 32

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewToken returns an opaque, unguessable hex token.
func NewToken() (string, error) {
	b, err := RandBytes(tokenBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Hasher hashes new passwords with one scheme and verifies hashes of any
// supported scheme, so stored hashes survive a scheme switch.
type Hasher struct {
	scheme     string
	bcryptCost int
}

// NewHasher constructs a Hasher. An unknown scheme is an error; a zero
// bcrypt cost selects bcrypt.DefaultCost.
func NewHasher(scheme string, bcryptCost int) (*Hasher, error) {
	switch scheme {
	case "", SchemeBcrypt:
		scheme = SchemeBcrypt
	case SchemeArgon2id:
	default:
		return nil, fmt.Errorf("unknown hash scheme %q", scheme)
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}
	return &Hasher{scheme: scheme, bcryptCost: bcryptCost}, nil
}

// Hash returns the encoded one-way hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeArgon2id {
		salt, err := RandBytes(argonSaltLen)
		if err != nil {
			return "", err
		}
		return encodeArgon2(HashPassword([]byte(password), salt), salt), nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches encoded. Malformed hashes never match.
func (h *Hasher) Verify(password, encoded string) bool {
	if strings.HasPrefix(encoded, argonPrefix) {
		salt, expected, ok := decodeArgon2(encoded)
		if !ok {
			return false
		}
		return VerifyPassword([]byte(password), salt, expected)
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// HashPassword returns Argon2id hash of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against expected Argon2id hash and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// encodeArgon2 renders $argon2id$v=19$m=65536,t=3,p=1$salt$hash.
func encodeArgon2(hash, salt []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argonPrefix, argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// decodeArgon2 accepts only hashes produced with the current parameters.
func decodeArgon2(encoded string) (salt, hash []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, false
	}
	want := fmt.Sprintf("m=%d,t=%d,p=%d", argonMemory, argonTime, argonThreads)
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) || parts[3] != want {
		return nil, nil, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, false
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, false
	}
	return salt, hash, true
}
