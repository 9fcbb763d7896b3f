package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Stored hashes are self-describing:
//
//	argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>   current scheme (base64, no padding)
//	<16 hex salt>:<hex sha256>                   legacy scheme, verify only
const argon2idPrefix = "argon2id$"

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var hashParams = argonParams{
	time:    1,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
	saltLen: 16,
}

// HashPassword derives an argon2id hash with a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashParams.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, hashParams.time, hashParams.memory, hashParams.threads, hashParams.keyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version,
		hashParams.memory, hashParams.time, hashParams.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks password against either stored scheme. Malformed
// hashes never verify.
func VerifyPassword(password, stored string) bool {
	if strings.HasPrefix(stored, argon2idPrefix) {
		return verifyArgon2id(password, stored)
	}
	return verifyLegacy(password, stored)
}

// NeedsRehash reports whether stored should be replaced with a fresh hash
// after a successful login.
func NeedsRehash(stored string) bool {
	if !strings.HasPrefix(stored, argon2idPrefix) {
		return true
	}
	p, _, _, err := decodeArgon2id(stored)
	if err != nil {
		return true
	}
	return p.time != hashParams.time || p.memory != hashParams.memory || p.threads != hashParams.threads
}

func verifyArgon2id(password, stored string) bool {
	p, salt, key, err := decodeArgon2id(stored)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1
}

func decodeArgon2id(stored string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(stored, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return p, nil, nil, fmt.Errorf("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[1])
	}
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("argon2 params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return p, nil, nil, fmt.Errorf("argon2 salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("argon2 key: %w", err)
	}
	return p, salt, key, nil
}

// legacyDigest reproduces the first-generation construction:
// hex(sha256(salt + hex(sha256(password)))).
func legacyDigest(password, salt string) string {
	inner := sha256.Sum256([]byte(password))
	outer := sha256.Sum256([]byte(salt + hex.EncodeToString(inner[:])))
	return hex.EncodeToString(outer[:])
}

func verifyLegacy(password, stored string) bool {
	salt, want, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || want == "" {
		return false
	}
	got := legacyDigest(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
