package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultArgon2Params are the production costs.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

var errMalformedHash = errors.New("malformed password hash")

// dummyPassword backs the precomputed hash that has no account behind it.
const dummyPassword = "dummy password for absent accounts"

// PasswordHasher hashes passwords with argon2id and verifies them in a way
// that costs the same for real and dummy hashes.
//
// Encoded form: $argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<key>
// with unpadded standard base64 for salt and key.
type PasswordHasher struct {
	params Argon2Params
	dummy  string
}

// NewPasswordHasher builds a hasher and precomputes its dummy hash.
func NewPasswordHasher(p Argon2Params) (*PasswordHasher, error) {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 || p.KeyLen == 0 || p.SaltLen <= 0 {
		return nil, fmt.Errorf("invalid argon2 parameters: %+v", p)
	}
	h := &PasswordHasher{params: p}
	dummy, err := h.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns a salted argon2id digest of password. Each call draws a new salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt generation: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return encode(h.params, salt, key), nil
}

// Verify reports whether password matches encoded. A malformed encoding
// returns false after doing the same work as a real comparison. The cost
// follows the params stored in encoded, so timing matches VerifyDummy only
// for hashes made with the current params; see NeedsRehash.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	p, salt, key, err := decode(encoded)
	if err != nil {
		h.VerifyDummy(password)
		return false
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1
}

// NeedsRehash reports whether encoded was produced with params other than
// the hasher's own, or cannot be parsed at all.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return true
	}
	return p.Time != h.params.Time || p.Memory != h.params.Memory || p.Threads != h.params.Threads ||
		len(key) != int(h.params.KeyLen) || len(salt) != h.params.SaltLen
}

// VerifyDummy runs a full verification against the dummy hash and discards
// the result. Used when the account does not exist.
func (h *PasswordHasher) VerifyDummy(password string) {
	p, salt, key, err := decode(h.dummy)
	if err != nil {
		return
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	_ = subtle.ConstantTimeCompare(key, candidate)
}

// DummyHash exposes the precomputed hash, e.g. for tests.
func (h *PasswordHasher) DummyHash() string {
	return h.dummy
}

func encode(p Argon2Params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

// maxArgon2Memory bounds the memory a stored hash may ask for (1 GiB).
const maxArgon2Memory = 1 << 20

func decode(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedHash
	}
	if p.Memory == 0 || p.Memory > maxArgon2Memory || p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedHash
	}
	p.SaltLen = len(salt)
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}
