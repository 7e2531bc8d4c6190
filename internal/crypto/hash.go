package crypto

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidHashFormat   = errors.New("invalid encoded hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// HashParams configures the Argon2id hashing parameters.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams returns the Argon2id parameters used for new hashes.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword hashes a password using Argon2id with default parameters.
// Returns the hash encoded in PHC string format.
func HashPassword(password string) (string, error) {
	params := DefaultHashParams()

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=65536,t=3,p=2$<base64-salt>$<base64-hash>
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a password against an encoded hash. Argon2id PHC
// strings, bcrypt hashes and ASP.NET Core Identity V3 hashes are accepted.
func VerifyPassword(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, ErrInvalidHashFormat
		}
		return true, nil
	default:
		return verifyIdentityV3(password, encodedHash)
	}
}

// NeedsRehash reports whether the hash should be replaced by a fresh
// Argon2id hash with the default parameters.
func NeedsRehash(encodedHash string) bool {
	params, _, _, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}
	def := DefaultHashParams()
	return params.Memory < def.Memory ||
		params.Iterations < def.Iterations ||
		params.Parallelism < def.Parallelism ||
		params.KeyLength < def.KeyLength
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// VerifyDummy burns the same amount of work as verifying a real password,
// so a login for an unknown user costs as much as one with a wrong password.
func VerifyDummy(password string) {
	dummyOnce.Do(func() {
		h, err := HashPassword("dummy-password-for-timing")
		if err != nil {
			panic(fmt.Sprintf("crypto: building dummy hash: %v", err))
		}
		dummyHash = h
	})
	_, _ = verifyArgon2(password, dummyHash)
}

func verifyArgon2(password, encodedHash string) (bool, error) {
	params, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// decodeHash parses a PHC-formatted Argon2id hash string.
func decodeHash(encodedHash string) (HashParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	if parts[1] != "argon2id" {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	if version != argon2.Version {
		return HashParams{}, nil, nil, ErrIncompatibleVersion
	}

	var params HashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	params.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// Identity V3 layout: 0x01 | prf (uint32 BE) | iterations | salt length | salt | subkey.
const identityV3Header = 13

func verifyIdentityV3(password, encodedHash string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil || len(raw) < identityV3Header || raw[0] != 0x01 {
		return false, ErrInvalidHashFormat
	}

	var prf func() hash.Hash
	switch binary.BigEndian.Uint32(raw[1:5]) {
	case 0:
		prf = sha1.New
	case 1:
		prf = sha256.New
	case 2:
		prf = sha512.New
	default:
		return false, ErrInvalidHashFormat
	}

	iterations := int(binary.BigEndian.Uint32(raw[5:9]))
	saltLen := int(binary.BigEndian.Uint32(raw[9:13]))
	if iterations <= 0 || saltLen < 16 || len(raw) < identityV3Header+saltLen+16 {
		return false, ErrInvalidHashFormat
	}

	salt := raw[identityV3Header : identityV3Header+saltLen]
	expected := raw[identityV3Header+saltLen:]

	candidate := pbkdf2.Key([]byte(password), salt, iterations, len(expected), prf)
	return subtle.ConstantTimeCompare(expected, candidate) == 1, nil
}
