package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

const (
	// DefaultMinPasswordBytes is applied when Config.MinPasswordBytes is zero.
	DefaultMinPasswordBytes = 8
	// DefaultMaxPasswordBytes is applied when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned by Hash when the password is below MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash and Verify when the password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash is returned when a stored digest is not a supported PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config holds Argon2id cost parameters and password length bounds.
//
// Zero MinPasswordBytes and MaxPasswordBytes select defaults (8 and 1024 bytes).
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
}

// Argon2 hashes and verifies passwords using Argon2id.
//
// Argon2 instances are immutable after construction and safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinPasswordBytes == 0 {
		cfg.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id digest of password.
//
// Hash fails with ErrPasswordTooShort or ErrPasswordTooLong when the password is outside
// the configured byte bounds.
func (a *Argon2) Hash(password string) (string, error) {
	// Raw bytes, no Unicode normalization.
	if len(password) < a.config.MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	d := digest{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, d.salt); err != nil {
		return "", err
	}
	d.key = d.derive(password, a.config.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches encodedHash.
//
// A malformed digest yields an error wrapping ErrInvalidHash; a mismatch yields (false, nil).
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}

	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	computed := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters than
// the current configuration. Login uses it to rehash transparently.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	d, err := parseDigest(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > d.memory ||
		a.config.Time > d.time ||
		a.config.Parallelism > d.parallelism ||
		a.config.KeyLength != uint32(len(d.key)), nil
}

// digest is one decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d digest) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		d.memory,
		d.time,
		d.parallelism,
		base64.StdEncoding.EncodeToString(d.salt),
		base64.StdEncoding.EncodeToString(d.key),
	)
}

func invalidHash(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, reason)
}

func parseDigest(encoded string) (digest, error) {
	var d digest

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return d, invalidHash("invalid PHC format")
	}
	if fields[1] != algorithmID {
		return d, invalidHash("unsupported algorithm")
	}

	rawVersion, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return d, invalidHash("missing argon2 version")
	}
	if v, err := strconv.Atoi(rawVersion); err != nil || v != argon2.Version {
		return d, invalidHash("unsupported argon2 version")
	}

	if err := d.parseParams(fields[3]); err != nil {
		return d, err
	}

	var err error
	if d.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil {
		return d, invalidHash("invalid salt encoding")
	}
	if len(d.salt) < int(minSaltLength) {
		return d, invalidHash("invalid salt length")
	}
	if d.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil {
		return d, invalidHash("invalid hash encoding")
	}
	if len(d.key) == 0 {
		return d, invalidHash("invalid hash length")
	}
	return d, nil
}

// parseParams reads "m=..,t=..,p=.." in any order. Each key must appear once.
func (d *digest) parseParams(part string) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return invalidHash("invalid parameter format")
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return invalidHash("invalid parameter entry")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return invalidHash("invalid memory parameter")
			}
			d.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return invalidHash("invalid time parameter")
			}
			d.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return invalidHash("invalid parallelism parameter")
			}
			d.parallelism = uint8(v)
		default:
			return invalidHash("unsupported parameter")
		}
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case c.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case c.MinPasswordBytes < 1:
		return errors.New("password min length must be >= 1")
	case c.MaxPasswordBytes < c.MinPasswordBytes:
		return errors.New("password max length must be >= min length")
	}
	return nil
}
