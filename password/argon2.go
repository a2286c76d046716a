package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
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

	// MinPasswordBytes is the shortest password Hash accepts.
	MinPasswordBytes = 10
	// DefaultMaxPasswordBytes caps input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the work an attacker can request per hash.
	MaxPasswordBytes int
}

// DefaultConfig returns OWASP-recommended Argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Argon2 hashes and verifies PHC-encoded Argon2id hashes.
//
// An Argon2 is immutable after construction and safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives a new PHC string for password with a fresh random salt.
//
// Hash returns ErrPasswordTooShort or ErrPasswordTooLong for out-of-range
// input. Password bytes are used exactly as provided, without Unicode
// normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(password, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash. A malformed hash is
// an error; a mismatch is (false, nil). bcrypt hashes from earlier
// deployments are accepted so they can be upgraded on next login.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	if IsBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := parsed.derive(password, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's current configuration. Legacy bcrypt hashes
// always need an upgrade.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	if IsBcrypt(encodedHash) {
		return true, nil
	}
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.key))
	return weaker, nil
}

// phc is one $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func invalidHash(what string) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, what)
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, invalidHash("invalid PHC format")
	}
	if fields[1] != algorithmID {
		return p, ErrUnsupportedAlgorithm
	}

	v, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return p, invalidHash("missing argon2 version")
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return p, invalidHash("invalid argon2 version")
	}
	if version != argon2.Version {
		return p, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedAlgorithm, version)
	}

	if err := p.parseParams(fields[3]); err != nil {
		return p, err
	}

	if p.salt, err = decodeB64(fields[4]); err != nil {
		return p, invalidHash("invalid salt encoding")
	}
	if len(p.salt) < int(minSaltLength) {
		return p, invalidHash("invalid salt length")
	}
	if p.key, err = decodeB64(fields[5]); err != nil {
		return p, invalidHash("invalid hash encoding")
	}
	if len(p.key) == 0 {
		return p, invalidHash("invalid hash length")
	}
	return p, nil
}

// parseParams reads "m=..,t=..,p=.." in any order. Each key must appear
// exactly once.
func (p *phc) parseParams(field string) error {
	entries := strings.Split(field, ",")
	if len(entries) != 3 {
		return invalidHash("invalid parameter format")
	}

	seen := make(map[string]bool, 3)
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || seen[k] {
			return invalidHash("invalid parameter entry")
		}
		seen[k] = true

		bits := 32
		if k == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return invalidHash("invalid " + k + " parameter")
		}

		switch k {
		case "m":
			if n < uint64(minMemoryKB) {
				return invalidHash("invalid memory parameter")
			}
			p.memory = uint32(n)
		case "t":
			if n < uint64(minTimeCost) {
				return invalidHash("invalid time parameter")
			}
			p.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) {
				return invalidHash("invalid parallelism parameter")
			}
			p.parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: unsupported parameter %q", ErrInvalidHash, k)
		}
	}
	return nil
}

func decodeB64(s string) ([]byte, error) {
	// Older hashes were written with padding.
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, minMemoryKB)
	case cfg.Time < minTimeCost:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTimeCost)
	case cfg.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	case cfg.MaxPasswordBytes < MinPasswordBytes:
		return fmt.Errorf("%w: max password bytes must be >= %d", ErrInvalidConfig, MinPasswordBytes)
	}

	return nil
}
