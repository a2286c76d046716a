package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort     = errors.New("password must be at least 10 bytes")
	ErrPasswordTooLong      = errors.New("password exceeds maximum length")
	ErrInvalidHash          = errors.New("invalid password hash")
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
	ErrInvalidConfig        = errors.New("invalid password hasher config")
)

// Hasher is the credential hasher the engine depends on.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

var _ Hasher = (*Argon2)(nil)

// IsBcrypt reports whether encodedHash is a bcrypt modular-crypt string.
func IsBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, errors.Join(ErrInvalidHash, err)
	}
}
