// Package passwd hashes and verifies passwords.
//
// Hashes are stored in the textual form "$alg$salt$digest$", with salt and
// digest in unpadded standard base64. For bcrypt, the salt field holds the
// cost and the digest field the bcrypt hash, which carries its own salt.
package passwd

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Errors.
var (
	ErrUnsupported = errors.New("unsupported password hash algorithm")
	ErrMalformed   = errors.New("malformed password hash")
)

// Algorithm identifiers.
const (
	PBKDF2   = "pbkdf2"
	Argon2id = "argon2id"
	Bcrypt   = "bcrypt"
)

// DefaultAlgorithm is used by Hash.
const DefaultAlgorithm = PBKDF2

const (
	saltLen          = 16
	keyLen           = 32
	pbkdf2Iterations = 4096
	argon2Time       = 1
	argon2Memory     = 8 * 1024
	argon2Threads    = 1
	bcryptCost       = 10
)

var enc = base64.RawStdEncoding

// Overridden in tests.
var randRead = rand.Read

// Algorithms returns the supported algorithm identifiers.
func Algorithms() []string { return []string{PBKDF2, Argon2id, Bcrypt} }

// Hash hashes a password with DefaultAlgorithm.
func Hash(plain string) (string, error) { return HashWith(DefaultAlgorithm, plain) }

// HashWith hashes a password with the given algorithm.
func HashWith(alg, plain string) (string, error) {
	if alg == Bcrypt {
		h, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
		if err != nil {
			return "", err
		}
		return format(alg, strconv.Itoa(bcryptCost), enc.EncodeToString(h)), nil
	}
	derive, ok := kdfs[alg]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, alg)
	}
	salt := make([]byte, saltLen)
	if _, err := randRead(salt); err != nil {
		return "", err
	}
	return format(alg, enc.EncodeToString(salt), enc.EncodeToString(derive(plain, salt))), nil
}

// Verify reports whether plain matches the stored hash. Hashes with an
// unknown algorithm are rejected with ErrUnsupported, never accepted.
func Verify(plain, stored string) (bool, error) {
	alg, salt, digest, err := split(stored)
	if err != nil {
		return false, err
	}
	if alg == Bcrypt {
		h, err := enc.DecodeString(digest)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		err = bcrypt.CompareHashAndPassword(h, []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		} else if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return true, nil
	}
	derive, ok := kdfs[alg]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnsupported, alg)
	}
	saltBytes, err := enc.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	want, err := enc.DecodeString(digest)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return subtle.ConstantTimeCompare(derive(plain, saltBytes), want) == 1, nil
}

var kdfs = map[string]func(plain string, salt []byte) []byte{
	PBKDF2: func(plain string, salt []byte) []byte {
		return pbkdf2.Key([]byte(plain), salt, pbkdf2Iterations, keyLen, sha256.New)
	},
	Argon2id: func(plain string, salt []byte) []byte {
		return argon2.IDKey([]byte(plain), salt, argon2Time, argon2Memory, argon2Threads, keyLen)
	},
}

func format(alg, salt, digest string) string {
	return "$" + alg + "$" + salt + "$" + digest + "$"
}

func split(stored string) (alg, salt, digest string, err error) {
	fields := strings.Split(stored, "$")
	if len(fields) != 5 || fields[0] != "" || fields[4] != "" || fields[1] == "" {
		return "", "", "", ErrMalformed
	}
	return fields[1], fields[2], fields[3], nil
}
