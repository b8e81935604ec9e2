package authprogram

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

type (
	// HashParams are the argon2id work parameters of new hashes. Existing
	// hashes always verify with the parameters embedded in them.
	HashParams struct {
		Time    uint32
		Memory  uint32
		Threads uint8
		SaltLen uint32
		KeyLen  uint32
	}
)

const (
	hashAlgorithm = "argon2id"
	// upper bound accepted from stored hashes (4 GiB in KiB)
	maxMemory = 4 * 1024 * 1024
)

var (
	// DefaultHashParams: 3 passes over 64 MiB of ram.
	DefaultHashParams = HashParams{
		Time:    3,
		Memory:  64 * 1024,
		Threads: 2,
		SaltLen: 16,
		KeyLen:  32,
	}

	hashEncoding = base64.RawStdEncoding

	// decoyParams are used for the hash checked when a user does not exist
	decoyParams = DefaultHashParams
	decoyOnce   sync.Once
	decoyHash   string
	verifyDecoy = func(passwd PlainText) {
		decoyOnce.Do(func() {
			decoyHash, _ = HashPassword(rand.Reader, PlainText("decoy"), decoyParams)
		})
		VerifyPassword(passwd, decoyHash)
	}
)

// HashPassword derives a fresh salt from rnd and returns the PHC encoded
// argon2id hash of passwd, for example
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<digest>.
func HashPassword(rnd io.Reader, passwd PlainText, p HashParams) (string, error) {
	salt := make([]byte, p.SaltLen)
	_, err := io.ReadFull(rnd, salt)
	if err != nil {
		return "", HashingError{cause: err}
	}
	digest := argon2.IDKey(passwd, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("$%v$v=%d$m=%d,t=%d,p=%d$%v$%v", hashAlgorithm, argon2.Version,
		p.Memory, p.Time, p.Threads,
		hashEncoding.EncodeToString(salt), hashEncoding.EncodeToString(digest)), nil
}

// VerifyPassword recomputes the digest of passwd with the parameters and
// salt found in encoded. A wrong password is (false, nil); only a corrupt
// encoded hash returns an error.
func VerifyPassword(passwd PlainText, encoded string) (bool, error) {
	p, salt, digest, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	actual := argon2.IDKey(passwd, salt, p.Time, p.Memory, p.Threads, uint32(len(digest)))
	return subtle.ConstantTimeCompare(actual, digest) == 1, nil
}

func decodeHash(encoded string) (HashParams, []byte, []byte, error) {
	var p HashParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, MalformedHash{Reason: "unexpected number of fields"}
	}
	if parts[1] != hashAlgorithm {
		return p, nil, nil, MalformedHash{Reason: fmt.Sprintf("unsupported algorithm %q", parts[1])}
	}
	var version int
	_, err := fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil || version != argon2.Version {
		return p, nil, nil, MalformedHash{Reason: "unsupported version"}
	}
	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads)
	if err != nil {
		return p, nil, nil, MalformedHash{Reason: "invalid parameters"}
	}
	if p.Time == 0 || p.Threads == 0 || p.Memory < 8*uint32(p.Threads) || p.Memory > maxMemory {
		return p, nil, nil, MalformedHash{Reason: "parameters out of range"}
	}
	salt, err := hashEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, MalformedHash{Reason: "invalid salt"}
	}
	digest, err := hashEncoding.DecodeString(parts[5])
	if err != nil || len(digest) < 4 {
		return p, nil, nil, MalformedHash{Reason: "invalid digest"}
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(digest))
	return p, salt, digest, nil
}
