package session

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

type (
	// Token is one issued session. Key names the cache slot and may be
	// shown anywhere; Body proves the holder got the cookie from us and is
	// only ever compared.
	Token struct {
		Key  string
		Body string
	}
)

const (
	// tokenBytes of entropy for each half of a token.
	tokenBytes = 24
	delimiter  = "."
)

var (
	// URL-safe alphabet without padding, it never produces the delimiter.
	tokenEncoding = base64.RawURLEncoding
	encodedLen    = tokenEncoding.EncodedLen(tokenBytes)
)

// Mint generates a new token from rnd. The user is not embedded in either
// half of the token, so the cookie carries no identity.
func Mint(rnd io.Reader, user string) (Token, error) {
	var buf [tokenBytes * 2]byte
	_, err := io.ReadFull(rnd, buf[:])
	if err != nil {
		return Token{}, fmt.Errorf("unable to mint session for %v, cause %w", user, err)
	}
	return Token{
		Key:  tokenEncoding.EncodeToString(buf[:tokenBytes]),
		Body: tokenEncoding.EncodeToString(buf[tokenBytes:]),
	}, nil
}

// Encode returns the cookie value for t.
func (t Token) Encode() string {
	return t.Key + delimiter + t.Body
}

// Parse is the inverse of Encode. Any input is acceptable, invalid cookies
// are reported as MalformedToken.
func Parse(value string) (Token, error) {
	key, body, found := strings.Cut(value, delimiter)
	switch {
	case !found:
		return Token{}, MalformedToken{Reason: "missing delimiter"}
	case key == "" || body == "":
		return Token{}, MalformedToken{Reason: "empty field"}
	case len(key) != encodedLen || len(body) != encodedLen:
		return Token{}, MalformedToken{Reason: "unexpected length"}
	}
	for _, field := range []string{key, body} {
		raw, err := tokenEncoding.DecodeString(field)
		if err != nil || len(raw) != tokenBytes {
			return Token{}, MalformedToken{Reason: "invalid alphabet"}
		}
	}
	return Token{Key: key, Body: body}, nil
}

// Matches compares the body of t against the one kept in the cache, in
// constant time.
func (t Token) Matches(cached string) bool {
	if len(t.Body) == 0 || len(cached) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.Body), []byte(cached)) == 1
}

func (t Token) String() string {
	return fmt.Sprintf("session(%v)", t.Key)
}

func (t Token) MarshalZerologObject(e *zerolog.Event) {
	e.Str("key", t.Key)
}
