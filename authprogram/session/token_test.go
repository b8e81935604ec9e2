package session

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		tk, err := Mint(rand.Reader, "alice")
		require.NoError(t, err)
		require.NotEqual(t, tk.Key, tk.Body)
		parsed, err := Parse(tk.Encode())
		require.NoError(t, err)
		require.Equal(t, tk, parsed)
	}
}

func TestMintEntropy(t *testing.T) {
	tk, err := Mint(rand.Reader, "alice")
	require.NoError(t, err)
	for _, half := range []string{tk.Key, tk.Body} {
		raw, err := tokenEncoding.DecodeString(half)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(raw)*8, 128)
	}
	require.NotContains(t, tk.Encode(), "alice")

	_, err = Mint(bytes.NewReader([]byte("short")), "alice")
	require.Error(t, err, "a short read from the random source must fail")
}

func TestParseRejectsGarbage(t *testing.T) {
	valid, err := Mint(rand.Reader, "alice")
	require.NoError(t, err)
	for _, input := range []string{
		"",
		".",
		"nodelimiter",
		valid.Key,
		valid.Key + ".",
		"." + valid.Body,
		valid.Key + "." + valid.Body + "." + valid.Body,
		valid.Key + "." + valid.Body[:len(valid.Body)-1] + "*",
		valid.Key + "." + valid.Body + "A",
		strings.Repeat("a", encodedLen) + "." + strings.Repeat("=", encodedLen),
		"\x00\xff\xfe." + string([]byte{0xc3, 0x28}),
	} {
		_, err := Parse(input)
		var malformed MalformedToken
		require.ErrorAs(t, err, &malformed, "input %q should not parse", input)
	}
}

func TestMatches(t *testing.T) {
	tk, err := Mint(rand.Reader, "alice")
	require.NoError(t, err)
	require.True(t, tk.Matches(tk.Body))

	last := tk.Body[len(tk.Body)-1]
	flipped := 'A'
	if last == 'A' {
		flipped = 'B'
	}
	require.False(t, tk.Matches(tk.Body[:len(tk.Body)-1]+string(flipped)))
	require.False(t, tk.Matches(tk.Body[:len(tk.Body)-1]))
	require.False(t, tk.Matches(""))
	require.False(t, Token{Key: tk.Key}.Matches(""))
}

func TestTokenNeverLogsBody(t *testing.T) {
	tk, err := Mint(rand.Reader, "alice")
	require.NoError(t, err)
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	log.Info().Object("token", tk).Msg("minted")
	require.Contains(t, buf.String(), tk.Key)
	require.NotContains(t, buf.String(), tk.Body)
	require.NotContains(t, tk.String(), tk.Body)
}
