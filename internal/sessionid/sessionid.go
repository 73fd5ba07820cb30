// Package sessionid generates the short opaque identifiers that bind all
// chunks and ACKs of one transaction send together. Per spec §4.2 and the
// redesign in spec.md §9, identifiers are drawn purely from a cryptographic
// random source; wall-clock-derived entropy is deliberately never used,
// since a collision within the server's active window is detected by the
// total_chunks/sender-pinning rule (§3), not avoided at generation time.
package sessionid

import (
	"crypto/rand"
	"fmt"
)

// Length is the number of hex characters in a generated session id.
const Length = 5

const hexAlphabet = "0123456789abcdef"

// New returns a fresh 5-character lowercase hex session id.
func New() (string, error) {
	// 5 hex characters need 20 bits; draw 3 random bytes (24 bits) and
	// discard the spare nibble rather than bias the distribution with a
	// modulo over an odd-sized alphabet.
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sessionid: read random: %w", err)
	}

	nibbles := []byte{
		buf[0] >> 4, buf[0] & 0x0f,
		buf[1] >> 4, buf[1] & 0x0f,
		buf[2] >> 4,
	}

	out := make([]byte, Length)
	for i, nib := range nibbles {
		out[i] = hexAlphabet[nib]
	}
	return string(out), nil
}

// MustNew is New but panics on failure to read the random source, for call
// sites where there is no sensible way to continue without an id (e.g. a
// CLI entry point before any flags have been validated).
func MustNew() string {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}
