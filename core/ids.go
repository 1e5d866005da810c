package core

import (
	"crypto/rand"
)

// idAlphabet is the 62-character alphanumeric alphabet node identifiers
// are drawn from. These ids are opaque, never UUIDs —
// google/uuid is reserved for a different concern, see dispatcher.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// idLength is the fixed length of a generated identifier.
const idLength = 21

// NewID returns a fresh random 21-character alphanumeric identifier,
// drawn from a cryptographically seeded source rather than math/rand.
func NewID() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing means the OS entropy source is gone
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out)
}
