// Package ulid generates time-ordered, collision-resistant identifiers:
// 10 characters of Crockford base32 encoding the current millisecond
// timestamp (48 bits) followed by 16 characters encoding 80 random bits.
package ulid

import (
	"crypto/rand"
	"time"
)

// Encoding is Crockford's base32 alphabet (no I, L, O, U).
const Encoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Len is the length of a generated identifier.
const Len = 26

// Generate returns a new 26-character identifier for the current time.
// Identifiers generated in the same millisecond differ only by their
// random suffix and carry no ordering relative to each other.
func Generate() string {
	return generate(time.Now().UnixMilli())
}

func generate(ms int64) string {
	var b [Len]byte

	// Timestamp: 48 bits, most significant first, so the prefix sorts
	// lexicographically by creation time.
	for i := 9; i >= 0; i-- {
		b[i] = Encoding[ms&0x1F]
		ms >>= 5
	}

	// Randomness: 80 bits from crypto/rand.
	var r [10]byte
	if _, err := rand.Read(r[:]); err != nil {
		// crypto/rand reading from the OS does not fail in practice;
		// a failure here means the process environment is broken.
		panic(err)
	}

	var acc uint32
	bits := 0
	pos := 10
	for _, v := range r {
		acc = acc<<8 | uint32(v)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b[pos] = Encoding[(acc>>uint(bits))&0x1F]
			pos++
		}
	}

	return string(b[:])
}
