// Package fingerprint computes fast, non-cryptographic fingerprints of turn
// text. Fingerprints are used ONLY for equality checks between the ledger
// and the host timeline - they are a change detector, not a security
// primitive.
package fingerprint

import (
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Empty is the sentinel fingerprint for empty or absent text.
//
// Real fingerprints are base-36 renderings of a 32-bit fold, so they never
// contain '-'. The sentinel is therefore distinct from any real hash.
const Empty = "-"

// multiplier for the rolling polynomial fold. Same role as the classic
// Java String.hashCode constant: small, odd, prime-ish, good dispersion
// for natural-language text of tens to low-thousands of characters.
const multiplier = 31

// Hash returns the fingerprint of text.
//
// The text is NFC-normalized, then folded code unit by code unit over its
// UTF-16 encoding into a 32-bit accumulator, rendered base-36. Normalizing
// at the hashing boundary keeps visually identical text from producing
// divergent fingerprints when the host re-encodes a turn.
//
// Deterministic across runs and platforms. Collisions are unlikely for the
// expected input lengths but not impossible; callers must treat equality as
// "unchanged" and inequality as "changed", never as identity proof.
func Hash(text string) string {
	if text == "" {
		return Empty
	}

	normalized := norm.NFC.String(text)

	var h uint32
	for _, cu := range utf16.Encode([]rune(normalized)) {
		h = h*multiplier + uint32(cu)
	}

	return strconv.FormatUint(uint64(h), 36)
}
