package fingerprint

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	text := "The goblin strikes you for 7 damage."

	first := Hash(text)
	for i := 0; i < 10; i++ {
		if got := Hash(text); got != first {
			t.Fatalf("Hash() iteration %d = %q, want %q", i, got, first)
		}
	}
}

func TestHash_EmptyIsSentinel(t *testing.T) {
	if got := Hash(""); got != Empty {
		t.Errorf("Hash(\"\") = %q, want sentinel %q", got, Empty)
	}
}

func TestHash_SentinelDistinctFromRealHashes(t *testing.T) {
	// Base-36 output is [0-9a-z] only, so the sentinel can never collide
	// with a real fingerprint.
	inputs := []string{"a", " ", "0", "-", "the end", strings.Repeat("x", 2000)}
	for _, in := range inputs {
		if got := Hash(in); got == Empty {
			t.Errorf("Hash(%q) = sentinel %q, want a real fingerprint", in, Empty)
		}
	}
}

func TestHash_DifferentTextDiffers(t *testing.T) {
	pairs := [][2]string{
		{"you take 5 damage", "you take 6 damage"},
		{"abc", "acb"},
		{"turn one", "turn one "},
	}
	for _, p := range pairs {
		if Hash(p[0]) == Hash(p[1]) {
			t.Errorf("Hash(%q) == Hash(%q), want different fingerprints", p[0], p[1])
		}
	}
}

func TestHash_NFCNormalization(t *testing.T) {
	// U+00E9 vs e + U+0301 combining acute: same text after NFC.
	composed := "café"
	decomposed := "café"

	if Hash(composed) != Hash(decomposed) {
		t.Errorf("NFC-equal inputs produced different fingerprints: %q vs %q",
			Hash(composed), Hash(decomposed))
	}
}

func TestHash_SupplementaryPlane(t *testing.T) {
	// Characters outside the BMP encode as surrogate pairs; the fold must
	// still be deterministic and distinct from the BMP-only prefix.
	withEmoji := "victory \U0001F3C6"
	if Hash(withEmoji) == Hash("victory ") {
		t.Error("supplementary-plane code units did not affect the fingerprint")
	}
	if Hash(withEmoji) != Hash(withEmoji) {
		t.Error("fingerprint of supplementary-plane text is not deterministic")
	}
}
