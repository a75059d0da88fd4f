package webmet

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Text is a text field from the archive together with the outcome of
// encoding recovery. When RecoveryFailed is set, Value holds the upstream
// bytes verbatim so nothing is corrupted further downstream.
type Text struct {
	Value          string `json:"value"`
	RecoveryFailed bool   `json:"recoveryFailed,omitempty"`
}

// The archive stores names as UTF-8, but a transport layer re-decodes the
// bytes through an 8-bit code page before serving them, so "ČEŠNJICA"
// arrives as "ÄEÅ NJICA". Undoing that means mapping each rune
// back to its single byte and reading the result as UTF-8 again.
var recoveryCodePages = []*charmap.Charmap{
	charmap.ISO8859_1,
	charmap.Windows1252,
}

// NewText runs encoding recovery on an upstream text field.
func NewText(raw string) Text {
	recovered, ok := recoverText(raw)
	return Text{Value: recovered, RecoveryFailed: !ok}
}

// recoverText undoes double-encoded UTF-8. It reports ok when the input
// either needed no recovery (plain ASCII) or a code-page round-trip
// produced valid UTF-8; otherwise it returns the input unchanged.
func recoverText(s string) (string, bool) {
	if isASCII(s) {
		return s, true
	}
	mapped := false
	for _, cp := range recoveryCodePages {
		// The encoder is strict: any rune without a byte in this code
		// page fails the attempt instead of being substituted.
		raw, err := cp.NewEncoder().String(s)
		if err != nil {
			continue
		}
		mapped = true
		if utf8.ValidString(raw) {
			return raw, true
		}
	}
	if !mapped {
		// Runes outside every recovery code page cannot be the product
		// of a code-page round-trip; the text is already decoded.
		return s, true
	}
	return s, false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
