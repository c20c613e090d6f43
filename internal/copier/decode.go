package copier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// Decode turns raw file bytes into UTF-8 text according to mode.
//
//   - DecodeIgnore drops every invalid byte sequence and never fails.
//   - DecodeReplace turns each invalid sequence into U+FFFD and never fails.
//   - DecodeStrict returns an error if raw is not valid UTF-8.
//
// Valid input is returned unchanged in every mode.
func Decode(raw []byte, mode model.DecodeMode) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	switch mode {
	case model.DecodeReplace:
		text, _, err := transform.String(runes.ReplaceIllFormed(), string(raw))
		if err != nil {
			return "", fmt.Errorf("replacing ill-formed UTF-8: %w", err)
		}
		return text, nil
	case model.DecodeStrict:
		return "", fmt.Errorf("invalid UTF-8 at byte offset %d", invalidOffset(raw))
	default:
		return strings.ToValidUTF8(string(raw), ""), nil
	}
}

// invalidOffset returns the index of the first byte that starts an invalid
// UTF-8 sequence, or -1 if raw is valid.
func invalidOffset(raw []byte) int {
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
