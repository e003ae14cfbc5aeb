// Package fileext validates user-supplied file extensions such as ".tar.gz".
package fileext

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxLength is the maximum extension length in bytes.
const MaxLength = 32

// Reason identifies which grammar rule an extension violated.
type Reason int

const (
	ReasonNotAlphanumeric Reason = iota + 1
	ReasonMissingLeadingDot
	ReasonConsecutiveDots
	ReasonTrailingDot
	ReasonEmpty
	ReasonTooLong
)

// Error describes why an extension was rejected.
type Error struct {
	Reason Reason
	// Char is the offending rune for ReasonNotAlphanumeric and ReasonMissingLeadingDot.
	Char rune
	// Length is the rejected length for ReasonTooLong.
	Length int
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonNotAlphanumeric:
		return fmt.Sprintf("file extension must be alphanumeric, but got non-alphanumeric '%c'", e.Char)
	case ReasonMissingLeadingDot:
		return fmt.Sprintf("expected first character of file extension to be a dot, but got '%c'", e.Char)
	case ReasonConsecutiveDots:
		return "file extension contains multiple dots in a row, which isn't allowed"
	case ReasonTrailingDot:
		return "file extension must end with an alphanumeric character, not a dot"
	case ReasonEmpty:
		return "file extension must not be specified as empty"
	case ReasonTooLong:
		return fmt.Sprintf("file extension must be limited to %d characters, but got %d", MaxLength, e.Length)
	default:
		return "invalid file extension"
	}
}

// Ext is an extension that passed validation.
type Ext string

func (e Ext) String() string { return string(e) }

type state int

const (
	wantDot state = iota
	wantLetters
	wantLettersOrDot
)

// Parse checks value against the grammar `(\.[[:alnum:]]+)+` with a length cap.
func Parse(value string) (Ext, error) {
	if len(value) > MaxLength {
		return "", &Error{Reason: ReasonTooLong, Length: len(value)}
	}

	st := wantDot
	for i := 0; i < len(value); {
		r, size := utf8.DecodeRuneInString(value[i:])
		i += size

		switch st {
		case wantDot:
			if r != '.' {
				return "", &Error{Reason: ReasonMissingLeadingDot, Char: r}
			}
			st = wantLetters
		case wantLetters:
			if r == '.' {
				return "", &Error{Reason: ReasonConsecutiveDots}
			}
			if !isAlphanumeric(r) {
				return "", &Error{Reason: ReasonNotAlphanumeric, Char: r}
			}
			st = wantLettersOrDot
		case wantLettersOrDot:
			if r == '.' {
				st = wantLetters
				continue
			}
			if !isAlphanumeric(r) {
				return "", &Error{Reason: ReasonNotAlphanumeric, Char: r}
			}
		}
	}

	switch st {
	case wantDot:
		return "", &Error{Reason: ReasonEmpty}
	case wantLetters:
		return "", &Error{Reason: ReasonTrailingDot}
	default:
		return Ext(value), nil
	}
}

func isAlphanumeric(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
