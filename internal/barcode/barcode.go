// Package barcode normalizes, classifies and checksum-validates scanned
// book identifiers. Every function is pure.
package barcode

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Type is the symbology a normalized code was recognized as.
type Type string

const (
	TypeISBN10  Type = "ISBN10"
	TypeISBN13  Type = "ISBN13"
	TypeEAN8    Type = "EAN8"
	TypeUPCA    Type = "UPCA"
	TypeUPCE    Type = "UPCE"
	TypeUnknown Type = "UNKNOWN"
)

// ErrNotISBN10 is returned by ISBN10ToISBN13 for input that is not a valid ISBN-10.
var ErrNotISBN10 = errors.New("not a valid ISBN-10")

// Code is the result of parsing a raw scan.
type Code struct {
	Raw        string
	Normalized string
	Type       Type
	Valid      bool
}

// ValidationError reports a scan that is not a usable book barcode.
type ValidationError struct {
	Raw    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid barcode %q: %s", e.Raw, e.Reason)
}

// Normalize strips hyphens and whitespace. A lowercase x is upper-cased so
// ISBN-10 check digits compare equal.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		if r == 'x' {
			r = 'X'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse normalizes and classifies a raw scan.
func Parse(raw string) Code {
	normalized := Normalize(raw)
	t := Classify(normalized)
	return Code{
		Raw:        raw,
		Normalized: normalized,
		Type:       t,
		Valid:      t != TypeUnknown,
	}
}

// Validate parses raw and returns a *ValidationError when it is not a book barcode.
func Validate(raw string) (Code, error) {
	code := Parse(raw)
	if code.Normalized == "" {
		return code, &ValidationError{Raw: raw, Reason: "empty scan"}
	}
	if !code.Valid {
		return code, &ValidationError{Raw: raw, Reason: "checksum or length mismatch"}
	}
	return code, nil
}

// Classify returns the symbology of an already normalized code, or
// TypeUnknown when no rule validates.
func Classify(normalized string) Type {
	switch len(normalized) {
	case 10:
		if validISBN10(normalized) {
			return TypeISBN10
		}
	case 13:
		if validMod10(normalized, 1, 3) {
			return TypeISBN13
		}
	case 12:
		if validMod10(normalized, 3, 1) {
			return TypeUPCA
		}
	case 8:
		if validMod10(normalized, 3, 1) {
			return TypeEAN8
		}
	}
	// any 6 to 8 digit code that failed the rules above, bad EAN-8 included
	if validUPCE(normalized) {
		return TypeUPCE
	}
	return TypeUnknown
}

// IsBookBarcode reports whether code validates under any supported rule.
func IsBookBarcode(code Code) bool {
	normalized := code.Normalized
	if normalized == "" {
		normalized = Normalize(code.Raw)
	}
	return Classify(normalized) != TypeUnknown
}

// LookupIdentifier is the identifier sent to a catalog provider. ISBN-10
// codes are promoted to ISBN-13.
func LookupIdentifier(code Code) string {
	if code.Type == TypeISBN10 {
		if isbn13, err := ISBN10ToISBN13(code.Normalized); err == nil {
			return isbn13
		}
	}
	return code.Normalized
}

// ISBN10ToISBN13 prepends 978 to the first nine digits and recomputes the check digit.
func ISBN10ToISBN13(isbn10 string) (string, error) {
	isbn10 = Normalize(isbn10)
	if len(isbn10) != 10 || !validISBN10(isbn10) {
		return "", ErrNotISBN10
	}
	first12 := "978" + isbn10[:9]
	check, err := CheckDigitISBN13(first12)
	if err != nil {
		return "", err
	}
	return first12 + string(check), nil
}

// CheckDigitISBN13 computes the EAN-13 check digit for twelve digits.
func CheckDigitISBN13(first12 string) (byte, error) {
	if len(first12) != 12 || !allDigits(first12) {
		return 0, fmt.Errorf("check digit: want 12 digits, got %q", first12)
	}
	return '0' + byte(mod10Check(first12, 1, 3)), nil
}

func validISBN10(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

// validMod10 checks the final digit of s against the weighted sum of the
// preceding digits, alternating first and second weights from the left.
func validMod10(s string, first, second int) bool {
	if len(s) < 2 || !allDigits(s) {
		return false
	}
	body := s[:len(s)-1]
	return int(s[len(s)-1]-'0') == mod10Check(body, first, second)
}

func mod10Check(body string, first, second int) int {
	sum := 0
	for i := 0; i < len(body); i++ {
		w := first
		if i%2 == 1 {
			w = second
		}
		sum += int(body[i]-'0') * w
	}
	return (10 - sum%10) % 10
}

// UPC-E is accepted on length alone.
func validUPCE(s string) bool {
	return len(s) >= 6 && len(s) <= 8 && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
