package logic

import (
	"strings"
	"unicode"

	"github.com/brunokim/resolve/runes"
)

func isIdent(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isIdents(text string) bool {
	for _, ch := range text {
		if !isIdent(ch) {
			return false
		}
	}
	return true
}

func isVarFirst(ch rune) bool {
	return ch == '_' || unicode.IsUpper(ch)
}

func singleRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	return runes.Single(s)
}

// IsVar returns whether text is a valid variable name.
func IsVar(text string) bool {
	ch, ok := runes.First(text)
	if !ok || !isVarFirst(ch) {
		return false
	}
	return isIdents(text)
}

// IsInt returns whether text is a sequence of digits.
func IsInt(text string) bool {
	if text == "" {
		return false
	}
	for _, ch := range text {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

var escapeChars = map[rune]string{
	' ':  " ",
	'\n': "\\n",
	'\t': "\\t",
	'\v': "\\v",
	'\f': "\\f",
	'\r': "\\r",
	',':  ",",
	'(':  "(",
	')':  ")",
	'[':  "[",
	']':  "]",
	'{':  "{",
	'}':  "}",
	'"':  "\\\"",
	'\\': "\\\\",
}

var symbolAtoms = map[string]bool{
	"[]": true, "!": true, ";": true, ",": true, "{}": true,
}

func needsQuote(text string) bool {
	if text == "" {
		return true
	}
	if symbolAtoms[text] {
		return false
	}
	for _, ch := range text {
		if _, ok := escapeChars[ch]; ok {
			return true
		}
	}
	ch, _ := runes.First(text)
	if isVarFirst(ch) || unicode.IsDigit(ch) {
		return true
	}
	if isIdents(text) {
		return false
	}
	// Atoms made only of symbols, like '=..' or '\+', don't need quotes.
	for _, ch := range text {
		if isIdent(ch) {
			return true
		}
	}
	return false
}

// FormatAtom returns the representation of an atom, quoting it if necessary.
func FormatAtom(text string) string {
	if !needsQuote(text) {
		return text
	}
	return quote('\'', []rune(text))
}

// FormatString returns the representation of a list of single-rune atoms.
func FormatString(chars []rune) string {
	return quote('"', chars)
}

func quote(delim rune, chars []rune) string {
	var b strings.Builder
	b.WriteRune(delim)
	for _, ch := range chars {
		if ch == delim && delim == '\'' {
			b.WriteString("\\'")
		} else if exp, ok := escapeChars[ch]; ok {
			b.WriteString(exp)
		} else {
			b.WriteRune(ch)
		}
	}
	b.WriteRune(delim)
	return b.String()
}
