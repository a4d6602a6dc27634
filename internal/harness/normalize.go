package harness

import (
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	invisibleReplacer = strings.NewReplacer("\ufeff", "", "\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "")
	trueWord          = regexp.MustCompile(`(?i)\btrue\b`)
	falseWord         = regexp.MustCompile(`(?i)\bfalse\b`)
	numberToken       = regexp.MustCompile(`[+-]?(?:\d+\.\d+|\d+\.|\.\d+|\d+)(?:[eE][+-]?\d+)?`)
)

// Equal reports whether two program outputs are structurally the same.
func Equal(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}

// Normalize rewrites output so that formatting differences do not affect
// comparison. A JSON document becomes canonical JSON; output whose every
// non-empty line is JSON is canonicalized per line; anything else gets
// structure-aware whitespace cleanup plus boolean and number normalization.
// Sequence order and values are never changed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	pre := invisibleReplacer.Replace(norm.NFC.String(text))
	trimmed := strings.TrimSpace(pre)
	if canon, err := CanonicalJSON(trimmed); err == nil {
		return canon
	}
	unified := strings.ReplaceAll(strings.ReplaceAll(pre, "\r\n", "\n"), "\r", "\n")
	if out, ok := normalizeJSONLines(strings.TrimSpace(unified)); ok {
		return out
	}
	return normalizeText(unified)
}

func normalizeJSONLines(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		canon, err := CanonicalJSON(s)
		if err != nil {
			return "", false
		}
		out[i] = canon
	}
	return strings.TrimRightFunc(strings.Join(out, "\n"), unicode.IsSpace), true
}

func normalizeText(text string) string {
	var out strings.Builder
	depth := 0
	var quote, prevNonSpace, last rune
	write := func(r rune) {
		out.WriteRune(r)
		last = r
		if !unicode.IsSpace(r) {
			prevNonSpace = r
		}
	}
	runes := []rune(text)
	for i, c := range runes {
		if quote != 0 {
			write(c)
			if c == quote && !escaped(runes, i) {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			write(c)
			continue
		}
		switch c {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			if depth > 0 {
				depth--
			}
		}
		if depth > 0 {
			if unicode.IsSpace(c) {
				next := nextNonSpace(runes, i+1)
				if prevNonSpace == 0 || next == 0 || strings.ContainsRune("[{(,:=", prevNonSpace) || strings.ContainsRune("]}),:=", next) {
					continue
				}
				if last != ' ' {
					write(' ')
				}
				continue
			}
			write(c)
			continue
		}
		if c == '\n' {
			s := strings.TrimRightFunc(out.String(), func(r rune) bool { return r != '\n' && unicode.IsSpace(r) })
			out.Reset()
			out.WriteString(s)
		}
		write(c)
	}

	lines := strings.Split(out.String(), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = trueWord.ReplaceAllString(line, "true")
		line = falseWord.ReplaceAllString(line, "false")
		lines[i] = normalizeNumbers(line)
	}
	return strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace)
}

// normalizeNumbers rewrites standalone numeric tokens into plain decimal
// form without redundant zeros. Tokens glued to identifiers are kept.
func normalizeNumbers(line string) string {
	matches := numberToken.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] > 0 && isIdentByte(line[m[0]-1]) {
			continue
		}
		b.WriteString(line[last:m[0]])
		b.WriteString(plainNumber(line[m[0]:m[1]]))
		last = m[1]
	}
	b.WriteString(line[last:])
	return b.String()
}

func plainNumber(token string) string {
	r, ok := new(big.Rat).SetString(strings.TrimPrefix(token, "+"))
	if !ok {
		return token
	}
	if r.Sign() == 0 {
		return "0"
	}
	s, err := exactDecimal(strings.TrimPrefix(token, "+"))
	if err != nil {
		return token
	}
	return s
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func escaped(runes []rune, pos int) bool {
	n := 0
	for i := pos - 1; i >= 0 && runes[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func nextNonSpace(runes []rune, start int) rune {
	for i := start; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			return runes[i]
		}
	}
	return 0
}
