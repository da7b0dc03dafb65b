package groovy

import (
	"errors"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
	tokOp
)

type token struct {
	kind tokenKind
	text string
	// nl is set when a line break separates this token from the previous one.
	nl bool
}

var errUnterminated = errors.New("groovy: unterminated string or comment")

const opChars = "+-*/%<>!&|^~?=@"

func isIdentStart(r rune) bool { return r == '_' || r == '$' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) }

// lex splits src into tokens. Unterminated strings and block comments are
// closed at end of input and reported through the returned error.
func lex(src string) ([]token, error) {
	var (
		toks []token
		err  error
		nl   bool
		rs   = []rune(src)
		i    = 0
	)
	emit := func(k tokenKind, text string) {
		toks = append(toks, token{kind: k, text: text, nl: nl})
		nl = false
	}

	if strings.HasPrefix(src, "#!") {
		for i < len(rs) && rs[i] != '\n' {
			i++
		}
	}

	for i < len(rs) {
		r := rs[i]
		switch {
		case r == '\n':
			nl = true
			i++
		case unicode.IsSpace(r):
			i++
		case r == '\\' && i+1 < len(rs) && rs[i+1] == '\n':
			// line continuation
			i += 2
		case r == '/' && i+1 < len(rs) && rs[i+1] == '/':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			end := strings.Index(string(rs[i+2:]), "*/")
			if end < 0 {
				err = errUnterminated
				i = len(rs)
				continue
			}
			block := string(rs[i+2:])[:end]
			if strings.Contains(block, "\n") {
				nl = true
			}
			i += 2 + len([]rune(block)) + 2
		case r == '\'' || r == '"':
			s, n, ok := lexString(rs[i:])
			if !ok {
				err = errUnterminated
			}
			emit(tokString, s)
			i += n
		case unicode.IsDigit(r):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '_' ||
				(rs[i] == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1]))) {
				i++
			}
			for i < len(rs) && strings.ContainsRune("lLgGdDfFiI", rs[i]) {
				i++
			}
			emit(tokNumber, string(rs[start:i]))
		case isIdentStart(r):
			start := i
			for i < len(rs) && isIdentPart(rs[i]) {
				i++
			}
			emit(tokIdent, string(rs[start:i]))
		case strings.ContainsRune("()[]{},:;.", r):
			emit(tokPunct, string(r))
			i++
		case strings.ContainsRune(opChars, r):
			start := i
			for i < len(rs) && strings.ContainsRune(opChars, rs[i]) {
				i++
			}
			// ?: and ?. belong to the operator
			if rs[i-1] == '?' && i < len(rs) && (rs[i] == ':' || rs[i] == '.') {
				i++
			}
			emit(tokOp, string(rs[start:i]))
		default:
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF, nl: true})
	return toks, err
}

// lexString reads a quoted string starting at rs[0] and returns its value, the
// number of runes consumed and whether the closing quote was found.
func lexString(rs []rune) (string, int, bool) {
	q := rs[0]
	delim := []rune{q}
	if len(rs) >= 3 && rs[1] == q && rs[2] == q {
		delim = []rune{q, q, q}
	}
	var b strings.Builder
	i := len(delim)
	for i < len(rs) {
		if hasPrefix(rs[i:], delim) {
			return b.String(), i + len(delim), true
		}
		r := rs[i]
		if r == '\n' && len(delim) == 1 {
			return b.String(), i, false
		}
		if r == '\\' && i+1 < len(rs) {
			i++
			switch rs[i] {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(rs[i])
			}
			i++
			continue
		}
		b.WriteRune(r)
		i++
	}
	return b.String(), i, false
}

func hasPrefix(rs, prefix []rune) bool {
	if len(rs) < len(prefix) {
		return false
	}
	for i := range prefix {
		if rs[i] != prefix[i] {
			return false
		}
	}
	return true
}
