package pyparse

import (
	"fmt"
	"strings"
)

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tNumber
	tString
	tPunct
)

type tok struct {
	kind tokKind
	text string
}

var twoCharOps = []string{"==", "!=", "<=", ">="}

// tokenize turns a Python expression fragment into a flat token stream.
// It deliberately understands only the closed grammar spec §4.H names;
// any byte it cannot classify is reported as an error, which callers
// treat as "emit ComplexPython" rather than a hard failure.
func tokenize(s string) ([]tok, error) {
	var toks []tok
	i := 0
	n := len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentCont(s[j]) {
				j++
			}
			toks = append(toks, tok{tIdent, s[i:j]})
			i = j
		case isDigit(c):
			j := i + 1
			for j < n && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, tok{tNumber, s[i:j]})
			i = j
		case c == '\'' || c == '"':
			quote := c
			var b strings.Builder
			j := i + 1
			closed := false
			for j < n {
				if s[j] == '\\' && j+1 < n {
					b.WriteByte(s[j+1])
					j += 2
					continue
				}
				if s[j] == quote {
					closed = true
					j++
					break
				}
				b.WriteByte(s[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at byte %d", i)
			}
			toks = append(toks, tok{tString, b.String()})
			i = j
		default:
			matched := false
			for _, op := range twoCharOps {
				if strings.HasPrefix(s[i:], op) {
					toks = append(toks, tok{tPunct, op})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.ContainsRune("()[]{},.:<>+", rune(c)) {
				toks = append(toks, tok{tPunct, string(c)})
				i++
				continue
			}
			return nil, fmt.Errorf("unsupported character %q at byte %d", c, i)
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

var forbiddenKeywords = []string{"import", "class", "def", "try", "while", "yield", "lambda", "eval", "exec"}

// containsForbiddenKeyword reports whether src contains any token from
// the fixed disallow-list spec §4.H names as forcing a ComplexPython
// fallback regardless of whether the surrounding shape otherwise
// parses (see DESIGN.md Open Question resolution on this list's
// "whitelist" wording).
func containsForbiddenKeyword(src string) (string, bool) {
	toks, err := tokenize(src)
	if err != nil {
		return "", false
	}
	forbidden := map[string]bool{}
	for _, k := range forbiddenKeywords {
		forbidden[k] = true
	}
	for _, t := range toks {
		if t.kind == tIdent && forbidden[t.text] {
			return t.text, true
		}
	}
	return "", false
}
