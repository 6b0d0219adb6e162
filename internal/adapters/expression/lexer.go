package expression

import (
	"fmt"
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenOperator
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind  tokenKind
	text  string
	value string
	pos   int
}

func (t token) String() string {
	if t.kind == tokenEOF {
		return "end of expression"
	}
	return t.text
}

// bannedPattern is applied to the raw source before tokenizing, so a banned
// construct is rejected even inside a string literal.
var bannedPattern = regexp.MustCompile(`\b(eval|require|import|process|constructor|prototype|[Ff]unction|globalThis|Reflect|Proxy|setTimeout|setInterval|Symbol|module|exports)\b|__\w*`)

var twoCharOperators = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, "&&": true, "||": true,
}

var singleCharOperators = map[byte]bool{
	'<': true, '>': true, '!': true, '+': true, '-': true, '*': true, '/': true, '%': true,
}

// Rejected explicitly so the error names the operator. Multi-char entries are
// checked before the whitelist since "===" starts with "==".
var forbiddenMultiChar = []string{"===", "!==", "<<", ">>", "=>", "**"}

const forbiddenSingleChar = "&|^=~?:;"

func checkBanned(source string) error {
	if match := bannedPattern.FindString(source); match != "" {
		return fmt.Errorf("identifier %q is not allowed", match)
	}
	return nil
}

func tokenize(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		c := source[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue

		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
			continue

		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
			continue

		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
			continue

		case c == '\'' || c == '"':
			value, end, err := scanString(source, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: source[i:end], value: value, pos: i})
			i = end
			continue

		case isDigit(c) || (c == '.' && i+1 < len(source) && isDigit(source[i+1])):
			end := scanNumber(source, i)
			tokens = append(tokens, token{kind: tokenNumber, text: source[i:end], value: source[i:end], pos: i})
			i = end
			continue

		case isIdentStart(c):
			end, err := scanIdentifier(source, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenIdent, text: source[i:end], value: source[i:end], pos: i})
			i = end
			continue
		}

		rest := source[i:]
		for _, op := range forbiddenMultiChar {
			if strings.HasPrefix(rest, op) {
				return nil, fmt.Errorf("operator %q is not allowed at position %d", op, i)
			}
		}
		if len(rest) >= 2 && twoCharOperators[rest[:2]] {
			tokens = append(tokens, token{kind: tokenOperator, text: rest[:2], pos: i})
			i += 2
			continue
		}
		if singleCharOperators[c] {
			tokens = append(tokens, token{kind: tokenOperator, text: string(c), pos: i})
			i++
			continue
		}
		if strings.IndexByte(forbiddenSingleChar, c) >= 0 {
			return nil, fmt.Errorf("operator %q is not allowed at position %d", c, i)
		}

		return nil, fmt.Errorf("character %q is not allowed at position %d", c, i)
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(source)})
	return tokens, nil
}

func scanString(source string, start int) (string, int, error) {
	quote := source[start]
	var sb strings.Builder
	i := start + 1
	for i < len(source) {
		c := source[i]
		switch {
		case c == quote:
			return sb.String(), i + 1, nil
		case c == '\\':
			if i+1 >= len(source) {
				return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
			}
			switch next := source[i+1]; next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(next)
			default:
				return "", 0, fmt.Errorf("unexpected escape \\%c at position %d", next, i)
			}
			i += 2
		case c == '\n':
			return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func scanNumber(source string, start int) int {
	i := start
	seenDot := false
	for i < len(source) {
		c := source[i]
		if isDigit(c) {
			i++
			continue
		}
		if c == '.' && !seenDot && i+1 < len(source) && isDigit(source[i+1]) {
			seenDot = true
			i++
			continue
		}
		break
	}
	return i
}

// scanIdentifier reads a dotted path such as applicant.address.city.
func scanIdentifier(source string, start int) (int, error) {
	i := start
	for i < len(source) {
		c := source[i]
		if isIdentPart(c) {
			i++
			continue
		}
		if c == '.' {
			if i+1 >= len(source) || !isIdentStart(source[i+1]) {
				return 0, fmt.Errorf("unexpected '.' at position %d", i)
			}
			i++
			continue
		}
		break
	}
	return i, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// maxParenDepth returns the deepest parenthesis nesting in tokens.
func maxParenDepth(tokens []token) (int, error) {
	depth, maxDepth := 0, 0
	for _, t := range tokens {
		switch t.kind {
		case tokenLParen:
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case tokenRParen:
			depth--
			if depth < 0 {
				return 0, fmt.Errorf("unexpected ')' at position %d", t.pos)
			}
		}
	}
	if depth != 0 {
		return 0, fmt.Errorf("unexpected end of expression: %d unclosed '('", depth)
	}
	return maxDepth, nil
}
