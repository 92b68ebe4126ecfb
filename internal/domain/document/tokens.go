package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

// ParseTokens reads a pre-tokenized column. Accepted forms:
//
//	["a", "b"]     JSON array
//	['a', 'b']     list literal with single or double quotes
//	a b            whitespace-separated words
//
// Blank tokens are dropped.
func ParseTokens(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return strings.Fields(s), nil
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unterminated token list: %w", domain.ErrEncoding)
	}

	var tokens []string
	if err := json.Unmarshal([]byte(s), &tokens); err != nil {
		tokens, err = parseListLiteral(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
	}

	out := tokens[:0]
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// parseListLiteral parses the body of a quoted list such as 'a', "b".
func parseListLiteral(body string) ([]string, error) {
	var (
		tokens []string
		i      int
	)
	for {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t') {
			i++
		}
		if i >= len(body) {
			return tokens, nil
		}

		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("token %d: expected quote at offset %d: %w", len(tokens), i, domain.ErrEncoding)
		}
		i++

		var sb strings.Builder
		closed := false
		for i < len(body) {
			c := body[i]
			if c == '\\' && i+1 < len(body) {
				sb.WriteByte(unescape(body[i+1]))
				i += 2
				continue
			}
			i++
			if c == quote {
				closed = true
				break
			}
			sb.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("token %d: unterminated string: %w", len(tokens), domain.ErrEncoding)
		}
		tokens = append(tokens, sb.String())

		for i < len(body) && (body[i] == ' ' || body[i] == '\t') {
			i++
		}
		if i < len(body) {
			if body[i] != ',' {
				return nil, fmt.Errorf("token %d: expected comma at offset %d: %w", len(tokens), i, domain.ErrEncoding)
			}
			i++
		}
	}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	default:
		return c
	}
}
