package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/claude/liftlog/internal/models"
)

var assignmentRe = regexp.MustCompile(`const workoutData = ({[\s\S]*?});`)

// Parse extracts the workoutData literal from a plan script and decodes it.
// Comments, trailing commas, bare keys and single-quoted strings are
// accepted; anything that needs evaluation is not.
func Parse(doc []byte) (*models.WorkoutData, error) {
	m := assignmentRe.FindSubmatch(doc)
	if m == nil {
		return nil, fmt.Errorf("%w: no workoutData assignment", ErrMalformedPlan)
	}

	std, err := hujson.Standardize([]byte(normalizeLiteral(string(m[1]))))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	var data models.WorkoutData
	if err := json.Unmarshal(std, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if len(data.Keys) == 0 {
		return nil, fmt.Errorf("%w: no workout days", ErrMalformedPlan)
	}
	return &data, nil
}

// normalizeLiteral rewrites the object-literal conveniences that JSON lacks
// into their JSON forms: bare identifier keys get quoted and single-quoted
// strings become double-quoted. Comments are copied through for hujson.
func normalizeLiteral(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	// last is the previous significant character outside strings and comments.
	var last byte
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			b.WriteString(src[i : i+end])
			i += end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				b.WriteString(src[i:])
				i = len(src)
				break
			}
			b.WriteString(src[i : i+2+end+2])
			i += 2 + end + 2
		case c == '"':
			j := skipString(src, i, '"')
			b.WriteString(src[i:j])
			i = j
			last = '"'
		case c == '\'':
			j := skipString(src, i, '\'')
			b.WriteString(requote(src[i+1 : max(j-1, i+1)]))
			i = j
			last = '"'
		case isIdentStart(c) && (last == '{' || last == ','):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			k := j
			for k < len(src) && (src[k] == ' ' || src[k] == '\t' || src[k] == '\n' || src[k] == '\r') {
				k++
			}
			if k < len(src) && src[k] == ':' {
				b.WriteByte('"')
				b.WriteString(src[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(src[i:j])
			}
			i = j
			last = 'a'
		default:
			b.WriteByte(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				last = c
			}
			i++
		}
	}
	return b.String()
}

// skipString returns the index just past the string literal starting at i.
func skipString(src string, i int, quote byte) int {
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		}
		j++
	}
	return len(src)
}

// requote turns the body of a single-quoted literal into a JSON string.
func requote(body string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
