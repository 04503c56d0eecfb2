package template

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"unicode"
	"unicode/utf8"
)

const headerFunc = "header"

var errSyntax = errors.New("template syntax error")

type segment struct {
	key     string
	index   int
	isIndex bool
}

type pathExpr struct {
	segments []segment
}

type headerExpr struct {
	array []segment
	field []segment
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool {
	p.skipSpace()
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("%w: expected %q at %d", errSyntax, c, p.pos)
	}
	p.pos++
	return nil
}

// parseExpr parses a whole placeholder body.
func (p *parser) parseExpr() (any, error) {
	p.skipSpace()
	start := p.pos

	if name := p.ident(); name == headerFunc {
		p.skipSpace()
		if p.peek() == '(' {
			p.pos++
			ex, err := p.parseHeader()
			if err != nil {
				return nil, err
			}
			if !p.done() {
				return nil, fmt.Errorf("%w: trailing input", errSyntax)
			}
			return ex, nil
		}
	}

	p.pos = start
	segs, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: trailing input", errSyntax)
	}
	return pathExpr{segments: segs}, nil
}

func (p *parser) parseHeader() (headerExpr, error) {
	array, err := p.parsePath()
	if err != nil {
		return headerExpr{}, err
	}
	if err := p.expect(','); err != nil {
		return headerExpr{}, err
	}

	var field []segment
	p.skipSpace()
	if c := p.peek(); c == '"' || c == '\'' {
		key, err := p.quoted()
		if err != nil {
			return headerExpr{}, err
		}
		field = []segment{{key: key}}
	} else {
		field, err = p.parsePath()
		if err != nil {
			return headerExpr{}, err
		}
	}

	if err := p.expect(')'); err != nil {
		return headerExpr{}, err
	}
	return headerExpr{array: array, field: field}, nil
}

func (p *parser) parsePath() ([]segment, error) {
	p.skipSpace()
	var segs []segment

	switch {
	case p.peek() == '[':
		s, err := p.bracket()
		if err != nil {
			return nil, err
		}
		segs = append(segs, s)
	default:
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("%w: expected identifier at %d", errSyntax, p.pos)
		}
		segs = append(segs, segment{key: name})
	}

	for {
		switch p.peek() {
		case '.':
			p.pos++
			name := p.ident()
			if name == "" {
				return nil, fmt.Errorf("%w: expected identifier after '.' at %d", errSyntax, p.pos)
			}
			segs = append(segs, segment{key: name})
		case '[':
			s, err := p.bracket()
			if err != nil {
				return nil, err
			}
			segs = append(segs, s)
		default:
			return segs, nil
		}
	}
}

func (p *parser) bracket() (segment, error) {
	p.pos++ // '['
	p.skipSpace()

	var s segment
	if c := p.peek(); c == '"' || c == '\'' {
		key, err := p.quoted()
		if err != nil {
			return s, err
		}
		s = segment{key: key}
	} else {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return s, fmt.Errorf("%w: bad index at %d", errSyntax, start)
		}
		s = segment{index: n, isIndex: true, key: p.src[start:p.pos]}
	}

	if err := p.expect(']'); err != nil {
		return s, err
	}
	return s, nil
}

func (p *parser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("%w: unterminated string", errSyntax)
	}
	s := p.src[start:p.pos]
	p.pos++
	return s, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		size := 1
		if r >= 0x80 {
			r, size = utf8.DecodeRuneInString(p.src[p.pos:])
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '$') {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func walk(root any, segs []segment) (any, bool) {
	cur := root
	for _, s := range segs {
		next, ok := step(cur, s)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, s segment) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[s.key]
		return val, ok
	case []any:
		return indexList(v, s)
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(s.key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Slice, reflect.Array:
		items, _ := asList(cur)
		return indexList(items, s)
	}
	return nil, false
}

func indexList(items []any, s segment) (any, bool) {
	idx := s.index
	if !s.isIndex {
		n, err := strconv.Atoi(s.key)
		if err != nil {
			return nil, false
		}
		idx = n
	}
	if idx < 0 || idx >= len(items) {
		return nil, false
	}
	return items[idx], true
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
