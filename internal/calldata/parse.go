package calldata

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ParseABI reads a JSON ABI array and returns its functions in declaration order.
// Events, errors, constructors and fallbacks are skipped.
func ParseABI(data []byte) ([]Fragment, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	out := make([]Fragment, 0, len(entries))
	for i, entry := range entries {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			return nil, fmt.Errorf("parse abi entry %d: %w", i, err)
		}
		if head.Type != "" && head.Type != "function" {
			continue
		}
		var frag Fragment
		if err := json.Unmarshal(entry, &frag); err != nil {
			return nil, fmt.Errorf("parse abi entry %d: %w", i, err)
		}
		out = append(out, frag)
	}
	return out, nil
}

// ParseFragment parses a human-readable function signature such as
// "function swap(uint256 amountIn, address[] calldata path, (address owner, uint96 nonce) args)".
// Anything after the closing parenthesis (visibility, returns clause) is ignored.
func ParseFragment(sig string) (Fragment, error) {
	p := &sigParser{src: strings.TrimSpace(sig)}
	p.skipSpace()
	if p.consumeWord("function") {
		p.skipSpace()
	}
	name := p.ident()
	if name == "" {
		return Fragment{}, p.errorf("expected function name")
	}
	p.skipSpace()
	inputs, err := p.params()
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Name: name, Inputs: inputs}, nil
}

// MustParseFragment is ParseFragment for package-level declarations.
func MustParseFragment(sig string) Fragment {
	f, err := ParseFragment(sig)
	if err != nil {
		panic(err)
	}
	return f
}

var dataLocations = map[string]bool{
	"memory":   true,
	"calldata": true,
	"storage":  true,
	"indexed":  true,
	"payable":  true,
}

type sigParser struct {
	src string
	pos int
}

func (p *sigParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("parse signature %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *sigParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func isIdentByte(b byte, first bool) bool {
	switch {
	case b == '_' || b == '$':
		return true
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return !first
	}
	return false
}

func (p *sigParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos], p.pos == start) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *sigParser) consumeWord(word string) bool {
	if !strings.HasPrefix(p.src[p.pos:], word) {
		return false
	}
	end := p.pos + len(word)
	if end < len(p.src) && isIdentByte(p.src[end], false) {
		return false
	}
	p.pos = end
	return true
}

// params parses "( param, param, ... )".
func (p *sigParser) params() ([]Param, error) {
	if p.peek() != '(' {
		return nil, p.errorf("expected '('")
	}
	p.pos++
	p.skipSpace()
	var out []Param
	if p.peek() == ')' {
		p.pos++
		return out, nil
	}
	for {
		param, err := p.param()
		if err != nil {
			return nil, err
		}
		out = append(out, param)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *sigParser) param() (Param, error) {
	var param Param
	if p.peek() == '(' || p.consumeWord("tuple") {
		p.skipSpace()
		components, err := p.params()
		if err != nil {
			return Param{}, err
		}
		param.Type = "tuple"
		param.Components = components
	} else {
		typ := p.ident()
		if typ == "" {
			return Param{}, p.errorf("expected type")
		}
		param.Type = typ
	}
	suffix, err := p.arrayDims()
	if err != nil {
		return Param{}, err
	}
	param.Type += suffix

	for {
		p.skipSpace()
		if !isIdentByte(p.peek(), true) {
			return param, nil
		}
		word := p.ident()
		if dataLocations[word] {
			continue
		}
		if param.Name != "" {
			return Param{}, p.errorf("unexpected %q", word)
		}
		param.Name = word
	}
}

func (p *sigParser) arrayDims() (string, error) {
	var b strings.Builder
	for p.peek() == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return "", p.errorf("unterminated array")
		}
		dim := p.src[p.pos+1 : p.pos+end]
		for _, r := range dim {
			if r < '0' || r > '9' {
				return "", p.errorf("invalid array size %q", dim)
			}
		}
		b.WriteString(p.src[p.pos : p.pos+end+1])
		p.pos += end + 1
	}
	return b.String(), nil
}
