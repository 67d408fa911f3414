package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/tagbridge/internal/ir"
)

const signaturePrefix = "extern fn $"

// ParseSignature parses the backend's foreign function declaration
// grammar, the inverse of FunctionSignature.String:
//
//	extern fn $name<T0: Family0, ...>(arg0, opt0?, var...) -> Ret
func ParseSignature(text string) (*ir.FunctionSignature, error) {
	p := &sigParser{src: strings.TrimSpace(text)}
	return p.parse()
}

type sigParser struct {
	src  string
	pos  int
	name string
}

func (p *sigParser) fail(format string, args ...any) error {
	return ir.NewSignatureError(p.name, fmt.Sprintf("parse at offset %d: %s", p.pos, fmt.Sprintf(format, args...)))
}

func (p *sigParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *sigParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *sigParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || (p.pos > start && '0' <= c && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *sigParser) parse() (*ir.FunctionSignature, error) {
	if !strings.HasPrefix(p.src, signaturePrefix) {
		return nil, p.fail("expected %q", signaturePrefix)
	}
	p.pos = len(signaturePrefix)
	p.name = p.ident()
	if p.name == "" {
		return nil, p.fail("expected function name")
	}

	var generics []ir.Family
	if p.consume("<") {
		for {
			label := p.ident()
			if label != fmt.Sprintf("T%d", len(generics)) {
				return nil, p.fail("expected T%d, got %q", len(generics), label)
			}
			if !p.consume(":") {
				return nil, p.fail("expected ':' after %s", label)
			}
			famName := p.ident()
			fam, ok := ir.LookupFamily(famName)
			if !ok {
				return nil, p.fail("unknown type family %q", famName)
			}
			generics = append(generics, fam)
			if p.consume(">") {
				break
			}
			if !p.consume(",") {
				return nil, p.fail("expected ',' or '>'")
			}
		}
	}

	if !p.consume("(") {
		return nil, p.fail("expected '('")
	}
	var (
		args     []ir.Type
		optional []ir.Type
		variadic ir.Type
	)
	if !p.consume(")") {
		for {
			if variadic != nil {
				return nil, p.fail("argument after variadic argument")
			}
			t, err := p.typeRef(generics)
			if err != nil {
				return nil, err
			}
			switch {
			case p.consume("..."):
				variadic = t
			case p.consume("?"):
				optional = append(optional, t)
			default:
				if len(optional) > 0 {
					return nil, p.fail("required argument after optional argument")
				}
				args = append(args, t)
			}
			if p.consume(")") {
				break
			}
			if !p.consume(",") {
				return nil, p.fail("expected ',' or ')'")
			}
		}
	}

	if !p.consume("->") {
		return nil, p.fail("expected '->'")
	}
	ret, err := p.typeRef(generics)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected trailing input %q", p.src[p.pos:])
	}

	return ir.NewFunctionSignature(p.name, args, optional, variadic, ret, generics)
}

func (p *sigParser) typeRef(generics []ir.Family) (ir.Type, error) {
	name := p.ident()
	if name == "" {
		return nil, p.fail("expected type")
	}
	if len(name) > 1 && name[0] == 'T' {
		if id, err := strconv.Atoi(name[1:]); err == nil {
			if id < 0 || id >= len(generics) {
				return nil, p.fail("generic %s has no type parameter", name)
			}
			return ir.Generic{ID: id, Family: generics[id]}, nil
		}
	}
	t, err := resolveName(p.name, name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FormatRelationDecl renders a relation declaration: name(type0, type1).
func FormatRelationDecl(name string, types []ir.Base) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.Name
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// ParseRelationDecl parses name(type0, type1, ...). Relation declarations
// carry base types only.
func ParseRelationDecl(text string) (string, []ir.Base, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open <= 0 || !strings.HasSuffix(text, ")") {
		return "", nil, fmt.Errorf("relation declaration %q: expected name(type, ...)", text)
	}
	name := strings.TrimSpace(text[:open])
	if !validRelationName(name) {
		return "", nil, fmt.Errorf("relation declaration %q: invalid relation name %q", text, name)
	}

	body := strings.TrimSpace(text[open+1 : len(text)-1])
	if body == "" {
		return name, []ir.Base{}, nil
	}
	fields := strings.Split(body, ",")
	types := make([]ir.Base, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		b, ok := ir.LookupBase(f)
		if !ok {
			return "", nil, fmt.Errorf("relation declaration %q: column %d: unknown base type %q", text, i, f)
		}
		types[i] = b
	}
	return name, types, nil
}

func validRelationName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
