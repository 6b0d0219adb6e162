package expression

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/eleven-am/flowcore/internal/xjson"
)

type builtin struct {
	minArgs       int
	maxArgs       int // -1 for variadic
	deterministic bool
}

var builtins = map[string]builtin{
	"len":        {1, 1, true},
	"lower":      {1, 1, true},
	"upper":      {1, 1, true},
	"abs":        {1, 1, true},
	"min":        {1, -1, true},
	"max":        {1, -1, true},
	"startsWith": {2, 2, true},
	"endsWith":   {2, 2, true},
	"contains":   {2, 2, true},
	"now":        {0, 0, false},
	"random":     {0, 0, false},
}

type node interface {
	emit(sb *strings.Builder)
}

type literalNode struct{ js string }

type identNode struct{ path string }

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type callNode struct {
	name string
	args []node
}

func (n literalNode) emit(sb *strings.Builder) { sb.WriteString(n.js) }

func (n identNode) emit(sb *strings.Builder) {
	sb.WriteString("__v(")
	sb.WriteString(quoteJS(n.path))
	sb.WriteString(")")
}

func (n unaryNode) emit(sb *strings.Builder) {
	sb.WriteString("(")
	sb.WriteString(n.op)
	sb.WriteString("(")
	n.operand.emit(sb)
	sb.WriteString("))")
}

func (n binaryNode) emit(sb *strings.Builder) {
	switch n.op {
	case "==", "!=":
		if n.op == "!=" {
			sb.WriteString("!")
		}
		emitCall(sb, "__eq", n.left, n.right)
	case "contains":
		emitCall(sb, "__fn_contains", n.left, n.right)
	case "&&", "||":
		sb.WriteString("(!!(")
		n.left.emit(sb)
		sb.WriteString(") " + n.op + " !!(")
		n.right.emit(sb)
		sb.WriteString("))")
	default:
		sb.WriteString("(")
		n.left.emit(sb)
		sb.WriteString(" " + n.op + " ")
		n.right.emit(sb)
		sb.WriteString(")")
	}
}

func (n callNode) emit(sb *strings.Builder) {
	emitCall(sb, "__fn_"+n.name, n.args...)
}

func emitCall(sb *strings.Builder, name string, args ...node) {
	sb.WriteString(name)
	sb.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.emit(sb)
	}
	sb.WriteString(")")
}

func quoteJS(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(data)
}

type parsed struct {
	js            string
	variables     []string
	deterministic bool
}

type parser struct {
	tokens        []token
	pos           int
	depth         int
	maxDepth      int
	variables     map[string]struct{}
	deterministic bool
}

func parse(tokens []token, maxDepth int) (*parsed, error) {
	p := &parser{
		tokens:        tokens,
		maxDepth:      maxDepth,
		variables:     make(map[string]struct{}),
		deterministic: true,
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %s at position %d", t, t.pos)
	}

	var sb strings.Builder
	root.emit(&sb)

	variables := make([]string, 0, len(p.variables))
	for name := range p.variables {
		variables = append(variables, name)
	}
	sort.Strings(variables)

	return &parsed{js: sb.String(), variables: variables, deterministic: p.deterministic}, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return fmt.Errorf("expression exceeds maximum nesting depth of %d", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) isOperator(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokenOperator {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseBinary(next func() (node, error), ops ...string) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOperator(ops...)
		if !ok {
			return left, nil
		}
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(p.parseAnd, "||")
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBinary(p.parseEquality, "&&")
}

func (p *parser) parseEquality() (node, error) {
	return p.parseBinary(p.parseRelational, "==", "!=")
}

func (p *parser) parseRelational() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOperator("<", "<=", ">", ">=")
		if !ok {
			t := p.peek()
			if t.kind != tokenIdent || t.text != "contains" {
				return left, nil
			}
			op = "contains"
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	return p.parseBinary(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (node, error) {
	return p.parseBinary(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (node, error) {
	op, ok := p.isOperator("!", "-")
	if !ok {
		return p.parsePrimary()
	}
	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return unaryNode{op: op, operand: operand}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		if _, err := strconv.ParseFloat(t.value, 64); err != nil {
			return nil, fmt.Errorf("unexpected number %s at position %d", t.text, t.pos)
		}
		return literalNode{js: t.value}, nil

	case tokenString:
		return literalNode{js: quoteJS(t.value)}, nil

	case tokenIdent:
		switch t.value {
		case "true", "false", "null":
			return literalNode{js: t.value}, nil
		}
		if p.peek().kind == tokenLParen {
			return p.parseCall(t)
		}
		if t.value == "contains" {
			return nil, fmt.Errorf("unexpected token contains at position %d", t.pos)
		}
		p.variables[t.value] = struct{}{}
		return identNode{path: t.value}, nil

	case tokenLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("unexpected token %s at position %d, expected ')'", closing, closing.pos)
		}
		return inner, nil
	}

	return nil, fmt.Errorf("unexpected token %s at position %d", t, t.pos)
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := builtins[name.value]
	if !ok {
		return nil, fmt.Errorf("function %q is not allowed", name.value)
	}
	if !fn.deterministic {
		p.deterministic = false
	}

	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	var args []node
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokenRParen {
		return nil, fmt.Errorf("unexpected token %s at position %d, expected ')'", closing, closing.pos)
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("function %s called with %d arguments", name.value, len(args))
	}
	return callNode{name: name.value, args: args}, nil
}
