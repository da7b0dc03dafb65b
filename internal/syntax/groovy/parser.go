// Package groovy parses the subset of Groovy used by Jenkinsfile pipeline
// scripts into syntax nodes. It is lenient: unknown constructs are skipped and
// nested blocks are still visited, so calls inside closures and conditionals
// remain reachable.
//
// Node kinds:
//
//	script       top-level statements
//	declaration  Text is the variable name, the only child is the value
//	call         Text is the (dotted) method name, children are arguments
//	named_arg    Text is the argument name, the only child is the value
//	list, map    children are items or map_entry nodes
//	map_entry    Text is the key, the only child is the value
//	closure      children are statements
//	string, number, boolean, null, identifier
//	expression   anything else, children are the sub-expressions found in it
package groovy

import (
	"strings"

	"github.com/ternarybob/modernizer/internal/syntax"
)

const (
	KindScript      = "script"
	KindDeclaration = "declaration"
	KindCall        = "call"
	KindNamedArg    = "named_arg"
	KindList        = "list"
	KindMap         = "map"
	KindMapEntry    = "map_entry"
	KindClosure     = "closure"
	KindString      = "string"
	KindNumber      = "number"
	KindBoolean     = "boolean"
	KindNull        = "null"
	KindIdentifier  = "identifier"
	KindExpression  = "expression"
)

var modifiers = map[string]bool{
	"def": true, "final": true, "static": true, "var": true,
	"private": true, "public": true, "protected": true,
}

var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "switch": true,
	"case": true, "try": true, "catch": true, "finally": true, "return": true,
	"throw": true, "new": true, "import": true, "package": true, "in": true,
	"default": true, "break": true, "continue": true, "assert": true,
}

// Parse parses a pipeline script. The tree is always returned; the error only
// reports unterminated strings or comments.
func Parse(src []byte) (*syntax.Basic, error) {
	toks, err := lex(string(src))
	p := &parser{toks: toks}
	root := &syntax.Basic{K: KindScript}
	root.Append(p.statements("")...)
	return root, err
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.at(0) }

func (p *parser) at(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) eof() bool { return p.peek().kind == tokEOF }

func (t token) is(kind tokenKind, text string) bool { return t.kind == kind && t.text == text }
func (t token) punct(text string) bool            { return t.is(tokPunct, text) }

func (t token) closer() bool {
	return t.punct(")") || t.punct("]") || t.punct("}")
}

// statements parses until the closing punctuation (not consumed) or end of input.
func (p *parser) statements(closer string) []syntax.Node {
	var out []syntax.Node
	for !p.eof() {
		t := p.peek()
		if closer != "" && t.punct(closer) {
			break
		}
		if t.punct(";") {
			p.next()
			continue
		}
		start := p.pos
		if n := p.statement(); n != nil {
			out = append(out, n)
		}
		if p.pos == start {
			p.next()
		}
	}
	return out
}

func (p *parser) statement() syntax.Node {
	t := p.peek()
	if t.kind == tokIdent {
		if d := p.declaration(); d != nil {
			return d
		}
		if !keywords[t.text] && p.commandCall() {
			return p.command()
		}
	}
	return p.expressionStatement()
}

// declaration parses `[modifiers] [Type] name = value` and bare assignments.
func (p *parser) declaration() syntax.Node {
	save := p.pos
	hadModifier := false
	for p.peek().kind == tokIdent && modifiers[p.peek().text] {
		p.next()
		hadModifier = true
	}
	// optional type, possibly generic or an array
	if p.peek().kind == tokIdent && !keywords[p.peek().text] {
		switch {
		case p.at(1).kind == tokOp && strings.HasPrefix(p.at(1).text, "<"):
			p.next()
			for !p.eof() && !(p.peek().kind == tokOp && strings.Contains(p.peek().text, ">")) {
				p.next()
			}
			p.next()
		case p.at(1).punct("[") && p.at(2).punct("]"):
			p.next()
			p.next()
			p.next()
		case p.at(1).kind == tokIdent && !p.at(1).nl && (p.at(2).is(tokOp, "=") || hadModifier):
			p.next()
		}
	}
	name := p.peek()
	if name.kind != tokIdent || keywords[name.text] {
		p.pos = save
		return nil
	}
	if p.at(1).is(tokOp, "=") {
		p.next()
		p.next()
		decl := &syntax.Basic{K: KindDeclaration, T: name.text}
		if v := p.expr(); v != nil {
			decl.Append(v)
		}
		return decl
	}
	if hadModifier {
		p.next()
		return &syntax.Basic{K: KindDeclaration, T: name.text}
	}
	p.pos = save
	return nil
}

// commandCall reports whether the statement is a call without parentheses,
// such as `buildPlugin useContainerAgent: true`.
func (p *parser) commandCall() bool {
	n := p.at(1)
	if n.nl {
		return false
	}
	switch {
	case n.kind == tokIdent:
		return p.at(2).punct(":")
	case n.kind == tokString, n.kind == tokNumber, n.punct("["):
		return true
	}
	return false
}

func (p *parser) command() syntax.Node {
	call := &syntax.Basic{K: KindCall, T: p.next().text}
	for !p.eof() {
		if arg := p.arg(); arg != nil {
			call.Append(arg)
		}
		if !p.peek().punct(",") {
			break
		}
		p.next()
	}
	if p.peek().punct("{") && !p.peek().nl {
		call.Append(p.closure())
	}
	return call
}

// expressionStatement consumes expressions up to the end of the line.
func (p *parser) expressionStatement() syntax.Node {
	var (
		kids []syntax.Node
		raw  []string
	)
	first := true
	for !p.eof() {
		t := p.peek()
		if t.closer() || t.punct(";") || (!first && t.nl) {
			break
		}
		first = false
		start := p.pos
		if n := p.expr(); n != nil {
			kids = append(kids, n)
			raw = append(raw, n.Text())
		}
		if p.pos == start {
			raw = append(raw, p.next().text)
		}
	}
	if len(kids) == 1 && len(raw) == 1 {
		return kids[0]
	}
	if len(kids) == 0 && len(raw) == 0 {
		return nil
	}
	return &syntax.Basic{K: KindExpression, T: strings.Join(raw, " "), Kids: kids}
}

func (p *parser) expr() syntax.Node {
	left := p.postfix(p.primary())
	if left == nil {
		return nil
	}
	t := p.peek()
	if t.kind != tokOp || t.text == "=" || t.nl {
		return left
	}
	op := p.next().text
	out := &syntax.Basic{K: KindExpression, T: op, Kids: []syntax.Node{left}}
	if right := p.expr(); right != nil {
		out.Append(right)
	}
	if op == "?" && p.peek().punct(":") {
		p.next()
		if alt := p.expr(); alt != nil {
			out.Append(alt)
		}
	}
	return out
}

func (p *parser) primary() syntax.Node {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return &syntax.Basic{K: KindString, T: t.text}
	case tokNumber:
		p.next()
		return &syntax.Basic{K: KindNumber, T: t.text}
	case tokIdent:
		p.next()
		switch t.text {
		case "true", "false":
			return &syntax.Basic{K: KindBoolean, T: t.text}
		case "null":
			return &syntax.Basic{K: KindNull, T: t.text}
		case "new":
			return p.primary()
		}
		return &syntax.Basic{K: KindIdentifier, T: t.text}
	case tokOp:
		if t.text == "-" && p.at(1).kind == tokNumber {
			p.next()
			return &syntax.Basic{K: KindNumber, T: "-" + p.next().text}
		}
		if t.text == "!" || t.text == "-" || t.text == "+" || t.text == "~" {
			p.next()
			inner := p.postfix(p.primary())
			out := &syntax.Basic{K: KindExpression, T: t.text}
			if inner != nil {
				out.Append(inner)
			}
			return out
		}
		return nil
	case tokPunct:
		switch t.text {
		case "[":
			return p.listOrMap()
		case "{":
			return p.closure()
		case "(":
			p.next()
			inner := p.expr()
			p.skipTo(")")
			return inner
		}
	}
	return nil
}

func (p *parser) postfix(n syntax.Node) syntax.Node {
	if n == nil {
		return nil
	}
	for {
		t := p.peek()
		switch {
		case (t.punct(".") || t.is(tokOp, "?.") || t.is(tokOp, "*.")) && p.at(1).kind == tokIdent:
			p.next()
			name := p.next().text
			if n.Kind() == KindIdentifier {
				n = &syntax.Basic{K: KindIdentifier, T: n.Text() + "." + name}
			} else {
				n = &syntax.Basic{K: KindExpression, T: "." + name, Kids: []syntax.Node{n}}
			}
		case t.punct("(") && !t.nl:
			call := &syntax.Basic{K: KindCall, T: n.Text()}
			if n.Kind() != KindIdentifier {
				call.Append(n)
			}
			call.Append(p.args()...)
			if p.peek().punct("{") && !p.peek().nl {
				call.Append(p.closure())
			}
			n = call
		case t.punct("{") && !t.nl && n.Kind() == KindIdentifier:
			n = &syntax.Basic{K: KindCall, T: n.Text(), Kids: []syntax.Node{p.closure()}}
		case t.punct("[") && !t.nl:
			n = &syntax.Basic{K: KindExpression, T: "[]", Kids: []syntax.Node{n, p.listOrMap()}}
		default:
			return n
		}
	}
}

func (p *parser) args() []syntax.Node {
	p.next() // (
	var out []syntax.Node
	for !p.eof() && !p.peek().punct(")") {
		if p.peek().punct(",") {
			p.next()
			continue
		}
		if p.peek().punct("]") || p.peek().punct("}") {
			break
		}
		start := p.pos
		if a := p.arg(); a != nil {
			out = append(out, a)
		}
		if p.pos == start {
			p.next()
		}
	}
	p.skipTo(")")
	return out
}

func (p *parser) arg() syntax.Node {
	t := p.peek()
	if (t.kind == tokIdent || t.kind == tokString) && p.at(1).punct(":") {
		p.next()
		p.next()
		named := &syntax.Basic{K: KindNamedArg, T: t.text}
		if v := p.expr(); v != nil {
			named.Append(v)
		}
		return named
	}
	return p.expr()
}

func (p *parser) listOrMap() syntax.Node {
	p.next() // [
	if p.peek().punct(":") && p.at(1).punct("]") {
		p.next()
		p.next()
		return &syntax.Basic{K: KindMap}
	}
	out := &syntax.Basic{K: KindList}
	for !p.eof() && !p.peek().punct("]") {
		t := p.peek()
		if t.punct(",") {
			p.next()
			continue
		}
		if t.punct(")") || t.punct("}") {
			break
		}
		start := p.pos
		if (t.kind == tokIdent || t.kind == tokString || t.kind == tokNumber) && p.at(1).punct(":") {
			p.next()
			p.next()
			out.K = KindMap
			entry := &syntax.Basic{K: KindMapEntry, T: t.text}
			if v := p.expr(); v != nil {
				entry.Append(v)
			}
			out.Append(entry)
		} else if v := p.expr(); v != nil {
			out.Append(v)
		}
		if p.pos == start {
			p.next()
		}
	}
	p.skipTo("]")
	return out
}

func (p *parser) closure() syntax.Node {
	p.next() // {
	c := &syntax.Basic{K: KindClosure}
	c.Append(p.statements("}")...)
	p.skipTo("}")
	return c
}

// skipTo consumes tokens through the closing punctuation, honouring nesting.
func (p *parser) skipTo(closer string) {
	depth := 0
	for !p.eof() {
		t := p.next()
		switch {
		case t.punct("(") || t.punct("[") || t.punct("{"):
			depth++
		case t.closer():
			if depth == 0 {
				if t.text != closer {
					// mismatched; leave it for the enclosing construct
					p.pos--
				}
				return
			}
			depth--
		}
	}
}
