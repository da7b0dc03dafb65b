// Package javasrc adapts tree-sitter's Java grammar to syntax nodes.
package javasrc

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/ternarybob/modernizer/internal/syntax"
)

// KindImport is the tree-sitter node type of an import statement.
const KindImport = "import_declaration"

// Parser parses Java compilation units. It is safe for concurrent use.
type Parser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewParser creates a Java parser. Call Close when done.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{parser: p}
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parser.Close()
}

// Parse parses src. Syntax errors do not fail the parse; tree-sitter keeps
// ERROR nodes in the tree and the rest stays visitable.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse java source: %w", err)
	}
	return &Tree{tree: tree, src: src}, nil
}

// Tree is a parsed compilation unit. Nodes are valid until Close.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Root returns the program node.
func (t *Tree) Root() syntax.Node {
	return &node{n: t.tree.RootNode(), src: t.src}
}

// Close frees the tree.
func (t *Tree) Close() { t.tree.Close() }

type node struct {
	n   *sitter.Node
	src []byte
}

func (n *node) Kind() string { return n.n.Type() }
func (n *node) Text() string { return n.n.Content(n.src) }

// Children returns the named children only; punctuation is dropped.
func (n *node) Children() []syntax.Node {
	count := int(n.n.NamedChildCount())
	out := make([]syntax.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.n.NamedChild(i)
		if c == nil {
			continue
		}
		out = append(out, &node{n: c, src: n.src})
	}
	return out
}

// ImportName returns the imported name of an import_declaration node, without
// the static modifier or a trailing wildcard.
func ImportName(imp syntax.Node) string {
	for _, c := range imp.Children() {
		switch c.Kind() {
		case "scoped_identifier", "identifier":
			return c.Text()
		}
	}
	return ""
}
