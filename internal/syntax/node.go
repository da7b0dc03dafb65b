// Package syntax defines the narrow contract extractors use to visit parsed
// documents: a node has a kind, children and a text value.
package syntax

// Node is one element of a parsed document.
type Node interface {
	// Kind is the grammar-specific node type ("import_declaration", "call", an XML tag name).
	Kind() string
	// Text is the node's literal value or source text.
	Text() string
	Children() []Node
}

// Walk visits root and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func Walk(root Node, fn func(n Node, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children() {
		walk(c, depth+1, fn)
	}
}

// Visit calls fn for every node of the given kind.
func Visit(root Node, kind string, fn func(n Node)) {
	Walk(root, func(n Node, _ int) bool {
		if n.Kind() == kind {
			fn(n)
		}
		return true
	})
}

// Fold folds every node of kind into an accumulator.
func Fold[A any](root Node, kind string, acc A, fn func(acc A, n Node) A) A {
	Visit(root, kind, func(n Node) {
		acc = fn(acc, n)
	})
	return acc
}

// First returns the first node of kind in document order, or nil.
func First(root Node, kind string) Node {
	var found Node
	Walk(root, func(n Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Kind() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

// Child returns the first direct child of kind, or nil.
func Child(n Node, kind string) Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children() {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// Path follows a chain of direct child kinds from n, returning nil when a step is missing.
func Path(n Node, kinds ...string) Node {
	cur := n
	for _, k := range kinds {
		cur = Child(cur, k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ChildText returns the text of the first direct child of kind, or "".
func ChildText(n Node, kind string) string {
	if c := Child(n, kind); c != nil {
		return c.Text()
	}
	return ""
}

// Basic is a plain in-memory Node.
type Basic struct {
	K    string
	T    string
	Kids []Node
}

func (b *Basic) Kind() string     { return b.K }
func (b *Basic) Text() string     { return b.T }
func (b *Basic) Children() []Node { return b.Kids }

// Append adds children and returns b.
func (b *Basic) Append(kids ...Node) *Basic {
	b.Kids = append(b.Kids, kids...)
	return b
}
