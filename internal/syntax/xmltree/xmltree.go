// Package xmltree exposes an XML document (a Maven descriptor) as syntax nodes.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/modernizer/internal/syntax"
)

// Element is one XML element. Kind is the local tag name and Text the trimmed
// character data directly inside the element.
type Element struct {
	Name     string
	Value    string
	Attrs    map[string]string
	children []syntax.Node
}

func (e *Element) Kind() string            { return e.Name }
func (e *Element) Text() string            { return e.Value }
func (e *Element) Children() []syntax.Node { return e.children }
func (e *Element) Attr(name string) string { return e.Attrs[name] }
func (e *Element) append(child *Element)   { e.children = append(e.children, child) }

// Parse decodes raw into an element tree. On malformed input the elements read
// so far are returned together with the error, so callers can still use them.
func Parse(raw []byte) (*Element, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("xmltree: empty document")
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		root  *Element
		stack []*Element
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if root == nil {
				return nil, fmt.Errorf("xmltree: %w", err)
			}
			return root, fmt.Errorf("xmltree: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return root, errors.New("xmltree: multiple root elements")
				}
				root = el
			} else {
				stack[len(stack)-1].append(el)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			stack[len(stack)-1].Value = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, errors.New("xmltree: no root element")
	}
	return root, nil
}
