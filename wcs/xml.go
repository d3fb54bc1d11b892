package wcs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is a generic XML element as decoded from a POST body.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// ParseXML decodes body into a Node tree. Bodies that do not start with
// markup are rejected so KVP posts are never mistaken for XML.
func ParseXML(body []byte) (*Node, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return nil, fmt.Errorf("request body is not an XML document")
	}
	var root Node
	if err := xml.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("failed to parse XML request: %v", err)
	}
	return &root, nil
}

// Name is the local element name.
func (n *Node) Name() string { return n.XMLName.Local }

// Space is the namespace URI of the element.
func (n *Node) Space() string { return n.XMLName.Space }

// Attr returns the attribute with the given local name, ignoring
// namespaces.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text is the trimmed character content of the element.
func (n *Node) Text() string { return strings.TrimSpace(n.Content) }

// Is reports whether the element has the local name, ignoring case.
func (n *Node) Is(name string) bool { return strings.EqualFold(n.XMLName.Local, name) }

// Child returns the first child with the given local name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Is(name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Is(name) {
			out = append(out, c)
		}
	}
	return out
}
