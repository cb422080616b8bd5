package types

// =============================================================================
// OUTPUT TREE
// =============================================================================

// Attr is a single attribute. Attributes keep insertion order so that the
// rendered markup is deterministic.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of the output document. Names may carry a namespace
// prefix ("usg:treasury-account", "xml:lang"); the renderer writes them as-is.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node
}

// NewNode creates an element with the given attribute pairs (name, value, ...).
// A trailing name without a value is ignored.
func NewNode(name string, attrs ...string) *Node {
	n := &Node{Name: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs = append(n.Attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	return n
}

// Add appends a child element and returns it.
func (n *Node) Add(name string, attrs ...string) *Node {
	child := NewNode(name, attrs...)
	n.Children = append(n.Children, child)
	return child
}

// AddText appends a child element holding text and returns it.
func (n *Node) AddText(name, text string, attrs ...string) *Node {
	child := n.Add(name, attrs...)
	child.Text = text
	return child
}

// Append attaches existing nodes as children.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// SetAttr appends an attribute, or replaces it in place when already set.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Attr returns the named attribute value.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first direct child with the given name, or nil.
func (n *Node) Find(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child with the given name.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildNames lists the direct children's names in order.
func (n *Node) ChildNames() []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

// Document is one rendered output unit: a root node tagged with the group it
// was built for and the name it should be written under.
type Document struct {
	Group string
	Name  string
	Root  *Node
}
