// =============================================================================
// IATI Activity Converter - XML Writer Module
// =============================================================================
//
// This module renders a types.Node tree to XML text. Element and attribute
// order are taken from the tree as-is; nothing is sorted.
//
// OUTPUT SHAPE:
//
//   <?xml version="1.0" encoding="UTF-8"?>
//   <iati-activities version="2.01" generated-datetime="..." xmlns:usg="...">
//     <iati-activity hierarchy="1" ...>
//       <iati-identifier>US-1-KE-30</iati-identifier>
//       <reporting-org ref="US-USAGOV" type="10">
//         <narrative>USA</narrative>
//       </reporting-org>
//       <conditions attached="0"/>
//     </iati-activity>
//   </iati-activities>
//
// Prefixed names ("usg:treasury-account", "xml:lang") are written verbatim.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// RENDER OPTIONS
// =============================================================================

// Options contains options for rendering.
type Options struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string
}

// DefaultOptions returns the default rendering options.
func DefaultOptions() Options {
	return Options{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
	}
}

// ErrEmptyName is returned for a node without an element name.
var ErrEmptyName = errors.New("element has no name")

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

// Render renders a tree with the default options.
func Render(root *types.Node) ([]byte, error) {
	return RenderWithOptions(root, DefaultOptions())
}

// RenderWithOptions renders a tree with custom options.
func RenderWithOptions(root *types.Node, options Options) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Write(&buffer, root, options); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Write renders a tree to w.
func Write(w io.Writer, root *types.Node, options Options) error {
	if root == nil {
		return fmt.Errorf("nothing to render")
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		fmt.Fprintf(&buffer, "<?xml version=\"%s\" encoding=\"%s\"?>\n", options.XMLVersion, options.Encoding)
	}

	if err := writeElement(&buffer, root, options.Indent, 0); err != nil {
		return fmt.Errorf("failed to render XML: %w", err)
	}

	_, err := w.Write(buffer.Bytes())
	return err
}

// writeElement writes an element and its subtree with indentation.
func writeElement(buffer *bytes.Buffer, n *types.Node, indent string, level int) error {
	if n.Name == "" {
		return ErrEmptyName
	}

	pad := strings.Repeat(indent, level)
	buffer.WriteString(pad)
	buffer.WriteString("<")
	buffer.WriteString(n.Name)

	for _, attr := range n.Attrs {
		fmt.Fprintf(buffer, " %s=\"%s\"", attr.Name, escapeXML(attr.Value))
	}

	if len(n.Children) == 0 && n.Text == "" {
		buffer.WriteString("/>\n")
		return nil
	}

	buffer.WriteString(">")

	if len(n.Children) == 0 {
		buffer.WriteString(escapeXML(n.Text))
	} else {
		buffer.WriteString("\n")
		if n.Text != "" {
			buffer.WriteString(pad + indent)
			buffer.WriteString(escapeXML(n.Text))
			buffer.WriteString("\n")
		}
		for _, child := range n.Children {
			if err := writeElement(buffer, child, indent, level+1); err != nil {
				return fmt.Errorf("%s: %w", n.Name, err)
			}
		}
		buffer.WriteString(pad)
	}

	buffer.WriteString("</")
	buffer.WriteString(n.Name)
	buffer.WriteString(">\n")
	return nil
}

// escapeXML escapes special characters and drops characters XML 1.0 forbids.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch {
		case r == '&':
			buffer.WriteString("&amp;")
		case r == '<':
			buffer.WriteString("&lt;")
		case r == '>':
			buffer.WriteString("&gt;")
		case r == '"':
			buffer.WriteString("&quot;")
		case r == '\'':
			buffer.WriteString("&apos;")
		case !isXMLChar(r):
			// dropped
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
