package report

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/ginjaninja78/vat-checker/internal/boxes"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// XMLOptions contains options for XML generation.
type XMLOptions struct {
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

// DefaultXMLOptions returns the default generation options.
func DefaultXMLOptions() XMLOptions {
	return XMLOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
	}
}

// XMLRenderer writes the return as an XML document.
//
// XML STRUCTURE:
//
//	<vatReturn company="Acme Ltd" period="Q1 2025" generated="..." runId="...">
//	  <box n="1" label="VAT due on sales">200.00</box>
//	  ...
//	  <box n="9" label="NI acquisitions from EU (excl. VAT)">0.00</box>
//	  <reclaim expected="120.00" claimed="120.00" variance="0.00"/>
//	  <summary>...</summary>
//	  <issues>
//	    <issue invoice="INV-1" kind="mismatch">Mismatch: ...</issue>
//	  </issues>
//	</vatReturn>
type XMLRenderer struct {
	options XMLOptions
}

var _ Renderer = (*XMLRenderer)(nil)

// NewXMLRenderer creates an XMLRenderer with default options.
func NewXMLRenderer() *XMLRenderer {
	return &XMLRenderer{options: DefaultXMLOptions()}
}

// NewXMLRendererWithOptions creates an XMLRenderer with custom options.
func NewXMLRendererWithOptions(options XMLOptions) *XMLRenderer {
	return &XMLRenderer{options: options}
}

// Format implements Renderer.
func (r *XMLRenderer) Format() string {
	return "xml"
}

// Render implements Renderer.
func (r *XMLRenderer) Render(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkReady(in); err != nil {
		return nil, err
	}

	doc := buildDocument(in)

	var buffer bytes.Buffer
	if r.options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>\n",
			r.options.XMLVersion, r.options.Encoding))
	}

	indent := r.options.Indent
	if indent == "" {
		indent = "  "
	}
	writeElement(&buffer, doc, indent, 0)

	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// xmlElement represents a generic XML element.
type xmlElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []xmlElement
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// buildDocument constructs the report element tree.
func buildDocument(in Input) xmlElement {
	root := xmlElement{
		XMLName: xml.Name{Local: "vatReturn"},
		Attributes: []xml.Attr{
			attr("company", in.Company),
			attr("period", in.Period),
			attr("generated", in.generatedAt().UTC().Format(time.RFC3339)),
		},
	}
	if in.RunID != "" {
		root.Attributes = append(root.Attributes, attr("runId", in.RunID))
	}

	for n := 1; n <= boxes.Count; n++ {
		root.Children = append(root.Children, xmlElement{
			XMLName:    xml.Name{Local: "box"},
			Attributes: []xml.Attr{attr("n", strconv.Itoa(n)), attr("label", boxes.Labels[n])},
			Value:      in.Boxes.Box(n).StringFixed(2),
		})
	}

	root.Children = append(root.Children, xmlElement{
		XMLName: xml.Name{Local: "reclaim"},
		Attributes: []xml.Attr{
			attr("expected", in.Boxes.ExpectedReclaim.StringFixed(2)),
			attr("claimed", in.Boxes.ClaimedReclaim.StringFixed(2)),
			attr("variance", in.Boxes.Variance.StringFixed(2)),
		},
	})

	if in.Summary != "" {
		root.Children = append(root.Children, xmlElement{
			XMLName: xml.Name{Local: "summary"},
			Value:   in.Summary,
		})
	}

	if issues := in.issues(); len(issues) > 0 {
		list := xmlElement{XMLName: xml.Name{Local: "issues"}}
		for _, issue := range issues {
			list.Children = append(list.Children, xmlElement{
				XMLName:    xml.Name{Local: "issue"},
				Attributes: []xml.Attr{attr("invoice", issue.Invoice), attr("kind", string(issue.Kind))},
				Value:      issue.Error,
			})
		}
		root.Children = append(root.Children, list)
	}

	return root
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element xmlElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, a := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", a.Name.Local, escapeXML(a.Value)))
	}

	// Self-closing tag.
	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
