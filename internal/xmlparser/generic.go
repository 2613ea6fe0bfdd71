// =============================================================================
// VAT Checker - Generic XML Record Extraction
// =============================================================================
//
// Ledger exports that are not SpreadsheetML arrive in whatever element shape
// the exporting package chose. The extractor does not know the schema; it
// looks for "record arrays" and keeps the one that looks most like a ledger.
//
// CANDIDATES:
//   A group of two or more same-named sibling elements whose first member has
//   attributes or child elements. Groups are collected in document pre-order
//   (the group first, then the inside of each member), so ties favour the
//   outermost, earliest group. When the document has no such group, every
//   single element whose children are all leaves becomes a candidate.
//
// RECORD SHAPE:
//   <Line id="7" ff3="S">                 id       = 7
//     <Invoice>INV-1</Invoice>            ff3      = S
//     <Amount cur="GBP">10.00</Amount>    Invoice  = INV-1
//     <Tax><Value>2.00</Value></Tax>      Amount   = 10.00
//   </Line>                               Amount.cur = GBP
//                                         Tax.Value  = 2.00
//
// =============================================================================

package xmlparser

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/ginjaninja78/vat-checker/internal/types"
)

// DefaultSampleCap is the number of leading records inspected when scoring a
// candidate array.
const DefaultSampleCap = 50

// textKey holds the text of an element that also has attributes or children.
const textKey = "#text"

// node is one element of the parsed document.
type node struct {
	name     string
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
}

func (n *node) isLeaf() bool {
	return len(n.children) == 0
}

// objectLike reports whether an element carries structure rather than a
// single scalar value.
func (n *node) objectLike() bool {
	return len(n.children) > 0 || len(dataAttrs(n.attrs)) > 0
}

// =============================================================================
// PUBLIC API
// =============================================================================

// ReadRecords extracts the best-scoring record array from a generic XML
// document.
//
// PARAMETERS:
//   - content:   The raw XML bytes.
//   - sampleCap: Records per candidate inspected when scoring; values <= 0
//     use DefaultSampleCap.
//
// RETURNS:
//   - The records of the winning array (empty when nothing qualifies)
//   - An error only when the document is not well-formed XML
func ReadRecords(content []byte, sampleCap int) ([]types.Record, error) {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}

	root, err := parseTree(content)
	if err != nil {
		return []types.Record{}, err
	}

	candidates := findArrays(root)
	if len(candidates) == 0 {
		candidates = findFlatElements(root)
	}

	var (
		best      []*node
		bestScore = -1
	)
	for _, group := range candidates {
		score := Score(toRecords(group, sampleCap), sampleCap)
		if score > bestScore {
			best = group
			bestScore = score
		}
	}
	if best == nil {
		return []types.Record{}, nil
	}

	return toRecords(best, len(best)), nil
}

// Score rates how ledger-like a record array is. Each of the first sampleCap
// records adds one point per concept its keys reference: account codes,
// invoice or document numbers, and VAT or tax.
func Score(records []types.Record, sampleCap int) int {
	if sampleCap > 0 && len(records) > sampleCap {
		records = records[:sampleCap]
	}

	score := 0
	for _, record := range records {
		var account, invoice, tax bool
		for _, key := range record.Keys() {
			k := strings.ToLower(key)
			if strings.Contains(k, "account") || strings.Contains(k, "gl") || strings.Contains(k, "nominal") {
				account = true
			}
			if strings.Contains(k, "invoice") || k == "doc" || strings.Contains(k, "document") {
				invoice = true
			}
			if strings.Contains(k, "vat") || strings.Contains(k, "tax") {
				tax = true
			}
		}
		for _, hit := range []bool{account, invoice, tax} {
			if hit {
				score++
			}
		}
	}
	return score
}

// =============================================================================
// TREE CONSTRUCTION
// =============================================================================

// parseTree decodes the document into a node tree under a synthetic root.
func parseTree(content []byte) (*node, error) {
	decoder := newDecoder(content)

	root := &node{}
	stack := []*node{root}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch t := token.(type) {
		case xml.StartElement:
			child := &node{name: t.Name.Local, attrs: t.Copy().Attr}
			top.children = append(top.children, child)
			stack = append(stack, child)
		case xml.CharData:
			top.text.Write(t)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return root, nil
}

// =============================================================================
// CANDIDATE SEARCH
// =============================================================================

// findArrays returns every group of two or more same-named object-like
// siblings, in document pre-order.
func findArrays(root *node) [][]*node {
	var out [][]*node

	var visit func(n *node)
	visit = func(n *node) {
		for _, group := range groupChildren(n) {
			if len(group) >= 2 && group[0].objectLike() {
				out = append(out, group)
			}
			for _, member := range group {
				visit(member)
			}
		}
	}
	visit(root)

	return out
}

// findFlatElements returns single-element candidates: object-like elements
// whose children are all leaves.
func findFlatElements(root *node) [][]*node {
	var out [][]*node

	var visit func(n *node)
	visit = func(n *node) {
		for _, child := range n.children {
			if child.objectLike() && allLeaves(child) {
				out = append(out, []*node{child})
			}
			visit(child)
		}
	}
	visit(root)

	return out
}

// groupChildren groups a node's children by element name, ordered by each
// name's first appearance.
func groupChildren(n *node) [][]*node {
	index := make(map[string]int)
	var groups [][]*node
	for _, child := range n.children {
		i, ok := index[child.name]
		if !ok {
			i = len(groups)
			index[child.name] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], child)
	}
	return groups
}

func allLeaves(n *node) bool {
	for _, child := range n.children {
		if !child.isLeaf() {
			return false
		}
	}
	return true
}

// =============================================================================
// RECORD CONVERSION
// =============================================================================

func toRecords(group []*node, limit int) []types.Record {
	if limit > len(group) {
		limit = len(group)
	}
	records := make([]types.Record, 0, limit)
	for _, n := range group[:limit] {
		records = append(records, flatten("", n, types.Record{}))
	}
	return records
}

// flatten writes an element's attributes, text and children into record,
// prefixing every key with prefix. The first value seen for a key wins.
func flatten(prefix string, n *node, record types.Record) types.Record {
	for _, attr := range dataAttrs(n.attrs) {
		record = setFirst(record, prefix+attr.Name.Local, attr.Value)
	}

	if text := strings.TrimSpace(n.text.String()); text != "" {
		record = setFirst(record, prefix+textKey, text)
	}

	for _, child := range n.children {
		key := prefix + child.name
		if child.isLeaf() {
			record = setFirst(record, key, strings.TrimSpace(child.text.String()))
			for _, attr := range dataAttrs(child.attrs) {
				record = setFirst(record, key+"."+attr.Name.Local, attr.Value)
			}
			continue
		}
		record = flatten(key+".", child, record)
	}

	return record
}

func setFirst(record types.Record, key, value string) types.Record {
	if _, ok := record.Get(key); ok {
		return record
	}
	return record.Set(key, value)
}

// dataAttrs drops namespace declarations.
func dataAttrs(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		out = append(out, attr)
	}
	return out
}
