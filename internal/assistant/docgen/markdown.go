package docgen

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind classifies a flattened markdown block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockCode
	BlockRule
)

// Block is one renderable unit of generated content. Markdown is flattened to
// a block sequence so the DOCX and PDF writers share one input shape.
type Block struct {
	Kind    BlockKind
	Level   int // heading level, or list nesting depth for list items
	Ordered bool
	Text    string
}

// ParseMarkdown flattens markdown source into a block sequence.
func ParseMarkdown(src string) []Block {
	source := []byte(src)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []Block
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		blocks = append(blocks, flattenNode(node, source, 0)...)
	}
	return blocks
}

func flattenNode(node ast.Node, source []byte, listDepth int) []Block {
	switch n := node.(type) {
	case *ast.Heading:
		return []Block{{Kind: BlockHeading, Level: n.Level, Text: nodeText(n, source)}}

	case *ast.Paragraph, *ast.TextBlock:
		txt := nodeText(node, source)
		if txt == "" {
			return nil
		}
		return []Block{{Kind: BlockParagraph, Text: txt}}

	case *ast.ThematicBreak:
		return []Block{{Kind: BlockRule}}

	case *ast.FencedCodeBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		return []Block{{Kind: BlockCode, Text: strings.TrimRight(b.String(), "\n")}}

	case *ast.List:
		var blocks []Block
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			blocks = append(blocks, flattenListItem(item, source, n.IsOrdered(), listDepth+1)...)
		}
		return blocks

	default:
		txt := nodeText(node, source)
		if txt == "" {
			return nil
		}
		return []Block{{Kind: BlockParagraph, Text: txt}}
	}
}

func flattenListItem(item ast.Node, source []byte, ordered bool, depth int) []Block {
	var blocks []Block
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		if nested, ok := child.(*ast.List); ok {
			for sub := nested.FirstChild(); sub != nil; sub = sub.NextSibling() {
				blocks = append(blocks, flattenListItem(sub, source, nested.IsOrdered(), depth+1)...)
			}
			continue
		}
		txt := nodeText(child, source)
		if txt == "" {
			continue
		}
		blocks = append(blocks, Block{Kind: BlockListItem, Level: depth, Ordered: ordered, Text: txt})
	}
	return blocks
}

func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	collectText(node, source, &b)
	return strings.TrimSpace(b.String())
}

func collectText(node ast.Node, source []byte, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte(' ')
		}
	case *ast.CodeSpan, *ast.Emphasis, *ast.Link:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			collectText(child, source, b)
		}
	default:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			collectText(child, source, b)
		}
	}
}
